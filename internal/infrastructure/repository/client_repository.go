package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edcrm/chat-import/internal/domain/chat"
	"github.com/edcrm/chat-import/internal/infrastructure/db/models"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// FindOrCreateByPhone looks a client up by its canonical phone and creates it
// on first encounter. phone must already be normalized; lookups on raw phone
// strings are a correctness bug.
func (r *ClientRepository) FindOrCreateByPhone(ctx context.Context, phone, name string) (chat.Client, bool, error) {
	var row models.Client
	err := r.db.WithContext(ctx).First(&row, "phone = ?", phone).Error
	if err == nil {
		return toDomainClient(row), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Client{}, false, fmt.Errorf("find client by phone: %w", err)
	}

	row = models.Client{
		ID:    uuid.NewString(),
		Phone: phone,
		Name:  name,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return chat.Client{}, false, fmt.Errorf("create client: %w", err)
	}
	return toDomainClient(row), true, nil
}

// List pages local clients in stable order for the local-mode importer.
func (r *ClientRepository) List(ctx context.Context, offset, limit int64) ([]chat.Client, error) {
	var rows []models.Client
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(int(offset)).
		Limit(int(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	clients := make([]chat.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, toDomainClient(row))
	}
	return clients, nil
}

// SetSalebotClientID stores the resolved upstream id so later runs skip the
// phone-variant scan for this client.
func (r *ClientRepository) SetSalebotClientID(ctx context.Context, clientID string, salebotID int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("id = ?", clientID).
		Update("salebot_client_id", salebotID)
	if res.Error != nil {
		return fmt.Errorf("set salebot client id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return chat.ErrClientNotFound
	}
	return nil
}

func toDomainClient(row models.Client) chat.Client {
	return chat.Client{
		ID:              row.ID,
		Phone:           row.Phone,
		Name:            row.Name,
		SalebotClientID: row.SalebotClientID,
	}
}
