package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/edcrm/chat-import/internal/domain/chat"
)

type GetImportProgressOutput struct {
	ID                    string     `json:"id"`
	IsRunning             bool       `json:"is_running"`
	ListID                string     `json:"list_id,omitempty"`
	CurrentOffset         int64      `json:"current_offset"`
	TotalClientsProcessed int64      `json:"total_clients_processed"`
	TotalMessagesImported int64      `json:"total_messages_imported"`
	TotalImported         int64      `json:"total_imported"`
	LastRunAt             *time.Time `json:"last_run_at,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type GetImportProgress interface {
	Execute(ctx context.Context) (GetImportProgressOutput, error)
}

type getImportProgress struct {
	progress domain.ProgressRepository
}

func NewGetImportProgress(progress domain.ProgressRepository) GetImportProgress {
	return &getImportProgress{progress: progress}
}

func (uc *getImportProgress) Execute(ctx context.Context) (GetImportProgressOutput, error) {
	row, err := uc.progress.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrProgressNotFound) {
			return GetImportProgressOutput{}, ErrProgressNotFound
		}
		return GetImportProgressOutput{}, fmt.Errorf("%w: %v", ErrGetProgress, err)
	}

	return GetImportProgressOutput{
		ID:                    row.ID,
		IsRunning:             row.IsRunning,
		ListID:                row.ListID,
		CurrentOffset:         row.CurrentOffset,
		TotalClientsProcessed: row.TotalClientsProcessed,
		TotalMessagesImported: row.TotalMessagesImported,
		TotalImported:         row.TotalImported,
		LastRunAt:             row.LastRunAt,
		UpdatedAt:             row.UpdatedAt,
	}, nil
}
