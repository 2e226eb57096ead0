package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/edcrm/chat-import/internal/domain/chat"
	"github.com/edcrm/chat-import/internal/infrastructure/db/models"
)

const defaultStaleAfter = 90 * time.Second

// ImportProgressRepository owns the singleton import_progress row. All lock
// transitions happen through single UPDATE statements so two invocations can
// never both observe the row idle and both proceed.
type ImportProgressRepository struct {
	db         *gorm.DB
	listID     string
	staleAfter time.Duration
	logger     zerolog.Logger
}

// NewImportProgressRepository builds the repository. listID selects the
// upstream list to import from; it is written into the singleton row on first
// use, and an empty value puts the importer into local mode.
func NewImportProgressRepository(db *gorm.DB, listID string, logger zerolog.Logger) *ImportProgressRepository {
	return &ImportProgressRepository{db: db, listID: listID, staleAfter: defaultStaleAfter, logger: logger}
}

// Acquire reclaims a stale lock if present, then attempts an atomic
// check-and-set on the running flag. The checkpoint comes from the UPDATE's
// RETURNING clause, never from a separate read: a row loaded before the CAS
// could predate another run's Complete and hand the winner a stale offset.
// The second return value reports whether the lock was taken; losing it to a
// live holder is a normal outcome.
func (r *ImportProgressRepository) Acquire(ctx context.Context) (*chat.Checkpoint, bool, error) {
	if err := r.reclaimStale(ctx); err != nil {
		return nil, false, err
	}

	seed, err := r.latestRow(ctx)
	if err != nil {
		return nil, false, err
	}

	var row models.ImportProgress
	res := r.db.WithContext(ctx).Raw(
		`UPDATE import_progress
		    SET is_running = TRUE, last_run_at = NOW(), updated_at = NOW()
		  WHERE id = ? AND is_running = FALSE
	  RETURNING id, list_id, current_offset, total_clients_processed, total_messages_imported, total_imported`,
		seed.ID,
	).Scan(&row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("acquire import lock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	listID := ""
	if row.ListID != nil {
		listID = *row.ListID
	}
	return &chat.Checkpoint{
		ProgressID:           row.ID,
		ListID:               listID,
		Offset:               row.CurrentOffset,
		BaseClientsProcessed: row.TotalClientsProcessed,
		BaseMessagesImported: row.TotalMessagesImported,
		BaseImported:         row.TotalImported,
	}, true, nil
}

// reclaimStale clears a running flag whose heartbeat is older than the stale
// threshold, so a crashed run never blocks the importer forever.
func (r *ImportProgressRepository) reclaimStale(ctx context.Context) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE import_progress
		    SET is_running = FALSE, updated_at = NOW()
		  WHERE is_running = TRUE AND updated_at < NOW() - (? * INTERVAL '1 second')`,
		int64(r.staleAfter/time.Second),
	)
	if res.Error != nil {
		return fmt.Errorf("reclaim stale import lock: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.logger.Warn().Int64("rows", res.RowsAffected).Msg("reclaimed stale import lock")
	}
	return nil
}

// latestRow returns the most recent progress row, creating the singleton on
// first use.
func (r *ImportProgressRepository) latestRow(ctx context.Context) (*models.ImportProgress, error) {
	var row models.ImportProgress
	err := r.db.WithContext(ctx).Order("updated_at DESC").First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load import progress: %w", err)
	}

	row = models.ImportProgress{}
	if r.listID != "" {
		listID := r.listID
		row.ListID = &listID
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create import progress: %w", err)
	}
	return &row, nil
}

// SaveCheckpoint writes an absolute snapshot plus a fresh heartbeat. Values
// are computed by the caller as base + delta from the checkpoint read under
// the lock, never as relative increments.
func (r *ImportProgressRepository) SaveCheckpoint(ctx context.Context, progressID string, state chat.CheckpointState) error {
	return r.update(ctx, progressID, state, true)
}

// Complete writes the final snapshot and releases the lock in one statement.
func (r *ImportProgressRepository) Complete(ctx context.Context, progressID string, state chat.CheckpointState) error {
	return r.update(ctx, progressID, state, false)
}

func (r *ImportProgressRepository) update(ctx context.Context, progressID string, state chat.CheckpointState, running bool) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE import_progress
		    SET current_offset = ?,
		        total_clients_processed = ?,
		        total_messages_imported = ?,
		        total_imported = ?,
		        is_running = ?,
		        updated_at = NOW()
		  WHERE id = ?`,
		state.Offset,
		state.TotalClientsProcessed,
		state.TotalMessagesImported,
		state.TotalImported,
		running,
		progressID,
	)
	if res.Error != nil {
		return fmt.Errorf("update import progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return chat.ErrProgressNotFound
	}
	return nil
}

// Release clears the running flag without touching counters. Used as the
// best-effort cleanup on error paths.
func (r *ImportProgressRepository) Release(ctx context.Context, progressID string) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE import_progress SET is_running = FALSE, updated_at = NOW() WHERE id = ?`,
		progressID,
	)
	if res.Error != nil {
		return fmt.Errorf("release import lock: %w", res.Error)
	}
	return nil
}

// Get returns the progress row for dashboards.
func (r *ImportProgressRepository) Get(ctx context.Context) (*chat.Progress, error) {
	var row models.ImportProgress
	err := r.db.WithContext(ctx).Order("updated_at DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrProgressNotFound
		}
		return nil, fmt.Errorf("load import progress: %w", err)
	}

	listID := ""
	if row.ListID != nil {
		listID = *row.ListID
	}
	return &chat.Progress{
		ID:                    row.ID,
		IsRunning:             row.IsRunning,
		ListID:                listID,
		CurrentOffset:         row.CurrentOffset,
		TotalClientsProcessed: row.TotalClientsProcessed,
		TotalMessagesImported: row.TotalMessagesImported,
		TotalImported:         row.TotalImported,
		LastRunAt:             row.LastRunAt,
		UpdatedAt:             row.UpdatedAt,
	}, nil
}
