package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	domain "github.com/edcrm/chat-import/internal/domain/chat"
	"github.com/edcrm/chat-import/internal/phone"
)

// Provider timestamp format for history records.
const historyTimeLayout = "2006-01-02 15:04:05"

type ImportConfig struct {
	// BatchSize bounds the clients handled per invocation so one run stays
	// under the host's execution-time ceiling.
	BatchSize int64
	// HistoryLimit caps messages fetched per client.
	HistoryLimit int64
	// InsertChunkSize bounds each dedup-then-insert round trip.
	InsertChunkSize int
	// CheckpointEvery writes an intermediate checkpoint after this many
	// clients, bounding data loss on crash to one mini-batch.
	CheckpointEvery int64
	// InterCallDelay is the courtesy pause between upstream calls; removing
	// it trips the provider's abuse protection.
	InterCallDelay time.Duration
}

type upstreamAPI interface {
	GetClients(ctx context.Context, listID string, offset, limit int64) ([]domain.RemoteClient, error)
	FindWhatsAppClientID(ctx context.Context, variants []string) (int64, bool, error)
	GetHistory(ctx context.Context, clientID int64, limit int64) ([]domain.RemoteMessage, error)
}

type clientStore interface {
	FindOrCreateByPhone(ctx context.Context, phoneNumber, name string) (domain.Client, bool, error)
	List(ctx context.Context, offset, limit int64) ([]domain.Client, error)
	SetSalebotClientID(ctx context.Context, clientID string, salebotID int64) error
}

type messageStore interface {
	ExistingMessageIDs(ctx context.Context, clientID string, salebotIDs []int64) (map[int64]struct{}, error)
	InsertMessages(ctx context.Context, messages []domain.Message) (int64, error)
}

type RunImportBatch interface {
	Execute(ctx context.Context) (domain.BatchSummary, error)
}

type runImportBatch struct {
	progress domain.ProgressRepository
	clients  clientStore
	messages messageStore
	upstream upstreamAPI
	cfg      ImportConfig
	logger   zerolog.Logger
}

func NewRunImportBatch(
	progress domain.ProgressRepository,
	clients clientStore,
	messages messageStore,
	upstream upstreamAPI,
	cfg ImportConfig,
	logger zerolog.Logger,
) RunImportBatch {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 2000
	}
	if cfg.InsertChunkSize <= 0 {
		cfg.InsertChunkSize = 50
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 5
	}
	if cfg.InterCallDelay <= 0 {
		cfg.InterCallDelay = 150 * time.Millisecond
	}

	return &runImportBatch{
		progress: progress,
		clients:  clients,
		messages: messages,
		upstream: upstream,
		cfg:      cfg,
		logger:   logger,
	}
}

// Execute processes one bounded batch: acquire the run lock, resume from the
// checkpoint, import clients in page order, checkpoint with absolute
// base+delta counters, release. A held lock is a normal "skipped" outcome.
// On error the lock is released best-effort and the error surfaces to the
// scheduler, which re-invokes and resumes from the checkpoint.
func (uc *runImportBatch) Execute(ctx context.Context) (domain.BatchSummary, error) {
	cp, acquired, err := uc.progress.Acquire(ctx)
	if err != nil {
		return domain.BatchSummary{}, fmt.Errorf("acquire import lock: %w", err)
	}
	if !acquired {
		uc.logger.Info().Msg("import already running, skipping")
		return domain.BatchSummary{Skipped: true}, nil
	}

	finalized := false
	defer func() {
		if finalized {
			return
		}
		if relErr := uc.progress.Release(context.WithoutCancel(ctx), cp.ProgressID); relErr != nil {
			uc.logger.Error().Err(relErr).Msg("failed to release import lock")
		}
	}()

	summary, err := uc.runBatch(ctx, cp, &finalized)
	if err != nil {
		return domain.BatchSummary{}, err
	}
	return summary, nil
}

func (uc *runImportBatch) runBatch(ctx context.Context, cp *domain.Checkpoint, finalized *bool) (domain.BatchSummary, error) {
	var (
		processed int64
		imported  int64
		pageLen   int64
	)

	process := func(handle func(ctx context.Context) (int64, error)) error {
		if processed > 0 {
			if !sleepWithContext(ctx, uc.cfg.InterCallDelay) {
				return ctx.Err()
			}
		}

		n, err := handle(ctx)
		imported += n
		if err != nil {
			// Rows that landed before the failure would otherwise vanish from
			// the counters forever: the rerun dedups them and reports zero.
			// The offset stays put, so the client is retried whole.
			if n > 0 {
				if saveErr := uc.progress.SaveCheckpoint(context.WithoutCancel(ctx), cp.ProgressID, checkpointState(cp, processed, imported)); saveErr != nil {
					uc.logger.Error().Err(saveErr).Msg("failed to checkpoint partially imported messages")
				}
			}
			return err
		}
		processed++

		if processed%uc.cfg.CheckpointEvery == 0 {
			if err := uc.progress.SaveCheckpoint(ctx, cp.ProgressID, checkpointState(cp, processed, imported)); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		return nil
	}

	if cp.ListID != "" {
		remotes, err := uc.upstream.GetClients(ctx, cp.ListID, cp.Offset, uc.cfg.BatchSize)
		if err != nil {
			return domain.BatchSummary{}, fmt.Errorf("fetch upstream clients: %w", err)
		}
		pageLen = int64(len(remotes))

		for _, remote := range remotes {
			remote := remote
			if err := process(func(ctx context.Context) (int64, error) {
				return uc.importRemoteClient(ctx, remote)
			}); err != nil {
				return domain.BatchSummary{}, err
			}
		}
	} else {
		locals, err := uc.clients.List(ctx, cp.Offset, uc.cfg.BatchSize)
		if err != nil {
			return domain.BatchSummary{}, fmt.Errorf("list local clients: %w", err)
		}
		pageLen = int64(len(locals))

		for _, local := range locals {
			local := local
			if err := process(func(ctx context.Context) (int64, error) {
				return uc.importLocalClient(ctx, local)
			}); err != nil {
				return domain.BatchSummary{}, err
			}
		}
	}

	if pageLen == 0 {
		*finalized = true
		if err := uc.progress.Complete(ctx, cp.ProgressID, checkpointState(cp, 0, 0)); err != nil {
			*finalized = false
			return domain.BatchSummary{}, fmt.Errorf("mark import complete: %w", err)
		}
		return domain.BatchSummary{Completed: true, NextOffset: cp.Offset}, nil
	}

	*finalized = true
	if err := uc.progress.Complete(ctx, cp.ProgressID, checkpointState(cp, processed, imported)); err != nil {
		*finalized = false
		return domain.BatchSummary{}, fmt.Errorf("write final checkpoint: %w", err)
	}

	return domain.BatchSummary{
		Completed:        pageLen < uc.cfg.BatchSize,
		ClientsProcessed: processed,
		MessagesImported: imported,
		NextOffset:       cp.Offset + processed,
	}, nil
}

// importRemoteClient maps one upstream contact to a local client and imports
// its history. Contacts without a plausible phone are skipped whole: an
// unidentifiable local record is worse than a missing one.
func (uc *runImportBatch) importRemoteClient(ctx context.Context, remote domain.RemoteClient) (int64, error) {
	canonical := phone.Normalize(remote.Phone)
	if canonical == "" {
		uc.logger.Warn().
			Int64("salebot_client_id", remote.ID).
			Str("raw_phone", remote.Phone).
			Msg("upstream client has no usable phone, skipping")
		return 0, nil
	}

	local, created, err := uc.clients.FindOrCreateByPhone(ctx, canonical, remote.Name)
	if err != nil {
		return 0, fmt.Errorf("find or create client %s: %w", canonical, err)
	}
	if created {
		uc.logger.Info().Str("client_id", local.ID).Str("phone", canonical).Msg("created local client")
	}

	return uc.importHistory(ctx, local.ID, remote.ID)
}

// importLocalClient resolves the upstream id for an existing local client via
// the phone-variant scan, then imports its history. Unknown phones are
// skipped, not errors.
func (uc *runImportBatch) importLocalClient(ctx context.Context, local domain.Client) (int64, error) {
	salebotID := int64(0)
	if local.SalebotClientID != nil {
		salebotID = *local.SalebotClientID
	} else {
		id, found, err := uc.upstream.FindWhatsAppClientID(ctx, phone.Variants(local.Phone))
		if err != nil {
			uc.logger.Warn().Err(err).Str("client_id", local.ID).Msg("whatsapp id lookup failed, skipping client")
			return 0, nil
		}
		if !found {
			uc.logger.Debug().Str("client_id", local.ID).Msg("no upstream match for client phone")
			return 0, nil
		}
		salebotID = id

		if err := uc.clients.SetSalebotClientID(ctx, local.ID, salebotID); err != nil {
			return 0, fmt.Errorf("store salebot client id: %w", err)
		}
	}

	return uc.importHistory(ctx, local.ID, salebotID)
}

// importHistory fetches the upstream history for one client and inserts the
// not-yet-seen messages in fixed-size sub-batches. A failed history fetch
// affects only this client; database failures are batch-fatal.
func (uc *runImportBatch) importHistory(ctx context.Context, clientID string, salebotID int64) (int64, error) {
	history, err := uc.upstream.GetHistory(ctx, salebotID, uc.cfg.HistoryLimit)
	if err != nil {
		uc.logger.Warn().Err(err).Int64("salebot_client_id", salebotID).Msg("history fetch failed, skipping client")
		return 0, nil
	}

	mapped := make([]domain.Message, 0, len(history))
	for _, rm := range history {
		createdAt, err := time.Parse(historyTimeLayout, rm.CreatedAt)
		if err != nil {
			uc.logger.Warn().
				Int64("salebot_message_id", rm.ID).
				Str("created_at", rm.CreatedAt).
				Msg("unparseable message timestamp, skipping record")
			continue
		}

		direction := domain.DirectionOutgoing
		if rm.ClientReplica {
			direction = domain.DirectionIncoming
		}
		mapped = append(mapped, domain.Message{
			ClientID:         clientID,
			Direction:        direction,
			Text:             rm.Text,
			SalebotMessageID: rm.ID,
			CreatedAt:        createdAt,
		})
	}

	var inserted int64
	for start := 0; start < len(mapped); start += uc.cfg.InsertChunkSize {
		end := start + uc.cfg.InsertChunkSize
		if end > len(mapped) {
			end = len(mapped)
		}
		chunk := mapped[start:end]

		ids := make([]int64, 0, len(chunk))
		for _, m := range chunk {
			ids = append(ids, m.SalebotMessageID)
		}
		existing, err := uc.messages.ExistingMessageIDs(ctx, clientID, ids)
		if err != nil {
			return inserted, fmt.Errorf("check existing messages: %w", err)
		}

		fresh := make([]domain.Message, 0, len(chunk))
		for _, m := range chunk {
			if _, ok := existing[m.SalebotMessageID]; ok {
				continue
			}
			fresh = append(fresh, m)
		}

		n, err := uc.messages.InsertMessages(ctx, fresh)
		if err != nil {
			return inserted, fmt.Errorf("insert messages: %w", err)
		}
		inserted += n
	}

	return inserted, nil
}

func checkpointState(cp *domain.Checkpoint, processed, imported int64) domain.CheckpointState {
	return domain.CheckpointState{
		Offset:                cp.Offset + processed,
		TotalClientsProcessed: cp.BaseClientsProcessed + processed,
		TotalMessagesImported: cp.BaseMessagesImported + imported,
		TotalImported:         cp.BaseImported + imported,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
