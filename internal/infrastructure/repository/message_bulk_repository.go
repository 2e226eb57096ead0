package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edcrm/chat-import/internal/domain/chat"
)

// MessageBulkRepository handles the high-volume message path with pgx
// directly: a pre-insert existence check by upstream id plus a CopyFrom
// insert. Deduplication is explicit application-level filtering, not a
// uniqueness constraint, because constraint violations on large batched
// inserts cost more than the pre-check.
type MessageBulkRepository struct {
	pool *pgxpool.Pool
}

func NewMessageBulkRepository(pool *pgxpool.Pool) *MessageBulkRepository {
	return &MessageBulkRepository{pool: pool}
}

// ExistingMessageIDs returns which of the given upstream message ids are
// already stored for the client.
func (r *MessageBulkRepository) ExistingMessageIDs(ctx context.Context, clientID string, salebotIDs []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(salebotIDs))
	if len(salebotIDs) == 0 {
		return existing, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT salebot_message_id FROM chat_messages
		  WHERE client_id = $1 AND salebot_message_id = ANY($2)`,
		clientID, salebotIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query existing message ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan existing message id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read existing message ids: %w", err)
	}
	return existing, nil
}

// InsertMessages bulk-inserts the already-deduplicated messages and returns
// the number written.
func (r *MessageBulkRepository) InsertMessages(ctx context.Context, messages []chat.Message) (int64, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	msgRows := make([][]any, 0, len(messages))
	for _, m := range messages {
		msgRows = append(msgRows, []any{m.ClientID, string(m.Direction), m.Text, m.SalebotMessageID, m.CreatedAt})
	}

	count, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"chat_messages"},
		[]string{"client_id", "direction", "text", "salebot_message_id", "created_at"},
		pgx.CopyFromRows(msgRows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy chat messages: %w", err)
	}
	return count, nil
}
