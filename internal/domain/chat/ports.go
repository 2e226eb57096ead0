package chat

import "context"

// ProgressRepository guards the singleton import_progress row. Acquire must be
// a single atomic check-and-set on the server side; a read-then-write from the
// application layer is not acceptable.
type ProgressRepository interface {
	Acquire(ctx context.Context) (*Checkpoint, bool, error)
	SaveCheckpoint(ctx context.Context, progressID string, state CheckpointState) error
	Complete(ctx context.Context, progressID string, state CheckpointState) error
	Release(ctx context.Context, progressID string) error
	Get(ctx context.Context) (*Progress, error)
}
