package chat

import "time"

// Direction tells who authored a message: the client or our side.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type Client struct {
	ID              string
	Phone           string
	Name            string
	SalebotClientID *int64
}

type Message struct {
	ClientID         string
	Direction        Direction
	Text             string
	SalebotMessageID int64
	CreatedAt        time.Time
}

// RemoteClient is a contact as returned by the upstream provider. It only
// lives for the duration of one batch.
type RemoteClient struct {
	ID    int64
	Name  string
	Phone string
}

// RemoteMessage is one upstream history record. CreatedAt is kept as the raw
// provider string; the importer parses it and skips records it cannot parse.
type RemoteMessage struct {
	ID            int64
	Text          string
	ClientReplica bool
	CreatedAt     string
}

// Checkpoint is the resumption state read under the import lock. The Base*
// counters are the cumulative totals as of acquisition; every write during the
// run stores Base + delta, never a blind increment.
type Checkpoint struct {
	ProgressID           string
	ListID               string
	Offset               int64
	BaseClientsProcessed int64
	BaseMessagesImported int64
	BaseImported         int64
}

// CheckpointState is an absolute snapshot persisted mid-run or at completion.
type CheckpointState struct {
	Offset                int64
	TotalClientsProcessed int64
	TotalMessagesImported int64
	TotalImported         int64
}

// BatchSummary is the user-visible outcome of one importer invocation.
type BatchSummary struct {
	Skipped          bool
	Completed        bool
	ClientsProcessed int64
	MessagesImported int64
	NextOffset       int64
}

// Progress mirrors the persisted progress row for dashboards.
type Progress struct {
	ID                    string
	IsRunning             bool
	ListID                string
	CurrentOffset         int64
	TotalClientsProcessed int64
	TotalMessagesImported int64
	TotalImported         int64
	LastRunAt             *time.Time
	UpdatedAt             time.Time
}
