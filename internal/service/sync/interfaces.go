package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
)

// RemoteStore is the upstream persistence the reconciler pushes to and
// pulls from.
type RemoteStore interface {
	UpsertSettings(ctx context.Context, userID uuid.UUID, settings rules.BlockSettings) error
	ReplaceCustomList(ctx context.Context, userID uuid.UUID, entries []*rules.Entry) error
	ReplaceBlockedCalls(ctx context.Context, userID uuid.UUID, events []call.Event) error
	FetchSettings(ctx context.Context, userID uuid.UUID) (*rules.BlockSettings, error)
	FetchCustomList(ctx context.Context, userID uuid.UUID) ([]*rules.Entry, error)
	FetchBlockedCalls(ctx context.Context, userID uuid.UUID, limit int) ([]call.Event, error)
}

// Queue is the local durable state the reconciler drains.
type Queue interface {
	Calls() []call.Event
	Settings() rules.BlockSettings
	CustomList() *rules.List
	PendingCalls() []call.Event
	HasPendingSync() bool
	LastSync() int64
	MarkSynced(ctx context.Context, at int64)
}

// Snapshot is the remote state as last fetched. Nil or empty parts mean
// the remote holds nothing for that part.
type Snapshot struct {
	Settings   *rules.BlockSettings
	CustomList []*rules.Entry
	Calls      []call.Event
}

// Status describes the reconciler's current view of the world.
type Status struct {
	Online       bool  `json:"online"`
	Syncing      bool  `json:"syncing"`
	PendingCalls int   `json:"pending_calls"`
	LastSync     int64 `json:"last_sync"`
}
