package storage

import (
	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
	"github.com/google/uuid"
)

// PendingSync tracks blocked calls recorded while the remote store was
// unreachable. Timestamp is epoch milliseconds of the last local change.
type PendingSync struct {
	Calls     []call.Event `json:"calls"`
	Timestamp int64        `json:"timestamp"`
}

// Record is the full durable state of the engine. A single record per
// installation is persisted as one JSON payload.
type Record struct {
	Calls       []call.Event        `json:"blocked_calls"`
	Settings    rules.BlockSettings `json:"block_settings"`
	CustomList  *rules.List         `json:"custom_list"`
	PendingSync PendingSync         `json:"pending_sync"`
	LastSync    int64               `json:"last_sync"`
	Active      bool                `json:"active"`
}

// DefaultRecord is the state of a fresh installation: protection on,
// default settings, nothing logged.
func DefaultRecord() *Record {
	return &Record{
		Settings:   rules.DefaultBlockSettings(),
		CustomList: rules.NewList(),
		Active:     true,
	}
}

// repair restores internal consistency after loading from disk: the
// pending-sync set must be a subset of the call log, and the list must
// exist even if the payload predates it.
func (r *Record) repair() {
	if r.CustomList == nil {
		r.CustomList = rules.NewList()
	}
	if len(r.PendingSync.Calls) == 0 {
		return
	}
	logged := make(map[uuid.UUID]struct{}, len(r.Calls))
	for _, e := range r.Calls {
		logged[e.ID] = struct{}{}
	}
	kept := r.PendingSync.Calls[:0]
	for _, e := range r.PendingSync.Calls {
		if _, ok := logged[e.ID]; ok {
			kept = append(kept, e)
		}
	}
	r.PendingSync.Calls = kept
}
