package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
)

// RecordStore is the durable backend the queue writes through to.
type RecordStore interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record, updatedAt int64) error
}

// Queue owns the in-memory engine state and writes every change through
// to the record store. All mutations are serialized by its mutex; reads
// return copies so callers never observe a concurrent mutation.
//
// Persistence is best effort: a failed save is logged and the in-memory
// state stays authoritative until the next successful write.
type Queue struct {
	mu     sync.Mutex
	rec    *Record
	store  RecordStore
	clock  call.Clock
	logger *zap.Logger
}

func NewQueue(ctx context.Context, store RecordStore, clock call.Clock, logger *zap.Logger) (*Queue, error) {
	rec, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Queue{
		rec:    rec,
		store:  store,
		clock:  clock,
		logger: logger,
	}, nil
}

// AddCall appends a blocked call to the log and marks it pending for the
// next sync. The log keeps at most the 1000 most recent events.
func (q *Queue) AddCall(ctx context.Context, e call.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rec.Calls = call.Prepend(q.rec.Calls, e)
	q.rec.PendingSync.Calls = append(q.rec.PendingSync.Calls, e)
	q.rec.PendingSync.Timestamp = q.clock.Now().UnixMilli()
	// Trimming the log can evict events still marked pending.
	q.rec.repair()
	q.persist(ctx)
}

func (q *Queue) UpdateSettings(ctx context.Context, s rules.BlockSettings) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rec.Settings = s
	q.rec.PendingSync.Timestamp = q.clock.Now().UnixMilli()
	q.persist(ctx)
}

// MutateList applies fn to the custom list under the queue lock.
func (q *Queue) MutateList(ctx context.Context, fn func(*rules.List)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	fn(q.rec.CustomList)
	q.rec.PendingSync.Timestamp = q.clock.Now().UnixMilli()
	q.persist(ctx)
}

// ReplaceCustomList swaps in a whole list, used when adopting remote state.
func (q *Queue) ReplaceCustomList(ctx context.Context, l *rules.List) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if l == nil {
		l = rules.NewList()
	}
	q.rec.CustomList = l
	q.persist(ctx)
}

// ReplaceCalls swaps in a whole call log, used when adopting remote state.
// Pending entries no longer present in the log are dropped.
func (q *Queue) ReplaceCalls(ctx context.Context, events []call.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	log := make([]call.Event, len(events))
	copy(log, events)
	call.SortNewestFirst(log)
	if len(log) > call.MaxLogEntries {
		log = log[:call.MaxLogEntries]
	}
	q.rec.Calls = log
	q.rec.repair()
	q.persist(ctx)
}

func (q *Queue) SetActive(ctx context.Context, active bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rec.Active = active
	q.persist(ctx)
}

// ClearCalls empties the call log and with it the pending-sync set.
func (q *Queue) ClearCalls(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rec.Calls = nil
	q.rec.PendingSync.Calls = nil
	q.rec.PendingSync.Timestamp = q.clock.Now().UnixMilli()
	q.persist(ctx)
}

// ClearData resets the whole engine state to a fresh installation.
func (q *Queue) ClearData(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rec = DefaultRecord()
	q.persist(ctx)
}

// Calls returns a copy of the call log, newest first.
func (q *Queue) Calls() []call.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]call.Event, len(q.rec.Calls))
	copy(out, q.rec.Calls)
	return out
}

func (q *Queue) Settings() rules.BlockSettings {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rec.Settings
}

// CustomList returns an independent clone of the custom list.
func (q *Queue) CustomList() *rules.List {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rec.CustomList.Clone()
}

func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rec.Active
}

func (q *Queue) LastSync() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rec.LastSync
}

// PendingCalls returns a copy of the calls waiting to be pushed upstream.
func (q *Queue) PendingCalls() []call.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]call.Event, len(q.rec.PendingSync.Calls))
	copy(out, q.rec.PendingSync.Calls)
	return out
}

func (q *Queue) HasPendingSync() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.rec.PendingSync.Calls) > 0
}

// MarkSynced clears the pending set after a fully successful push and
// records the sync time in epoch milliseconds.
func (q *Queue) MarkSynced(ctx context.Context, at int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rec.PendingSync.Calls = nil
	q.rec.LastSync = at
	q.persist(ctx)
}

// persist must be called with the mutex held.
func (q *Queue) persist(ctx context.Context) {
	if err := q.store.Save(ctx, q.rec, q.clock.Now().UnixMilli()); err != nil {
		q.logger.Warn("failed to persist engine state", zap.Error(err))
	}
}
