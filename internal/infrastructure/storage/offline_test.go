package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
)

// memStore keeps the record in memory and counts saves.
type memStore struct {
	rec     *Record
	saves   int
	failing bool
}

func (m *memStore) Load(_ context.Context) (*Record, error) {
	if m.rec == nil {
		return DefaultRecord(), nil
	}
	return m.rec, nil
}

func (m *memStore) Save(_ context.Context, rec *Record, _ int64) error {
	if m.failing {
		return fmt.Errorf("disk full")
	}
	m.rec = rec
	m.saves++
	return nil
}

func newTestQueue(t *testing.T) (*Queue, *memStore, *call.MockClock) {
	t.Helper()
	store := &memStore{}
	clock := &call.MockClock{CurrentTime: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	q, err := NewQueue(context.Background(), store, clock, zap.NewNop())
	require.NoError(t, err)
	return q, store, clock
}

func mustEvent(t *testing.T, phone string, reason call.Reason, at time.Time) call.Event {
	t.Helper()
	e, err := call.NewEvent(&phone, nil, reason, false, at)
	require.NoError(t, err)
	return *e
}

func TestQueue_StartsFromDefaults(t *testing.T) {
	q, _, _ := newTestQueue(t)

	assert.True(t, q.Active())
	assert.Empty(t, q.Calls())
	assert.False(t, q.HasPendingSync())
	assert.Equal(t, rules.DefaultBlockSettings(), q.Settings())
	assert.Zero(t, q.CustomList().Len())
}

func TestQueue_AddCall(t *testing.T) {
	q, store, clock := newTestQueue(t)
	ctx := context.Background()

	e := mustEvent(t, "+15551234567", call.ReasonUserBlocked, clock.Now())
	q.AddCall(ctx, e)

	calls := q.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, e.ID, calls[0].ID)

	pending := q.PendingCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].ID)
	assert.True(t, q.HasPendingSync())
	assert.Equal(t, 1, store.saves)
}

func TestQueue_LogCappedAtMaxEntries(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < call.MaxLogEntries+1; i++ {
		clock.Advance(time.Second)
		q.AddCall(ctx, mustEvent(t, "+15551234567", call.ReasonUserBlocked, clock.Now()))
	}

	calls := q.Calls()
	require.Len(t, calls, call.MaxLogEntries)
	// Newest first, and the very first event has been evicted.
	assert.Greater(t, calls[0].Timestamp, calls[len(calls)-1].Timestamp)

	// Every pending call still exists in the log.
	logged := make(map[string]bool, len(calls))
	for _, c := range calls {
		logged[c.ID.String()] = true
	}
	for _, p := range q.PendingCalls() {
		assert.True(t, logged[p.ID.String()])
	}
}

func TestQueue_ClearCallsDropsPending(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	q.AddCall(ctx, mustEvent(t, "+15551234567", call.ReasonAnonymous, clock.Now()))
	q.ClearCalls(ctx)

	assert.Empty(t, q.Calls())
	assert.False(t, q.HasPendingSync())
}

func TestQueue_MarkSynced(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	q.AddCall(ctx, mustEvent(t, "+15551234567", call.ReasonAnonymous, clock.Now()))
	require.True(t, q.HasPendingSync())

	syncedAt := clock.Now().UnixMilli()
	q.MarkSynced(ctx, syncedAt)

	assert.False(t, q.HasPendingSync())
	assert.Equal(t, syncedAt, q.LastSync())
	// The log itself is untouched.
	assert.Len(t, q.Calls(), 1)
}

func TestQueue_MutateList(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	entry, err := rules.NewEntry("+15559998888", rules.KindPhone, true, "", clock.Now())
	require.NoError(t, err)
	q.MutateList(ctx, func(l *rules.List) {
		l.Add(entry)
	})

	assert.Equal(t, 1, q.CustomList().Len())

	// The returned list is a clone: mutating it does not leak back.
	clone := q.CustomList()
	clone.Remove(entry.ID)
	assert.Equal(t, 1, q.CustomList().Len())
}

func TestQueue_ReplaceCallsSortsAndRepairs(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	local := mustEvent(t, "+15551234567", call.ReasonAnonymous, clock.Now())
	q.AddCall(ctx, local)

	older := mustEvent(t, "+15550000001", call.ReasonUserBlocked, clock.Now().Add(-time.Hour))
	newer := mustEvent(t, "+15550000002", call.ReasonUserBlocked, clock.Now().Add(-time.Minute))
	q.ReplaceCalls(ctx, []call.Event{older, newer})

	calls := q.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, newer.ID, calls[0].ID)
	assert.Equal(t, older.ID, calls[1].ID)
	// The local pending event is gone from the log, so it is no longer pending.
	assert.False(t, q.HasPendingSync())
}

func TestQueue_ClearDataResetsEverything(t *testing.T) {
	q, _, clock := newTestQueue(t)
	ctx := context.Background()

	q.AddCall(ctx, mustEvent(t, "+15551234567", call.ReasonAnonymous, clock.Now()))
	q.SetActive(ctx, false)
	q.ClearData(ctx)

	assert.True(t, q.Active())
	assert.Empty(t, q.Calls())
	assert.False(t, q.HasPendingSync())
	assert.Equal(t, rules.DefaultBlockSettings(), q.Settings())
}

func TestQueue_SurvivesFailedPersist(t *testing.T) {
	q, store, clock := newTestQueue(t)
	ctx := context.Background()

	store.failing = true
	q.AddCall(ctx, mustEvent(t, "+15551234567", call.ReasonAnonymous, clock.Now()))

	// In-memory state stays authoritative even when the disk write failed.
	assert.Len(t, q.Calls(), 1)
	assert.True(t, q.HasPendingSync())
}

func TestRecord_RepairDropsOrphanedPending(t *testing.T) {
	kept := mustEvent(t, "+15551234567", call.ReasonAnonymous, time.Now())
	orphan := mustEvent(t, "+15559999999", call.ReasonAnonymous, time.Now())

	rec := &Record{
		Calls:       []call.Event{kept},
		PendingSync: PendingSync{Calls: []call.Event{kept, orphan}},
	}
	rec.repair()

	require.Len(t, rec.PendingSync.Calls, 1)
	assert.Equal(t, kept.ID, rec.PendingSync.Calls[0].ID)
	require.NotNil(t, rec.CustomList)
}
