package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/callshield-core/internal/domain/call"
)

var statsNow = time.Date(2025, 6, 18, 15, 30, 0, 0, time.Local) // a Wednesday

func newAggregator() *Aggregator {
	return NewAggregator(&call.MockClock{CurrentTime: statsNow})
}

func blockedAt(t *testing.T, phone, addr string, reason call.Reason, at time.Time) call.Event {
	t.Helper()
	var pp, ap *string
	if phone != "" {
		pp = &phone
	}
	if addr != "" {
		ap = &addr
	}
	ev, err := call.NewEvent(pp, ap, reason, addr != "", at)
	require.NoError(t, err)
	return *ev
}

func TestGenerateDetailed_EmptyLog(t *testing.T) {
	stats := newAggregator().GenerateDetailed(nil)

	assert.Zero(t, stats.TotalBlocked)
	assert.Zero(t, stats.TodayBlocked)
	require.Len(t, stats.ByReason, 5)
	for _, r := range call.Reasons {
		assert.Zero(t, stats.ByReason[r])
	}

	// Histograms are zero-filled fixed-length slices, never empty.
	require.Len(t, stats.ByHour, 24)
	require.Len(t, stats.ByWeekday, 7)
	for h, c := range stats.ByHour {
		assert.Equal(t, h, c.Hour)
		assert.Zero(t, c.Count)
	}
	for d, c := range stats.ByWeekday {
		assert.Equal(t, d, c.Day)
		assert.Zero(t, c.Count)
	}

	assert.Empty(t, stats.TopCallers)
	assert.Empty(t, stats.Daily)
	assert.Equal(t, ProtectionDuration{}, stats.Protection)
	assert.Equal(t, BlockEfficiency{}, stats.Efficiency)
}

func TestGenerateSummary(t *testing.T) {
	a := newAggregator()
	events := []call.Event{
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, statsNow.Add(-time.Hour)),
		blockedAt(t, "", "", call.ReasonAnonymous, statsNow.Add(-2*time.Hour)),
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, statsNow.Add(-30*time.Hour)),
	}

	s := a.GenerateSummary(events)
	assert.Equal(t, 3, s.TotalBlocked)
	assert.Equal(t, 2, s.TodayBlocked) // the 30h-old event predates local midnight
	assert.Equal(t, 2, s.ByReason[call.ReasonUserBlocked])
	assert.Equal(t, 1, s.ByReason[call.ReasonAnonymous])
	assert.Equal(t, 0, s.ByReason[call.ReasonSuspiciousIP])
}

func TestGenerateDetailed_HistogramsAndSeries(t *testing.T) {
	a := newAggregator()
	morning := time.Date(2025, 6, 18, 9, 15, 0, 0, time.Local)
	events := []call.Event{
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, morning),
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, morning.Add(20*time.Minute)),
		blockedAt(t, "", "203.0.113.4", call.ReasonSuspiciousIP, morning.AddDate(0, 0, -7)),
	}

	stats := a.GenerateDetailed(events)

	assert.Equal(t, 3, stats.TotalBlocked)
	assert.Equal(t, 2, stats.TodayBlocked)
	assert.Equal(t, 3, stats.ByHour[9].Count)
	assert.Equal(t, 3, stats.ByWeekday[int(time.Wednesday)].Count)

	// Two days, two distinct weeks, one month.
	assert.Len(t, stats.Daily, 2)
	assert.Len(t, stats.Weekly, 2)
	assert.Len(t, stats.Monthly, 1)

	// Series sorted ascending by bucket start.
	require.Len(t, stats.Daily, 2)
	assert.Less(t, stats.Daily[0].Bucket, stats.Daily[1].Bucket)
}

func TestGenerateDetailed_WeekStartsMonday(t *testing.T) {
	a := newAggregator()
	sunday := time.Date(2025, 6, 15, 10, 0, 0, 0, time.Local)
	monday := time.Date(2025, 6, 16, 10, 0, 0, 0, time.Local)

	stats := a.GenerateDetailed([]call.Event{
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, sunday),
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, monday),
	})

	// Sunday belongs to the previous ISO week, Monday opens a new one.
	require.Len(t, stats.Weekly, 2)
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.Local).UnixMilli(), stats.Weekly[0].Bucket)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.Local).UnixMilli(), stats.Weekly[1].Bucket)
}

func TestGenerateDetailed_TopCallersMergedAndCapped(t *testing.T) {
	a := newAggregator()
	var events []call.Event
	for i := 0; i < 12; i++ {
		events = append(events, blockedAt(t, fmt.Sprintf("+1555000%04d", i), "", call.ReasonUserBlocked, statsNow))
	}
	for i := 0; i < 4; i++ {
		events = append(events, blockedAt(t, "", "198.51.100.7", call.ReasonSuspiciousIP, statsNow))
	}

	stats := a.GenerateDetailed(events)

	require.Len(t, stats.TopCallers, 10)
	assert.Equal(t, "198.51.100.7", stats.TopCallers[0].Value)
	assert.Equal(t, CallerAddress, stats.TopCallers[0].Kind)
	assert.Equal(t, 4, stats.TopCallers[0].Count)
	assert.Equal(t, CallerPhone, stats.TopCallers[1].Kind)
}

func TestGenerateDetailed_ProtectionDuration(t *testing.T) {
	a := newAggregator()
	oldest := statsNow.Add(-(26*time.Hour + 31*time.Minute))

	stats := a.GenerateDetailed([]call.Event{
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, oldest),
		blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, statsNow.Add(-time.Minute)),
	})

	assert.Equal(t, ProtectionDuration{Days: 1, Hours: 2, Minutes: 31}, stats.Protection)
}

func TestGenerateDetailed_BlockEfficiency(t *testing.T) {
	a := newAggregator()
	var events []call.Event
	// 6 events from 2 distinct identities: capped at 100.
	for i := 0; i < 3; i++ {
		events = append(events, blockedAt(t, "+15551110000", "", call.ReasonUserBlocked, statsNow))
		events = append(events, blockedAt(t, "", "203.0.113.4", call.ReasonSuspiciousIP, statsNow))
	}

	stats := a.GenerateDetailed(events)
	assert.Equal(t, 100, stats.Efficiency.Percentage)
	assert.Equal(t, 2, stats.Efficiency.PotentialThreats)
}

func TestGenerateDetailed_UnknownIdentitySentinel(t *testing.T) {
	a := newAggregator()
	events := []call.Event{
		blockedAt(t, "", "", call.ReasonAnonymous, statsNow),
		blockedAt(t, "", "", call.ReasonAnonymous, statsNow),
	}

	stats := a.GenerateDetailed(events)
	// Both events share the "unknown" identity.
	assert.Equal(t, 1, stats.Efficiency.PotentialThreats)
	assert.Equal(t, 100, stats.Efficiency.Percentage)
	// Anonymous events never enter the caller ranking.
	assert.Empty(t, stats.TopCallers)
}
