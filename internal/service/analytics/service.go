package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/davidleathers/callshield-core/internal/domain/call"
)

const topCallerLimit = 10

// Aggregator computes summary and detailed statistics in a single pass
// over the call log. It holds no state beyond the clock; all methods are
// pure and safe for concurrent use.
type Aggregator struct {
	clock call.Clock
}

func NewAggregator(clock call.Clock) *Aggregator {
	if clock == nil {
		clock = call.RealClock{}
	}
	return &Aggregator{clock: clock}
}

// GenerateSummary produces total, today and per-reason counts. The
// per-reason map always carries all five fixed keys.
func (a *Aggregator) GenerateSummary(events []call.Event) Summary {
	s := emptySummary()
	midnight := localMidnight(a.clock.Now()).UnixMilli()

	for i := range events {
		s.TotalBlocked++
		if events[i].Timestamp >= midnight {
			s.TodayBlocked++
		}
		s.ByReason[events[i].Reason]++
	}
	return s
}

// GenerateDetailed produces the full statistics structure. An empty log
// yields zero counts with fully zero-filled fixed-length histograms.
func (a *Aggregator) GenerateDetailed(events []call.Event) DetailedStats {
	now := a.clock.Now()
	stats := DetailedStats{
		Summary:   emptySummary(),
		ByHour:    make([]HourCount, 24),
		ByWeekday: make([]WeekdayCount, 7),
		Daily:     []TimePoint{},
		Weekly:    []TimePoint{},
		Monthly:   []TimePoint{},
	}
	for h := range stats.ByHour {
		stats.ByHour[h].Hour = h
	}
	for d := range stats.ByWeekday {
		stats.ByWeekday[d].Day = d
	}
	if len(events) == 0 {
		stats.TopCallers = []TopCaller{}
		return stats
	}

	midnight := localMidnight(now).UnixMilli()
	callerCounts := make(map[string]int)
	callerKinds := make(map[string]CallerKind)
	daily := make(map[int64]int)
	weekly := make(map[int64]int)
	monthly := make(map[int64]int)
	identities := make(map[string]struct{})
	oldest := events[0].Timestamp

	for i := range events {
		ev := &events[i]
		stats.TotalBlocked++
		if ev.Timestamp >= midnight {
			stats.TodayBlocked++
		}
		stats.ByReason[ev.Reason]++

		at := ev.Time()
		stats.ByHour[at.Hour()].Count++
		stats.ByWeekday[int(at.Weekday())].Count++

		switch {
		case ev.PhoneNumber != nil && *ev.PhoneNumber != "":
			callerCounts[*ev.PhoneNumber]++
			callerKinds[*ev.PhoneNumber] = CallerPhone
		case ev.SourceAddress != nil && *ev.SourceAddress != "":
			callerCounts[*ev.SourceAddress]++
			callerKinds[*ev.SourceAddress] = CallerAddress
		}

		daily[localMidnight(at).UnixMilli()]++
		weekly[weekStart(at).UnixMilli()]++
		monthly[monthStart(at).UnixMilli()]++

		identities[ev.CallerIdentity()] = struct{}{}
		if ev.Timestamp < oldest {
			oldest = ev.Timestamp
		}
	}

	stats.TopCallers = rankTopCallers(callerCounts, callerKinds)
	stats.Daily = toSeries(daily)
	stats.Weekly = toSeries(weekly)
	stats.Monthly = toSeries(monthly)
	stats.Protection = protectionSince(oldest, now)
	stats.Efficiency = efficiency(stats.TotalBlocked, len(identities))
	return stats
}

func emptySummary() Summary {
	byReason := make(map[call.Reason]int, len(call.Reasons))
	for _, r := range call.Reasons {
		byReason[r] = 0
	}
	return Summary{ByReason: byReason}
}

func rankTopCallers(counts map[string]int, kinds map[string]CallerKind) []TopCaller {
	ranked := make([]TopCaller, 0, len(counts))
	for value, count := range counts {
		ranked = append(ranked, TopCaller{Value: value, Kind: kinds[value], Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Value < ranked[j].Value
	})
	if len(ranked) > topCallerLimit {
		ranked = ranked[:topCallerLimit]
	}
	return ranked
}

func toSeries(buckets map[int64]int) []TimePoint {
	series := make([]TimePoint, 0, len(buckets))
	for bucket, count := range buckets {
		series = append(series, TimePoint{Bucket: bucket, Count: count})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Bucket < series[j].Bucket
	})
	return series
}

func protectionSince(oldestMs int64, now time.Time) ProtectionDuration {
	elapsed := now.Sub(time.UnixMilli(oldestMs))
	if elapsed < 0 {
		elapsed = 0
	}
	return ProtectionDuration{
		Days:    int(elapsed.Hours()) / 24,
		Hours:   int(elapsed.Hours()) % 24,
		Minutes: int(elapsed.Minutes()) % 60,
	}
}

func efficiency(total, distinct int) BlockEfficiency {
	if distinct == 0 {
		return BlockEfficiency{}
	}
	pct := math.Round(math.Min(100, float64(total)/float64(distinct)*100))
	return BlockEfficiency{
		Percentage:       int(pct),
		PotentialThreats: distinct,
	}
}

func localMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// weekStart returns the local midnight of the Monday opening the week.
func weekStart(t time.Time) time.Time {
	mid := localMidnight(t)
	offset := (int(mid.Weekday()) + 6) % 7 // Monday = 0
	return mid.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
