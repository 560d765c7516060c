package analytics

import "github.com/davidleathers/callshield-core/internal/domain/call"

// Summary is the headline view over the call log.
type Summary struct {
	TotalBlocked int                 `json:"total_blocked"`
	TodayBlocked int                 `json:"today_blocked"`
	ByReason     map[call.Reason]int `json:"by_reason"`
}

// CallerKind tags a ranked caller identity.
type CallerKind string

const (
	CallerPhone   CallerKind = "phone"
	CallerAddress CallerKind = "address"
)

// TopCaller is one row of the merged frequency ranking.
type TopCaller struct {
	Value string     `json:"value"`
	Kind  CallerKind `json:"kind"`
	Count int        `json:"count"`
}

// TimePoint is one bucket of a time series; Bucket is the epoch-ms start
// of the day, week or month.
type TimePoint struct {
	Bucket int64 `json:"bucket"`
	Count  int   `json:"count"`
}

// HourCount is a fixed hour-of-day histogram bucket.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// WeekdayCount is a fixed day-of-week histogram bucket; Day follows
// time.Weekday numbering (Sunday = 0).
type WeekdayCount struct {
	Day   int `json:"day"`
	Count int `json:"count"`
}

// ProtectionDuration is the elapsed wall-clock time since the oldest
// retained event.
type ProtectionDuration struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// BlockEfficiency relates blocked events to distinct caller identities.
type BlockEfficiency struct {
	Percentage       int `json:"percentage"`
	PotentialThreats int `json:"potential_threats"`
}

// DetailedStats extends Summary with histograms, rankings, time series and
// derived protection metrics.
type DetailedStats struct {
	Summary

	ByHour    []HourCount    `json:"by_hour"`    // 24 buckets, always
	ByWeekday []WeekdayCount `json:"by_weekday"` // 7 buckets, always

	TopCallers []TopCaller `json:"top_callers"`

	Daily   []TimePoint `json:"daily"`
	Weekly  []TimePoint `json:"weekly"`
	Monthly []TimePoint `json:"monthly"`

	Protection ProtectionDuration `json:"protection_duration"`
	Efficiency BlockEfficiency    `json:"block_efficiency"`
}
