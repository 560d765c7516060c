package patterns

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/callshield-core/internal/domain/call"
)

const (
	// DefaultRepeatThreshold is the minimum occurrence count for a caller
	// to be reported as a repeat caller.
	DefaultRepeatThreshold = 3

	// attack detection parameters over the trailing 24-hour window
	attackWindow       = 24 * time.Hour
	spamThreshold      = 10
	targetedThreshold  = 5
	robocallMinGaps    = 3
	robocallTolerance  = int64(60_000) // ms around the mean inter-arrival gap
	maxSpamEventIDs    = 10
	maxRobocallEventID = 4
	maxTargetedEventID = 5
)

// Analyzer detects repeat callers and attack signatures over the call log.
// All methods are pure computations over their input; the injected clock
// only anchors the trailing window.
type Analyzer struct {
	clock call.Clock
}

func NewAnalyzer(clock call.Clock) *Analyzer {
	if clock == nil {
		clock = call.RealClock{}
	}
	return &Analyzer{clock: clock}
}

// IdentifyRepeatCallers counts occurrences of each phone number and
// address across the log and keeps those meeting the threshold, sorted
// descending by count. A threshold below 1 falls back to the default.
func (a *Analyzer) IdentifyRepeatCallers(events []call.Event, threshold int) RepeatCallers {
	if threshold < 1 {
		threshold = DefaultRepeatThreshold
	}

	phoneCounts := make(map[string]int)
	addressCounts := make(map[string]int)
	for i := range events {
		if p := events[i].PhoneNumber; p != nil && *p != "" {
			phoneCounts[*p]++
		}
		if s := events[i].SourceAddress; s != nil && *s != "" {
			addressCounts[*s]++
		}
	}

	return RepeatCallers{
		ByPhone:   rankCallers(phoneCounts, threshold),
		ByAddress: rankCallers(addressCounts, threshold),
	}
}

// IdentifyPotentialAttacks inspects the trailing 24 hours of the log for
// spam bursts, robocall cadences and targeted repeat attacks. It returns
// an empty slice when nothing matches and never fails on sparse input.
func (a *Analyzer) IdentifyPotentialAttacks(events []call.Event) []Attack {
	recent := a.windowed(events)
	attacks := []Attack{}

	if len(recent) >= spamThreshold {
		attacks = append(attacks, Attack{
			Type:     AttackSpam,
			Evidence: fmt.Sprintf("%d calls in the last 24 hours", len(recent)),
			EventIDs: eventIDs(recent, maxSpamEventIDs),
		})
	}

	if isRegularCadence(recent) {
		attacks = append(attacks, Attack{
			Type:     AttackRobocall,
			Evidence: "calls arriving at regular intervals",
			EventIDs: eventIDs(recent, maxRobocallEventID),
		})
	}

	repeats := a.IdentifyRepeatCallers(recent, targetedThreshold)
	if len(repeats.ByPhone) > 0 {
		top := repeats.ByPhone[0]
		attacks = append(attacks, Attack{
			Type:     AttackTargeted,
			Evidence: fmt.Sprintf("%d calls from number %s", top.Count, top.Value),
			EventIDs: matchingEventIDs(recent, top.Value, matchPhone, maxTargetedEventID),
		})
	}
	if len(repeats.ByAddress) > 0 {
		top := repeats.ByAddress[0]
		attacks = append(attacks, Attack{
			Type:     AttackTargeted,
			Evidence: fmt.Sprintf("%d calls from address %s", top.Count, top.Value),
			EventIDs: matchingEventIDs(recent, top.Value, matchAddress, maxTargetedEventID),
		})
	}

	return attacks
}

// AnalyzeTimePatterns buckets the whole log by hour of day.
func (a *Analyzer) AnalyzeTimePatterns(events []call.Event) []HourCount {
	counts := make([]HourCount, 24)
	for h := range counts {
		counts[h].Hour = h
	}
	for i := range events {
		counts[events[i].Time().Hour()].Count++
	}
	return counts
}

// windowed returns the events within the trailing window, newest first.
func (a *Analyzer) windowed(events []call.Event) []call.Event {
	cutoff := a.clock.Now().Add(-attackWindow).UnixMilli()
	recent := make([]call.Event, 0, len(events))
	for i := range events {
		if events[i].Timestamp > cutoff {
			recent = append(recent, events[i])
		}
	}
	call.SortNewestFirst(recent)
	return recent
}

// isRegularCadence reports whether consecutive inter-arrival gaps stay
// within the tolerance of their mean. Requires at least robocallMinGaps
// gaps.
func isRegularCadence(newestFirst []call.Event) bool {
	if len(newestFirst) < robocallMinGaps+1 {
		return false
	}

	gaps := make([]int64, 0, len(newestFirst)-1)
	var sum int64
	for i := 1; i < len(newestFirst); i++ {
		gap := newestFirst[i-1].Timestamp - newestFirst[i].Timestamp
		gaps = append(gaps, gap)
		sum += gap
	}

	mean := sum / int64(len(gaps))
	for _, gap := range gaps {
		diff := gap - mean
		if diff < 0 {
			diff = -diff
		}
		if diff > robocallTolerance {
			return false
		}
	}
	return true
}

func rankCallers(counts map[string]int, threshold int) []RepeatCaller {
	out := []RepeatCaller{}
	for value, count := range counts {
		if count >= threshold {
			out = append(out, RepeatCaller{Value: value, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func eventIDs(events []call.Event, max int) []uuid.UUID {
	if len(events) > max {
		events = events[:max]
	}
	ids := make([]uuid.UUID, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	return ids
}

func matchPhone(e *call.Event, value string) bool {
	return e.PhoneNumber != nil && *e.PhoneNumber == value
}

func matchAddress(e *call.Event, value string) bool {
	return e.SourceAddress != nil && *e.SourceAddress == value
}

func matchingEventIDs(events []call.Event, value string, match func(*call.Event, string) bool, max int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, max)
	for i := range events {
		if match(&events[i], value) {
			ids = append(ids, events[i].ID)
			if len(ids) == max {
				break
			}
		}
	}
	return ids
}
