package call

import "sort"

// MaxLogEntries caps the local call log; the oldest event is dropped
// silently once the cap is exceeded.
const MaxLogEntries = 1000

// Prepend inserts an event at the head of a newest-first log, enforcing the
// cap. The input slice is not mutated.
func Prepend(log []Event, e Event) []Event {
	out := make([]Event, 0, min(len(log)+1, MaxLogEntries))
	out = append(out, e)
	out = append(out, log...)
	if len(out) > MaxLogEntries {
		out = out[:MaxLogEntries]
	}
	return out
}

// SortNewestFirst orders events by descending timestamp. The analyzers
// assume newest-first input; restored or merged logs may arrive unsorted.
func SortNewestFirst(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp > events[j].Timestamp
	})
}

// Oldest returns the event with the smallest timestamp, or nil for an
// empty log.
func Oldest(events []Event) *Event {
	if len(events) == 0 {
		return nil
	}
	oldest := &events[0]
	for i := range events {
		if events[i].Timestamp < oldest.Timestamp {
			oldest = &events[i]
		}
	}
	return oldest
}
