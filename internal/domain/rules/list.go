package rules

import (
	"encoding/json"
	"strings"

	"github.com/davidleathers/callshield-core/internal/domain/errors"
)

// List is an ordered custom list, newest entries first. Lookup precedence
// is allow-first: an allow match suppresses every block entry for that
// value. List is not safe for concurrent mutation; owners guard it.
type List struct {
	entries []*Entry
}

func NewList(entries ...*Entry) *List {
	l := &List{}
	for _, e := range entries {
		if e != nil {
			l.entries = append(l.entries, e)
		}
	}
	return l
}

// Add inserts an entry at the head of the list.
func (l *List) Add(e *Entry) {
	l.entries = append([]*Entry{e}, l.entries...)
}

// Remove deletes the entry with the given identifier.
func (l *List) Remove(id string) error {
	for i, e := range l.entries {
		if e.ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return nil
		}
	}
	return errors.ErrEntryNotFound
}

func (l *List) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the backing slice. The entries themselves are
// shared; they are immutable after construction.
func (l *List) Entries() []*Entry {
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// MatchAllowed reports whether any allow entry matches the value.
func (l *List) MatchAllowed(value string) bool {
	return l.match(value, false) != nil
}

// MatchBlocked reports whether any block entry matches the value, honoring
// allow-first precedence: a value with an allow match is never blocked by
// list rules.
func (l *List) MatchBlocked(value string) bool {
	if l.MatchAllowed(value) {
		return false
	}
	return l.match(value, true) != nil
}

func (l *List) match(value string, blocked bool) *Entry {
	if value == "" {
		return nil
	}
	for _, e := range l.entries {
		if e.Blocked != blocked {
			continue
		}
		if e.Matches(value) {
			return e
		}
	}
	return nil
}

// FilterByOutcome returns the entries with the given block flag.
func (l *List) FilterByOutcome(blocked bool) []*Entry {
	var out []*Entry
	for _, e := range l.entries {
		if e.Blocked == blocked {
			out = append(out, e)
		}
	}
	return out
}

// Search returns entries whose value or notes contain the term,
// case-insensitively.
func (l *List) Search(term string) []*Entry {
	term = strings.ToLower(term)
	var out []*Entry
	for _, e := range l.entries {
		if strings.Contains(strings.ToLower(e.Value), term) ||
			strings.Contains(strings.ToLower(e.Notes), term) {
			out = append(out, e)
		}
	}
	return out
}

// InvalidPatterns returns the pattern entries that failed to compile, so
// callers can surface them as configuration defects.
func (l *List) InvalidPatterns() []*Entry {
	var out []*Entry
	for _, e := range l.entries {
		if e.PatternErr() != nil {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a shallow copy sharing the immutable entries.
func (l *List) Clone() *List {
	return NewList(l.entries...)
}

func (l *List) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *List) UnmarshalJSON(data []byte) error {
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.entries = entries
	return nil
}
