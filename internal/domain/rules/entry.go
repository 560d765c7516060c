package rules

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/callshield-core/internal/domain/errors"
	"github.com/davidleathers/callshield-core/internal/domain/validation"
)

// EntryKind distinguishes how an entry's value is matched.
type EntryKind string

const (
	KindPhone   EntryKind = "phone"
	KindAddress EntryKind = "address"
	KindPattern EntryKind = "pattern"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindPhone, KindAddress, KindPattern:
		return true
	}
	return false
}

// Entry is a single block- or allow-list rule. Pattern entries compile
// their value exactly once, at construction; a value that fails to compile
// is kept with an invalid marker and never matches.
type Entry struct {
	ID      string    `json:"id"`
	Value   string    `json:"value"`
	Kind    EntryKind `json:"type"`
	Blocked bool      `json:"is_blocked"`
	AddedAt int64     `json:"added_at"` // epoch milliseconds
	Notes   string    `json:"notes,omitempty"`

	pattern    *regexp.Regexp
	patternErr error
}

// NewEntry creates a user-authored entry with a fresh identifier.
func NewEntry(value string, kind EntryKind, blocked bool, notes string, at time.Time) (*Entry, error) {
	return newEntry(uuid.NewString(), value, kind, blocked, notes, at.UnixMilli())
}

func newEntry(id, value string, kind EntryKind, blocked bool, notes string, addedAt int64) (*Entry, error) {
	if strings.TrimSpace(value) == "" {
		return nil, errors.NewValidationError("EMPTY_VALUE", "entry value cannot be empty")
	}
	if !kind.Valid() {
		return nil, errors.NewValidationError("INVALID_KIND", "unknown entry kind: "+string(kind))
	}

	e := &Entry{
		ID:      id,
		Value:   value,
		Kind:    kind,
		Blocked: blocked,
		AddedAt: addedAt,
		Notes:   notes,
	}
	e.compile()
	return e, nil
}

func (e *Entry) compile() {
	if e.Kind != KindPattern {
		return
	}
	re, err := regexp.Compile("(?i)" + e.Value)
	if err != nil {
		e.pattern = nil
		e.patternErr = err
		return
	}
	e.pattern = re
	e.patternErr = nil
}

// PatternErr reports the compile failure for an invalid pattern entry, nil
// otherwise. Callers log it as a configuration defect; matching itself
// treats the entry as a non-match.
func (e *Entry) PatternErr() error {
	return e.patternErr
}

// Matches tests an observed value against this entry. Phone values compare
// by normalized digits, addresses by literal string, patterns by
// case-insensitive regular expression.
func (e *Entry) Matches(value string) bool {
	if value == "" {
		return false
	}
	switch e.Kind {
	case KindPhone:
		return validation.NormalizePhoneNumber(e.Value) == validation.NormalizePhoneNumber(value)
	case KindAddress:
		return e.Value == value
	case KindPattern:
		if e.pattern == nil {
			return false
		}
		return e.pattern.MatchString(value)
	}
	return false
}

// IsPreset reports whether this entry was generated by a security preset.
func (e *Entry) IsPreset() bool {
	return strings.HasPrefix(e.ID, PresetPrefix)
}

type entryJSON struct {
	ID      string    `json:"id"`
	Value   string    `json:"value"`
	Kind    EntryKind `json:"type"`
	Blocked bool      `json:"is_blocked"`
	AddedAt int64     `json:"added_at"`
	Notes   string    `json:"notes,omitempty"`
}

func (e *Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		ID:      e.ID,
		Value:   e.Value,
		Kind:    e.Kind,
		Blocked: e.Blocked,
		AddedAt: e.AddedAt,
		Notes:   e.Notes,
	})
}

// UnmarshalJSON restores an entry and recompiles its pattern. Stored
// invalid patterns survive the round trip as permanent non-matches.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.ID = raw.ID
	e.Value = raw.Value
	e.Kind = raw.Kind
	e.Blocked = raw.Blocked
	e.AddedAt = raw.AddedAt
	e.Notes = raw.Notes
	e.compile()
	return nil
}

// RehydratedEntry rebuilds an entry from stored fields, for example a
// remote-store row. Unlike NewEntry it preserves the identifier.
func RehydratedEntry(id, value string, kind EntryKind, blocked bool, notes string, addedAt int64) (*Entry, error) {
	return newEntry(id, value, kind, blocked, notes, addedAt)
}
