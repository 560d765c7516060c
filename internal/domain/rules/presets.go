package rules

import (
	"fmt"
	"time"
)

// SecurityLevel is a named bundle of preset list entries and settings
// toggles. Applying a level replaces every previously applied preset entry
// atomically; user-authored entries are untouched.
type SecurityLevel string

const (
	LevelLow    SecurityLevel = "low"
	LevelMedium SecurityLevel = "medium"
	LevelHigh   SecurityLevel = "high"
)

func (s SecurityLevel) Valid() bool {
	switch s {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// PresetPrefix namespaces identifiers of preset-generated entries so they
// can be told apart from user-authored ones and stripped on level change.
const PresetPrefix = "preset:"

type presetRule struct {
	value   string
	kind    EntryKind
	blocked bool
	notes   string
}

type presetGroup struct {
	category string
	rules    []presetRule
}

var telemarketingGroup = presetGroup{
	category: "telemarketing",
	rules: []presetRule{
		{`^0800`, KindPattern, true, "0800 telemarketing numbers"},
		{`^4002`, KindPattern, true, "4002 telemarketing numbers"},
		{`^\+55115[0-9]{3}`, KindPattern, true, "common SP telemarketing prefix"},
	},
}

var suspiciousAddressGroup = presetGroup{
	category: "suspicious-ip",
	rules: []presetRule{
		{`^192\.168\.0\.`, KindPattern, true, "suspicious local range"},
		{`^203\.0\.113\.`, KindPattern, true, "documentation range (RFC 5737)"},
		{`^198\.51\.100\.`, KindPattern, true, "documentation range (RFC 5737)"},
	},
}

var fraudGroup = presetGroup{
	category: "fraud",
	rules: []presetRule{
		{`^\+[0-9]{5,7}$`, KindPattern, true, "short international numbers (likely fraud)"},
		{`^\+234`, KindPattern, true, "Nigeria country code (frequent fraud origin)"},
		{`^\+1473`, KindPattern, true, "Grenada country code (frequent fraud origin)"},
	},
}

var emergencyGroup = presetGroup{
	category: "emergency",
	rules: []presetRule{
		{`^190$`, KindPattern, false, "police (Brazil)"},
		{`^192$`, KindPattern, false, "SAMU (Brazil)"},
		{`^193$`, KindPattern, false, "fire department (Brazil)"},
		{`^911$`, KindPattern, false, "emergency (US)"},
	},
}

func groupsForLevel(level SecurityLevel) []presetGroup {
	switch level {
	case LevelLow:
		return []presetGroup{fraudGroup}
	case LevelMedium:
		return []presetGroup{fraudGroup, telemarketingGroup, emergencyGroup}
	case LevelHigh:
		return []presetGroup{fraudGroup, telemarketingGroup, suspiciousAddressGroup, emergencyGroup}
	}
	return nil
}

// PresetEntries generates the entry set for a security level. Identifiers
// are deterministic per category and position; only the creation timestamp
// varies between applications.
func PresetEntries(level SecurityLevel, at time.Time) []*Entry {
	var out []*Entry
	ms := at.UnixMilli()
	for _, g := range groupsForLevel(level) {
		for i, r := range g.rules {
			id := fmt.Sprintf("%s%s:%d", PresetPrefix, g.category, i+1)
			// Preset values are curated, so compilation cannot fail; an
			// entry constructor error here is a programming error.
			e, err := newEntry(id, r.value, r.kind, r.blocked, r.notes, ms)
			if err != nil {
				panic(fmt.Sprintf("invalid preset rule %q: %v", r.value, err))
			}
			out = append(out, e)
		}
	}
	return out
}

// PresetSettings returns the settings bundle a level regenerates.
func PresetSettings(level SecurityLevel) BlockSettings {
	switch level {
	case LevelLow:
		return BlockSettings{
			BlockNoValidNumber: true,
			BlockSuspiciousIP:  true,
		}
	case LevelMedium:
		return BlockSettings{
			BlockAnonymous:     true,
			BlockNoValidNumber: true,
			BlockSuspiciousIP:  true,
		}
	case LevelHigh:
		return DefaultBlockSettings()
	}
	return DefaultBlockSettings()
}

// ApplyPreset strips every preset-namespaced entry and inserts the new
// level's set, preserving user-authored entries and their order.
func (l *List) ApplyPreset(level SecurityLevel, at time.Time) {
	kept := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if !e.IsPreset() {
			kept = append(kept, e)
		}
	}
	l.entries = append(PresetEntries(level, at), kept...)
}
