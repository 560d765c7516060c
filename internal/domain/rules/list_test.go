package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEntry(t *testing.T, value string, kind EntryKind, blocked bool) *Entry {
	t.Helper()
	e, err := NewEntry(value, kind, blocked, "", time.Now())
	require.NoError(t, err)
	return e
}

func TestNewEntry_Validation(t *testing.T) {
	_, err := NewEntry("", KindPhone, true, "", time.Now())
	assert.Error(t, err)

	_, err = NewEntry("+15551234567", EntryKind("email"), true, "", time.Now())
	assert.Error(t, err)
}

func TestEntryMatches_Phone(t *testing.T) {
	e := mustEntry(t, "+15551234567", KindPhone, true)

	assert.True(t, e.Matches("+15551234567"))
	assert.True(t, e.Matches("1 (555) 123-4567")) // digits compare equal
	assert.False(t, e.Matches("+15559999999"))
	assert.False(t, e.Matches(""))
}

func TestEntryMatches_Address(t *testing.T) {
	e := mustEntry(t, "203.0.113.7", KindAddress, true)

	assert.True(t, e.Matches("203.0.113.7"))
	assert.False(t, e.Matches("203.0.113.70")) // literal comparison only
}

func TestEntryMatches_Pattern(t *testing.T) {
	e := mustEntry(t, `^0800`, KindPattern, true)

	assert.True(t, e.Matches("08001234567"))
	assert.False(t, e.Matches("5508001234"))
}

func TestEntryMatches_PatternCaseInsensitive(t *testing.T) {
	e := mustEntry(t, `^restricted$`, KindPattern, true)
	assert.True(t, e.Matches("RESTRICTED"))
}

func TestEntry_InvalidPatternNeverMatchesNeverPanics(t *testing.T) {
	e, err := NewEntry(`([`, KindPattern, true, "", time.Now())
	require.NoError(t, err) // invalid patterns are kept, marked, logged by caller

	assert.Error(t, e.PatternErr())
	assert.NotPanics(t, func() {
		assert.False(t, e.Matches("anything"))
	})
}

func TestList_AllowFirstPrecedence(t *testing.T) {
	l := NewList(
		mustEntry(t, "+15551234567", KindPhone, true),
		mustEntry(t, "+15551234567", KindPhone, false),
	)

	// The allow entry short-circuits: list rules never block this value.
	assert.True(t, l.MatchAllowed("+15551234567"))
	assert.False(t, l.MatchBlocked("+15551234567"))
}

func TestList_MatchBlocked(t *testing.T) {
	l := NewList(mustEntry(t, "+15551234567", KindPhone, true))

	assert.True(t, l.MatchBlocked("+15551234567"))
	assert.False(t, l.MatchBlocked("+15559999999"))
	assert.False(t, l.MatchBlocked(""))
}

func TestList_AddRemove(t *testing.T) {
	l := NewList()
	e := mustEntry(t, "+15551234567", KindPhone, true)
	l.Add(e)
	require.Equal(t, 1, l.Len())

	require.NoError(t, l.Remove(e.ID))
	assert.Equal(t, 0, l.Len())

	assert.Error(t, l.Remove("missing"))
}

func TestList_SearchAndFilter(t *testing.T) {
	spam, err := NewEntry("+15550001111", KindPhone, true, "persistent spammer", time.Now())
	require.NoError(t, err)
	work := mustEntry(t, "+15552223333", KindPhone, false)
	l := NewList(spam, work)

	found := l.Search("spammer")
	require.Len(t, found, 1)
	assert.Equal(t, spam.ID, found[0].ID)

	blocked := l.FilterByOutcome(true)
	require.Len(t, blocked, 1)
	assert.Equal(t, spam.ID, blocked[0].ID)
}

func TestList_JSONRoundTrip(t *testing.T) {
	l := NewList(
		mustEntry(t, `^0800`, KindPattern, true),
		mustEntry(t, "+15551234567", KindPhone, false),
	)

	data, err := json.Marshal(l)
	require.NoError(t, err)

	var restored List
	require.NoError(t, json.Unmarshal(data, &restored))
	require.Equal(t, l.Len(), restored.Len())

	// Patterns are recompiled on load and still match.
	assert.True(t, restored.MatchBlocked("08001234567"))
	assert.True(t, restored.MatchAllowed("+15551234567"))
}

func TestApplyPreset_ReplacesNotMerges(t *testing.T) {
	now := time.Now()
	user := mustEntry(t, "+15551234567", KindPhone, true)

	l := NewList(user)
	l.ApplyPreset(LevelHigh, now)
	highCount := l.Len()

	l.ApplyPreset(LevelMedium, now.Add(time.Minute))
	l.ApplyPreset(LevelHigh, now.Add(2*time.Minute))

	// Round trip high -> medium -> high leaves the same entry set as a
	// single application, modulo timestamps.
	assert.Equal(t, highCount, l.Len())

	ids := make(map[string]bool)
	for _, e := range l.Entries() {
		ids[e.ID] = true
	}
	assert.True(t, ids[user.ID], "user-authored entry must survive preset transitions")
	for _, e := range PresetEntries(LevelHigh, now) {
		assert.True(t, ids[e.ID], "missing preset entry %s", e.ID)
	}
}

func TestApplyPreset_LevelsDiffer(t *testing.T) {
	low := NewList()
	low.ApplyPreset(LevelLow, time.Now())
	high := NewList()
	high.ApplyPreset(LevelHigh, time.Now())

	assert.Less(t, low.Len(), high.Len())

	// High includes emergency allows alongside block rules.
	assert.NotEmpty(t, high.FilterByOutcome(false))
}

func TestPresetSettings(t *testing.T) {
	assert.False(t, PresetSettings(LevelLow).BlockAnonymous)
	assert.True(t, PresetSettings(LevelMedium).BlockAnonymous)
	assert.Equal(t, DefaultBlockSettings(), PresetSettings(LevelHigh))

	for _, level := range []SecurityLevel{LevelLow, LevelMedium, LevelHigh} {
		assert.False(t, PresetSettings(level).BlockAll, "presets never enable total blocking")
	}
}

func TestPresetEntries_Namespaced(t *testing.T) {
	for _, e := range PresetEntries(LevelHigh, time.Now()) {
		assert.True(t, e.IsPreset(), "preset entry %s must carry the preset namespace", e.ID)
		assert.NoError(t, e.PatternErr(), "curated preset %s must compile", e.Value)
	}
}
