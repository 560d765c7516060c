package classification

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
	"github.com/davidleathers/callshield-core/internal/domain/validation"
)

func strPtr(s string) *string { return &s }

func newEngine() *Engine {
	return NewEngine(validation.New())
}

func entry(t *testing.T, value string, kind rules.EntryKind, blocked bool) *rules.Entry {
	t.Helper()
	e, err := rules.NewEntry(value, kind, blocked, "", time.Now())
	require.NoError(t, err)
	return e
}

func TestClassify_BlockAllWinsRegardlessOfInput(t *testing.T) {
	e := newEngine()
	settings := rules.DefaultBlockSettings()
	settings.BlockAll = true

	inputs := []Input{
		{},
		{PhoneNumber: strPtr("+15551234567")},
		{SourceAddress: strPtr("8.8.8.8"), VoIP: true},
		{PhoneNumber: strPtr("+15551234567"), SourceAddress: strPtr("203.0.113.1"), VoIP: true},
	}

	for i, in := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			d := e.Classify(in, settings, rules.NewList())
			assert.True(t, d.Blocked)
			require.NotNil(t, d.Reason)
			assert.Equal(t, call.ReasonUserBlocked, *d.Reason)
		})
	}
}

func TestClassify_BlockAllPrecedesAllowList(t *testing.T) {
	e := newEngine()
	settings := rules.DefaultBlockSettings()
	settings.BlockAll = true
	list := rules.NewList(entry(t, "+15551234567", rules.KindPhone, false))

	// Total blocking is checked before the list; the allow entry does not
	// rescue the call.
	d := e.Classify(Input{PhoneNumber: strPtr("+15551234567")}, settings, list)
	assert.True(t, d.Blocked)
}

func TestClassify_AllowListOverridesSettingsRules(t *testing.T) {
	e := newEngine()
	settings := rules.DefaultBlockSettings()
	// "12345" is an invalid number, which would block under
	// BlockNoValidNumber, but the allow entry short-circuits.
	list := rules.NewList(entry(t, `^12345$`, rules.KindPattern, false))

	d := e.Classify(Input{PhoneNumber: strPtr("12345")}, settings, list)
	assert.False(t, d.Blocked)
	assert.Nil(t, d.Reason)
}

func TestClassify_BlockListEntry(t *testing.T) {
	e := newEngine()
	list := rules.NewList(entry(t, "+15551234567", rules.KindPhone, true))

	d := e.Classify(Input{PhoneNumber: strPtr("+15551234567")}, rules.DefaultBlockSettings(), list)
	assert.True(t, d.Blocked)
	require.NotNil(t, d.Reason)
	// Valid number, still blocked: the user's list wins.
	assert.Equal(t, call.ReasonUserBlocked, *d.Reason)
}

func TestClassify_AnonymousCaller(t *testing.T) {
	e := newEngine()

	d := e.Classify(Input{}, rules.DefaultBlockSettings(), rules.NewList())
	assert.True(t, d.Blocked)
	require.NotNil(t, d.Reason)
	assert.Equal(t, call.ReasonAnonymous, *d.Reason)

	settings := rules.DefaultBlockSettings()
	settings.BlockAnonymous = false
	d = e.Classify(Input{}, settings, rules.NewList())
	assert.False(t, d.Blocked)
}

func TestClassify_InvalidNumber(t *testing.T) {
	e := newEngine()

	d := e.Classify(Input{PhoneNumber: strPtr("12345")}, rules.DefaultBlockSettings(), rules.NewList())
	assert.True(t, d.Blocked)
	require.NotNil(t, d.Reason)
	assert.Equal(t, call.ReasonNoValidNumber, *d.Reason)
}

func TestClassify_ValidNumberPasses(t *testing.T) {
	e := newEngine()

	d := e.Classify(Input{PhoneNumber: strPtr("+15551234567")}, rules.DefaultBlockSettings(), rules.NewList())
	assert.False(t, d.Blocked)
	assert.Nil(t, d.Reason)
}

func TestClassify_SuspiciousAddress(t *testing.T) {
	e := newEngine()
	in := Input{
		PhoneNumber:   strPtr("+15551234567"),
		SourceAddress: strPtr("203.0.113.9"),
		VoIP:          true,
	}

	d := e.Classify(in, rules.DefaultBlockSettings(), rules.NewList())
	assert.True(t, d.Blocked)
	require.NotNil(t, d.Reason)
	assert.Equal(t, call.ReasonSuspiciousIP, *d.Reason)

	// Non-VoIP calls skip the address checks entirely.
	in.VoIP = false
	d = e.Classify(in, rules.DefaultBlockSettings(), rules.NewList())
	assert.False(t, d.Blocked)
}

func TestClassify_UnknownServer(t *testing.T) {
	e := newEngine()
	settings := rules.DefaultBlockSettings()
	settings.BlockAnonymous = false

	tests := []struct {
		name string
		addr *string
	}{
		{"missing address", nil},
		{"malformed address", strPtr("not-an-ip")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Classify(Input{SourceAddress: tt.addr, VoIP: true}, settings, rules.NewList())
			assert.True(t, d.Blocked)
			require.NotNil(t, d.Reason)
			assert.Equal(t, call.ReasonUnknownServer, *d.Reason)
		})
	}
}

func TestClassify_VoIPWithValidAddressPasses(t *testing.T) {
	e := newEngine()
	settings := rules.DefaultBlockSettings()
	settings.BlockAnonymous = false

	d := e.Classify(Input{SourceAddress: strPtr("8.8.8.8"), VoIP: true}, settings, rules.NewList())
	assert.False(t, d.Blocked)
}

func TestClassify_AllTogglesOffDefaultsToAllowing(t *testing.T) {
	e := newEngine()

	// Total absence of enabled rules: the engine never degrades to
	// blocking.
	d := e.Classify(Input{VoIP: true}, rules.BlockSettings{}, nil)
	assert.False(t, d.Blocked)
	assert.Nil(t, d.Reason)
}

func TestClassify_DoesNotMutateInputs(t *testing.T) {
	e := newEngine()
	phone := "+15551234567"
	in := Input{PhoneNumber: &phone}
	settings := rules.DefaultBlockSettings()
	list := rules.NewList(entry(t, "+15550000000", rules.KindPhone, true))
	before := list.Len()

	e.Classify(in, settings, list)

	assert.Equal(t, "+15551234567", phone)
	assert.Equal(t, before, list.Len())
	assert.Equal(t, rules.DefaultBlockSettings(), settings)
}

func TestShouldBlockHelpers(t *testing.T) {
	e := newEngine()
	list := rules.NewList(entry(t, "+15551234567", rules.KindPhone, true))

	assert.True(t, e.ShouldBlockNumber("+15551234567", rules.DefaultBlockSettings(), list))
	assert.False(t, e.ShouldBlockNumber("+15559999999", rules.DefaultBlockSettings(), list))
	assert.True(t, e.ShouldBlockAddress("203.0.113.4", rules.DefaultBlockSettings(), rules.NewList()))
}
