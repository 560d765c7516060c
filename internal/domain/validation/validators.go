package validation

import (
	"regexp"
	"strconv"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// defaultSuspiciousPrefixes is the policy set of known-bad address
// prefixes. Documentation/test ranges (RFC 5737) qualify; private ranges
// are deliberately not listed because they fail public-routability checks
// for a different reason and must not be reported as suspicious.
var defaultSuspiciousPrefixes = []string{
	"192.0.2.",
	"198.51.100.",
	"203.0.113.",
}

// defaultKnownServers are well-known VoIP relay addresses accepted without
// further scrutiny.
var defaultKnownServers = []string{
	"8.8.8.8",
	"1.1.1.1",
	"208.67.222.222",
	"9.9.9.9",
}

// Validator performs phone-number and network-address checks, memoizing
// results per exact input. All checks are pure; clearing the caches only
// costs recomputation.
type Validator struct {
	phoneCache      *Cache[bool]
	addressCache    *Cache[bool]
	suspiciousCache *Cache[bool]
	formatCache     *Cache[string]

	suspiciousPrefixes []string
	knownServers       map[string]struct{}
}

// Option configures a Validator.
type Option func(*Validator)

// WithCacheSize bounds every memoization cache.
func WithCacheSize(n int) Option {
	return func(v *Validator) {
		v.phoneCache = NewCache[bool](n)
		v.addressCache = NewCache[bool](n)
		v.suspiciousCache = NewCache[bool](n)
		v.formatCache = NewCache[string](n)
	}
}

// WithSuspiciousPrefixes replaces the policy set of known-bad prefixes.
func WithSuspiciousPrefixes(prefixes []string) Option {
	return func(v *Validator) {
		v.suspiciousPrefixes = append([]string(nil), prefixes...)
	}
}

// WithKnownServers replaces the known-server set.
func WithKnownServers(servers []string) Option {
	return func(v *Validator) {
		v.knownServers = make(map[string]struct{}, len(servers))
		for _, s := range servers {
			v.knownServers[s] = struct{}{}
		}
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		phoneCache:         NewCache[bool](DefaultCacheSize),
		addressCache:       NewCache[bool](DefaultCacheSize),
		suspiciousCache:    NewCache[bool](DefaultCacheSize),
		formatCache:        NewCache[string](DefaultCacheSize),
		suspiciousPrefixes: defaultSuspiciousPrefixes,
	}
	v.knownServers = make(map[string]struct{}, len(defaultKnownServers))
	for _, s := range defaultKnownServers {
		v.knownServers[s] = struct{}{}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// IsValidPhoneNumber reports whether the value is an international-leaning
// number: 10 to 15 digits with an optional leading '+'.
func (v *Validator) IsValidPhoneNumber(value string) bool {
	key := stripSpaces(value)
	if cached, ok := v.phoneCache.Get(key); ok {
		return cached
	}
	valid := phonePattern.MatchString(key)
	v.phoneCache.Set(key, valid)
	return valid
}

// IsValidAddress reports whether the value is a dotted-quad IPv4 address.
func (v *Validator) IsValidAddress(value string) bool {
	if cached, ok := v.addressCache.Get(value); ok {
		return cached
	}
	valid := isDottedQuad(value)
	v.addressCache.Set(value, valid)
	return valid
}

// IsSuspiciousAddress reports whether the address falls inside the policy
// set of known-bad prefixes. Private-range addresses are never suspicious.
func (v *Validator) IsSuspiciousAddress(value string) bool {
	if cached, ok := v.suspiciousCache.Get(value); ok {
		return cached
	}
	suspicious := false
	if !isPrivateAddress(value) {
		for _, prefix := range v.suspiciousPrefixes {
			if strings.HasPrefix(value, prefix) {
				suspicious = true
				break
			}
		}
	}
	v.suspiciousCache.Set(value, suspicious)
	return suspicious
}

// IsKnownServer reports whether the address belongs to a known VoIP relay.
func (v *Validator) IsKnownServer(value string) bool {
	_, ok := v.knownServers[value]
	return ok
}

// AddKnownServer registers an additional trusted relay address.
func (v *Validator) AddKnownServer(value string) {
	v.knownServers[value] = struct{}{}
}

// FormatPhoneNumber renders a number for display, memoized. Brazilian
// numbers get the national grouping; other international numbers a generic
// one.
func (v *Validator) FormatPhoneNumber(value string) string {
	key := stripSpaces(value)
	if cached, ok := v.formatCache.Get(key); ok {
		return cached
	}

	formatted := key
	switch {
	case strings.HasPrefix(key, "+55") && len(key) >= 12:
		formatted = key[:3] + " " + key[3:5] + " " + key[5:10] + "-" + key[10:]
	case strings.HasPrefix(key, "+") && len(key) > 10:
		formatted = key[:2] + " " + key[2:5] + " " + key[5:8] + "-" + key[8:]
	}

	v.formatCache.Set(key, formatted)
	return formatted
}

// ClearCaches drops all memoized results.
func (v *Validator) ClearCaches() {
	v.phoneCache.Clear()
	v.addressCache.Clear()
	v.suspiciousCache.Clear()
	v.formatCache.Clear()
}

// NormalizePhoneNumber strips every non-digit character, so "+1 (555)
// 123-4567" and "15551234567" compare equal in list lookups.
func NormalizePhoneNumber(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripSpaces(value string) string {
	return strings.Join(strings.Fields(value), "")
}

func isDottedQuad(value string) bool {
	parts := strings.Split(value, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		if len(p) > 1 && p[0] == '0' {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

func isPrivateAddress(value string) bool {
	if !isDottedQuad(value) {
		return false
	}
	switch {
	case strings.HasPrefix(value, "10."):
		return true
	case strings.HasPrefix(value, "192.168."):
		return true
	case strings.HasPrefix(value, "172."):
		second, _ := strconv.Atoi(strings.Split(value, ".")[1])
		return second >= 16 && second <= 31
	}
	return false
}
