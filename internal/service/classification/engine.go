package classification

import (
	"github.com/davidleathers/callshield-core/internal/domain/call"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
	"github.com/davidleathers/callshield-core/internal/domain/validation"
)

// Input describes an inbound call to be classified. Both identifiers are
// optional; a VoIP call carries a source address instead of (or alongside)
// a caller ID.
type Input struct {
	PhoneNumber   *string
	SourceAddress *string
	VoIP          bool
}

// Decision is the classification outcome. Reason is nil when the call is
// allowed.
type Decision struct {
	Blocked bool         `json:"blocked"`
	Reason  *call.Reason `json:"reason"`
}

// Engine decides whether an inbound call is blocked and why. Classify is
// pure: no I/O, no mutation of inputs, safe to call from any goroutine.
type Engine struct {
	validator *validation.Validator
}

func NewEngine(v *validation.Validator) *Engine {
	return &Engine{validator: v}
}

// Classify evaluates the blocking rules in fixed order; the first matching
// rule wins and no further checks run.
//
//  1. total blocking
//  2. allow-list match (overrides everything below)
//  3. block-list match
//  4. anonymous caller
//  5. invalid phone number
//  6. suspicious source address (VoIP)
//  7. unknown server (VoIP without a valid address)
func (e *Engine) Classify(in Input, settings rules.BlockSettings, list *rules.List) Decision {
	if settings.BlockAll {
		return blocked(call.ReasonUserBlocked)
	}

	phone := optional(in.PhoneNumber)
	address := optional(in.SourceAddress)

	if list != nil {
		if list.MatchAllowed(phone) || list.MatchAllowed(address) {
			return allowed()
		}
		if list.MatchBlocked(phone) || list.MatchBlocked(address) {
			return blocked(call.ReasonUserBlocked)
		}
	}

	if phone == "" && settings.BlockAnonymous {
		return blocked(call.ReasonAnonymous)
	}

	if phone != "" && settings.BlockNoValidNumber && !e.validator.IsValidPhoneNumber(phone) {
		return blocked(call.ReasonNoValidNumber)
	}

	if address != "" && in.VoIP && settings.BlockSuspiciousIP && e.validator.IsSuspiciousAddress(address) {
		return blocked(call.ReasonSuspiciousIP)
	}

	if in.VoIP && settings.BlockUnknownServers && (address == "" || !e.validator.IsValidAddress(address)) {
		return blocked(call.ReasonUnknownServer)
	}

	return allowed()
}

// ShouldBlockNumber is a convenience wrapper classifying a bare phone
// number as a non-VoIP call.
func (e *Engine) ShouldBlockNumber(number string, settings rules.BlockSettings, list *rules.List) bool {
	return e.Classify(Input{PhoneNumber: &number}, settings, list).Blocked
}

// ShouldBlockAddress is a convenience wrapper classifying a bare source
// address as a VoIP call.
func (e *Engine) ShouldBlockAddress(address string, settings rules.BlockSettings, list *rules.List) bool {
	return e.Classify(Input{SourceAddress: &address, VoIP: true}, settings, list).Blocked
}

func blocked(r call.Reason) Decision {
	return Decision{Blocked: true, Reason: &r}
}

func allowed() Decision {
	return Decision{}
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
