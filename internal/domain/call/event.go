package call

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/callshield-core/internal/domain/errors"
)

// Reason is the classification outcome attached to a blocked call.
type Reason string

const (
	ReasonAnonymous     Reason = "anonymous"
	ReasonUnknownServer Reason = "unknown_server"
	ReasonNoValidNumber Reason = "no_valid_number"
	ReasonSuspiciousIP  Reason = "suspicious_ip"
	ReasonUserBlocked   Reason = "user_blocked"
)

// Reasons lists every classification reason in a fixed order, used by the
// stats aggregator to emit fully populated per-reason maps.
var Reasons = []Reason{
	ReasonAnonymous,
	ReasonUnknownServer,
	ReasonNoValidNumber,
	ReasonSuspiciousIP,
	ReasonUserBlocked,
}

func (r Reason) Valid() bool {
	switch r {
	case ReasonAnonymous, ReasonUnknownServer, ReasonNoValidNumber,
		ReasonSuspiciousIP, ReasonUserBlocked:
		return true
	}
	return false
}

func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !r.Valid() {
		return "", errors.NewValidationError("INVALID_REASON", "unknown classification reason: "+s)
	}
	return r, nil
}

// Event is a single blocked-call record. Events are immutable once created
// and owned by the call log until pruned.
type Event struct {
	ID            uuid.UUID `json:"id"`
	PhoneNumber   *string   `json:"phone_number,omitempty"`
	SourceAddress *string   `json:"source_address,omitempty"`
	Timestamp     int64     `json:"timestamp"` // epoch milliseconds
	Reason        Reason    `json:"reason"`
	VoIP          bool      `json:"is_voip"`
}

// NewEvent creates a blocked-call event stamped at the given time.
func NewEvent(phoneNumber, sourceAddress *string, reason Reason, voip bool, at time.Time) (*Event, error) {
	if !reason.Valid() {
		return nil, errors.NewValidationError("INVALID_REASON", "unknown classification reason")
	}

	return &Event{
		ID:            uuid.New(),
		PhoneNumber:   copyOptional(phoneNumber),
		SourceAddress: copyOptional(sourceAddress),
		Timestamp:     at.UnixMilli(),
		Reason:        reason,
		VoIP:          voip,
	}, nil
}

// Time returns the event timestamp as a time.Time in the local zone.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// CallerIdentity returns the phone number if present, else the source
// address, else the "unknown" sentinel. Distinct identities feed the
// block-efficiency ratio.
func (e *Event) CallerIdentity() string {
	switch {
	case e.PhoneNumber != nil && *e.PhoneNumber != "":
		return *e.PhoneNumber
	case e.SourceAddress != nil && *e.SourceAddress != "":
		return *e.SourceAddress
	default:
		return UnknownCaller
	}
}

// UnknownCaller is the identity sentinel for events with neither a phone
// number nor a source address.
const UnknownCaller = "unknown"

func copyOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
