package patterns

import "github.com/google/uuid"

// AttackType labels a detected abusive calling pattern.
type AttackType string

const (
	AttackSpam     AttackType = "spam"
	AttackRobocall AttackType = "robocall"
	AttackTargeted AttackType = "targeted"
)

// Attack is a detected signature over the trailing 24-hour window,
// referencing the supporting call events.
type Attack struct {
	Type     AttackType  `json:"type"`
	Evidence string      `json:"evidence"`
	EventIDs []uuid.UUID `json:"event_ids"`
}

// RepeatCaller is a caller identity seen at or above the repeat threshold.
type RepeatCaller struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// RepeatCallers groups repeat callers by identifier kind, each sorted
// descending by count.
type RepeatCallers struct {
	ByPhone   []RepeatCaller `json:"by_phone"`
	ByAddress []RepeatCaller `json:"by_address"`
}

// HourCount is a per-hour bucket of blocked calls.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}
