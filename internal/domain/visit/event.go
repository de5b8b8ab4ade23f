package visit

import (
	"strings"
	"time"
)

type EventKind string

const (
	EventConfirmed        EventKind = "confirmed"
	EventTimeout          EventKind = "timeout"
	EventHelp             EventKind = "help"
	EventNotMe            EventKind = "not_me"
	EventPatientCompleted EventKind = "patient_completed"
)

var reasonKinds = map[string]EventKind{
	"confirm":           EventConfirmed,
	"timeout":           EventTimeout,
	"help":              EventHelp,
	"not_me":            EventNotMe,
	"patient-completed": EventPatientCompleted,
}

// ParseReason maps an operator "reason" value to an event kind. ok is false
// for values this build does not know about.
func ParseReason(reason string) (kind EventKind, ok bool) {
	kind, ok = reasonKinds[strings.ToLower(strings.TrimSpace(reason))]
	return kind, ok
}

// Advances reports whether the event completes the current leg.
func (k EventKind) Advances() bool {
	return k == EventConfirmed || k == EventPatientCompleted
}

type OperatorEvent struct {
	Kind       EventKind `json:"kind"`
	SubjectID  string    `json:"subject_id"`
	ReceivedAt time.Time `json:"received_at"`
}
