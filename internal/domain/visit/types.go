package visit

import "time"

type Assignment struct {
	Room       string    `json:"room"`
	Bed        string    `json:"bed"`
	BatchID    string    `json:"batch_id"`
	ReceivedAt time.Time `json:"received_at"`
}

type PrecisionMode string

const (
	PrecisionApproximate PrecisionMode = "approximate"
	PrecisionPrecise     PrecisionMode = "precise"
)

type NavigationCommand struct {
	Target        Pose          `json:"target_pose"`
	YawRequired   bool          `json:"yaw_required"`
	Precision     PrecisionMode `json:"precision_mode"`
	MaxRetries    int           `json:"max_retries"`
	LocationLabel string        `json:"location"`
}

type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseResolvingLocation     Phase = "resolving_location"
	PhaseAwaitingNavigation    Phase = "awaiting_navigation"
	PhaseAwaitingOperatorEvent Phase = "awaiting_operator_event"
	PhaseCompleted             Phase = "completed"
	PhaseFailed                Phase = "failed"
)

// InFlight reports whether an assignment holds the robot in this phase.
func (p Phase) InFlight() bool {
	switch p {
	case PhaseResolvingLocation, PhaseAwaitingNavigation, PhaseAwaitingOperatorEvent:
		return true
	default:
		return false
	}
}

type ErrorKind string

const (
	ErrorNone             ErrorKind = ""
	ErrorConnection       ErrorKind = "connection_error"
	ErrorTimeout          ErrorKind = "timeout"
	ErrorInvalidPayload   ErrorKind = "invalid_payload"
	ErrorMissingField     ErrorKind = "missing_field"
	ErrorUpstreamRejected ErrorKind = "upstream_rejected"
	ErrorNotFound         ErrorKind = "not_found"
	ErrorRetryExhausted   ErrorKind = "retry_exhausted"
	ErrorOperatorSkipped  ErrorKind = "operator_skipped"
	ErrorInterrupted      ErrorKind = "interrupted"
	ErrorUnknown          ErrorKind = "unknown"
)

type TaskState struct {
	CurrentAssignment *Assignment `json:"current_assignment"`
	CurrentLeg        *Leg        `json:"current_leg,omitempty"`
	Phase             Phase       `json:"phase"`
	RetryCount        int         `json:"retry_count"`
	LastError         ErrorKind   `json:"last_error,omitempty"`
	LastErrorDetail   string      `json:"last_error_detail,omitempty"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Clone returns a copy that shares no pointers with s.
func (s TaskState) Clone() TaskState {
	out := s
	if s.CurrentAssignment != nil {
		a := *s.CurrentAssignment
		out.CurrentAssignment = &a
	}
	if s.CurrentLeg != nil {
		l := *s.CurrentLeg
		out.CurrentLeg = &l
	}
	return out
}
