package visit

import "time"

type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
	OutcomeIncomplete Outcome = "incomplete"
)

type LegStatus string

const (
	LegStatusDone    LegStatus = "done"
	LegStatusFailed  LegStatus = "failed"
	LegStatusSkipped LegStatus = "skipped"
)

type LegRecord struct {
	Leg      Leg       `json:"leg"`
	Status   LegStatus `json:"status"`
	Attempts int       `json:"attempts"`
	Event    EventKind `json:"event,omitempty"`
	Error    ErrorKind `json:"error,omitempty"`
}

// TaskRecord is one journal line: the final outcome of an assignment.
type TaskRecord struct {
	Assignment  Assignment  `json:"assignment"`
	Outcome     Outcome     `json:"outcome"`
	Legs        []LegRecord `json:"legs"`
	Error       ErrorKind   `json:"error,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	IsCompleted bool        `json:"is_completed"`
	IsFailed    bool        `json:"is_failed"`
}

func (r *TaskRecord) Finish(outcome Outcome, kind ErrorKind, detail string, at time.Time) {
	r.Outcome = outcome
	r.Error = kind
	r.Detail = detail
	r.FinishedAt = at
	r.IsCompleted = outcome == OutcomeCompleted
	r.IsFailed = outcome != OutcomeCompleted
}
