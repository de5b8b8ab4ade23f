package inmemory

import (
	"sync"

	"roundsbot/internal/domain/visit"
)

type Snapshot struct {
	TaskTotal       uint64            `json:"task_total"`
	TaskCompleted   uint64            `json:"task_completed"`
	TaskFailed      uint64            `json:"task_failed"`
	TaskIncomplete  uint64            `json:"task_incomplete"`
	ByErrorKind     map[string]uint64 `json:"by_error_kind"`
	NavigationSent  uint64            `json:"navigation_sent"`
	NavigationRetry uint64            `json:"navigation_retry"`
	NavigationFail  uint64            `json:"navigation_fail"`
	UnmatchedEvents uint64            `json:"unmatched_events"`
	FeedConnects    uint64            `json:"feed_connects"`
	FeedMessages    map[string]uint64 `json:"feed_messages"`
	FeedDecodeError uint64            `json:"feed_decode_errors"`
}

type Recorder struct {
	mu         sync.Mutex
	completed  uint64
	failed     uint64
	incomplete uint64
	byKind     map[string]uint64
	navSent    uint64
	navRetry   uint64
	navFail    uint64
	unmatched  uint64
	connects   uint64
	messages   map[string]uint64
	decodeErrs uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		byKind:   map[string]uint64{},
		messages: map[string]uint64{},
	}
}

func (r *Recorder) RecordOutcome(outcome visit.Outcome, kind visit.ErrorKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch outcome {
	case visit.OutcomeCompleted:
		r.completed++
	case visit.OutcomeFailed:
		r.failed++
	default:
		r.incomplete++
	}
	if kind != visit.ErrorNone {
		r.byKind[string(kind)]++
	}
}

func (r *Recorder) RecordNavigation(attempts int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempts > 1 {
		r.navRetry += uint64(attempts - 1)
	}
	if ok {
		r.navSent++
	} else {
		r.navFail++
	}
}

func (r *Recorder) RecordUnmatchedEvent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unmatched++
}

func (r *Recorder) RecordFeedConnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
}

func (r *Recorder) RecordFeedMessage(feed string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[feed]++
}

func (r *Recorder) RecordFeedDecodeError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decodeErrs++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		TaskCompleted:   r.completed,
		TaskFailed:      r.failed,
		TaskIncomplete:  r.incomplete,
		TaskTotal:       r.completed + r.failed + r.incomplete,
		ByErrorKind:     make(map[string]uint64, len(r.byKind)),
		NavigationSent:  r.navSent,
		NavigationRetry: r.navRetry,
		NavigationFail:  r.navFail,
		UnmatchedEvents: r.unmatched,
		FeedConnects:    r.connects,
		FeedMessages:    make(map[string]uint64, len(r.messages)),
		FeedDecodeError: r.decodeErrs,
	}
	for k, v := range r.byKind {
		out.ByErrorKind[k] = v
	}
	for k, v := range r.messages {
		out.FeedMessages[k] = v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
