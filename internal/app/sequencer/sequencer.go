// Package sequencer drives one assignment at a time through its legs.
//
// The Sequencer owns the TaskState. Only the goroutine running Run mutates
// it; other goroutines talk to the Sequencer through two bounded queues
// (Submit for assignments, Deliver for operator events) and read a published
// copy through State.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"
)

type Resolver interface {
	Resolve(name string) (visit.Pose, error)
}

type Config struct {
	Resolver  Resolver
	Navigator ports.Navigator
	Journal   ports.TaskJournal
	Feed      ports.NextRequester
	Metrics   ports.TaskMetrics
	Logger    *slog.Logger
	Now       func() time.Time
	After     func(time.Duration) <-chan time.Time

	Plan visit.LegPlan
	// BackendRetries is passed to the navigation backend as fail_retry_count.
	BackendRetries int
	// EventTimeout bounds the wait for an operator event on one leg. Zero
	// waits forever.
	EventTimeout   time.Duration
	QueueSize      int
	EventQueueSize int
	DedupeWindow   int
	JournalTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Plan:           visit.DefaultLegPlan(),
		BackendRetries: 2,
		EventTimeout:   10 * time.Minute,
		QueueSize:      64,
		EventQueueSize: 64,
		DedupeWindow:   1024,
		JournalTimeout: 5 * time.Second,
	}
}

type Sequencer struct {
	cfg         Config
	assignments chan visit.Assignment
	events      chan visit.OperatorEvent
	published   atomic.Pointer[visit.TaskState]

	state     visit.TaskState
	seen      map[string]struct{}
	seenOrder []string
}

func New(cfg Config) *Sequencer {
	def := DefaultConfig()
	if cfg.Plan == (visit.LegPlan{}) {
		cfg.Plan = def.Plan
	}
	if cfg.BackendRetries < 0 {
		cfg.BackendRetries = 0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = def.EventQueueSize
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = def.DedupeWindow
	}
	if cfg.JournalTimeout <= 0 {
		cfg.JournalTimeout = def.JournalTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	s := &Sequencer{
		cfg:         cfg,
		assignments: make(chan visit.Assignment, cfg.QueueSize),
		events:      make(chan visit.OperatorEvent, cfg.EventQueueSize),
		seen:        make(map[string]struct{}),
	}
	s.state = visit.TaskState{Phase: visit.PhaseIdle, UpdatedAt: cfg.Now()}
	s.publish()
	return s
}

// Submit queues an assignment. It blocks while the queue is full.
func (s *Sequencer) Submit(ctx context.Context, a visit.Assignment) error {
	select {
	case s.assignments <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver queues an operator event without blocking.
func (s *Sequencer) Deliver(ev visit.OperatorEvent) error {
	select {
	case s.events <- ev:
		return nil
	default:
		return fmt.Errorf("operator event %s for %q: %w", ev.Kind, ev.SubjectID, ports.ErrQueueFull)
	}
}

// State returns a copy of the last published TaskState.
func (s *Sequencer) State() visit.TaskState {
	return s.published.Load().Clone()
}

// Pending is the number of assignments waiting behind the current one.
func (s *Sequencer) Pending() int {
	return len(s.assignments)
}

func (s *Sequencer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case a := <-s.assignments:
			s.process(ctx, a)
		case ev := <-s.events:
			s.unmatched(ev)
		}
	}
}

type result struct {
	outcome visit.Outcome
	kind    visit.ErrorKind
	detail  string
}

func (s *Sequencer) process(ctx context.Context, a visit.Assignment) {
	logger := s.cfg.Logger.With("batch_id", a.BatchID, "room", a.Room, "bed", a.Bed)
	if a.BatchID == "" {
		logger.Warn("assignment without batch id dropped")
		return
	}
	if _, dup := s.seen[a.BatchID]; dup {
		logger.Info("duplicate assignment dropped")
		return
	}
	s.remember(a.BatchID)

	rec := visit.TaskRecord{Assignment: a, StartedAt: s.cfg.Now()}
	s.state = visit.TaskState{CurrentAssignment: &a}
	logger.Info("assignment started")

	res := s.runLegs(ctx, logger, a, &rec)

	switch res.outcome {
	case visit.OutcomeCompleted:
		s.transition(visit.PhaseCompleted)
	default:
		s.state.LastError = res.kind
		s.state.LastErrorDetail = res.detail
		s.transition(visit.PhaseFailed)
	}
	rec.Finish(res.outcome, res.kind, res.detail, s.cfg.Now())
	s.appendRecord(ctx, logger, rec)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordOutcome(res.outcome, res.kind)
	}
	if res.outcome == visit.OutcomeCompleted {
		logger.Info("assignment completed")
	} else {
		logger.Warn("assignment failed", "outcome", res.outcome, "error", res.kind, "detail", res.detail)
	}

	s.state.CurrentAssignment = nil
	s.state.CurrentLeg = nil
	s.state.RetryCount = 0
	s.transition(visit.PhaseIdle)

	if res.outcome != visit.OutcomeIncomplete && s.cfg.Feed != nil {
		s.cfg.Feed.RequestNext(ports.NextRequest{Room: a.Room, Bed: a.Bed})
	}
}

func (s *Sequencer) runLegs(ctx context.Context, logger *slog.Logger, a visit.Assignment, rec *visit.TaskRecord) result {
	legs := s.cfg.Plan.Legs(a)
	for i, leg := range legs {
		res, legRec := s.runLeg(ctx, logger, a, leg)
		rec.Legs = append(rec.Legs, legRec)
		if res.outcome == visit.OutcomeCompleted {
			continue
		}
		for _, rest := range legs[i+1:] {
			rec.Legs = append(rec.Legs, visit.LegRecord{Leg: rest, Status: visit.LegStatusSkipped})
		}
		return res
	}
	return result{outcome: visit.OutcomeCompleted}
}

func (s *Sequencer) runLeg(ctx context.Context, logger *slog.Logger, a visit.Assignment, leg visit.Leg) (result, visit.LegRecord) {
	legRec := visit.LegRecord{Leg: leg, Status: visit.LegStatusFailed}
	logger = logger.With("leg", leg.Kind, "location", leg.Location)

	s.state.CurrentLeg = &leg
	s.state.RetryCount = 0
	s.transition(visit.PhaseResolvingLocation)
	pose, err := s.cfg.Resolver.Resolve(leg.Location)
	if err != nil {
		legRec.Error = visit.ErrorNotFound
		return result{outcome: visit.OutcomeFailed, kind: visit.ErrorNotFound, detail: err.Error()}, legRec
	}

	s.transition(visit.PhaseAwaitingNavigation)
	dispatched := s.cfg.Now()
	ack, err := s.cfg.Navigator.MoveTo(ctx, leg.Command(pose, s.cfg.BackendRetries))
	if err != nil {
		var exhausted *ports.RetryExhaustedError
		if errors.As(err, &exhausted) {
			legRec.Attempts = exhausted.Attempts
			s.state.RetryCount = max(exhausted.Attempts-1, 0)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordNavigation(legRec.Attempts, false)
		}
		if ctx.Err() != nil {
			legRec.Error = visit.ErrorInterrupted
			return result{outcome: visit.OutcomeIncomplete, kind: visit.ErrorInterrupted, detail: "shutdown during navigation"}, legRec
		}
		kind := KindOf(err)
		legRec.Error = kind
		return result{outcome: visit.OutcomeFailed, kind: kind, detail: err.Error()}, legRec
	}
	legRec.Attempts = ack.Attempts
	s.state.RetryCount = max(ack.Attempts-1, 0)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordNavigation(ack.Attempts, true)
	}
	logger.Info("navigation acknowledged", "x", pose.X, "y", pose.Y, "yaw", pose.Yaw, "attempts", ack.Attempts)

	s.transition(visit.PhaseAwaitingOperatorEvent)
	ev, res, ok := s.awaitEvent(ctx, a, dispatched)
	if !ok {
		legRec.Error = res.kind
		return res, legRec
	}
	legRec.Event = ev.Kind
	if !ev.Kind.Advances() {
		legRec.Error = visit.ErrorOperatorSkipped
		return result{
			outcome: visit.OutcomeFailed,
			kind:    visit.ErrorOperatorSkipped,
			detail:  fmt.Sprintf("operator reported %s at %s", ev.Kind, leg.Location),
		}, legRec
	}
	legRec.Status = visit.LegStatusDone
	logger.Info("leg completed", "event", ev.Kind)
	return result{outcome: visit.OutcomeCompleted}, legRec
}

// awaitEvent blocks until an event for a arrives. Events for any other
// subject, and events received before the leg's goal was dispatched, are
// logged as unmatched and discarded. An event without ReceivedAt is never
// treated as early.
func (s *Sequencer) awaitEvent(ctx context.Context, a visit.Assignment, since time.Time) (visit.OperatorEvent, result, bool) {
	var timeout <-chan time.Time
	if s.cfg.EventTimeout > 0 {
		timeout = s.cfg.After(s.cfg.EventTimeout)
	}
	for {
		select {
		case <-ctx.Done():
			return visit.OperatorEvent{}, result{outcome: visit.OutcomeIncomplete, kind: visit.ErrorInterrupted, detail: "shutdown while awaiting operator event"}, false
		case <-timeout:
			return visit.OperatorEvent{}, result{outcome: visit.OutcomeFailed, kind: visit.ErrorTimeout, detail: fmt.Sprintf("no operator event within %s", s.cfg.EventTimeout)}, false
		case ev := <-s.events:
			if ev.SubjectID != a.BatchID {
				s.unmatched(ev)
				continue
			}
			if !ev.ReceivedAt.IsZero() && ev.ReceivedAt.Before(since) {
				s.cfg.Logger.Warn("operator event predates current leg", "kind", ev.Kind, "batch_id", ev.SubjectID, "received_at", ev.ReceivedAt, "leg_dispatched_at", since)
				s.unmatched(ev)
				continue
			}
			return ev, result{}, true
		}
	}
}

func (s *Sequencer) unmatched(ev visit.OperatorEvent) {
	current := ""
	if s.state.CurrentAssignment != nil {
		current = s.state.CurrentAssignment.BatchID
	}
	s.cfg.Logger.Warn("unmatched operator event discarded", "kind", ev.Kind, "subject_id", ev.SubjectID, "current_batch_id", current, "phase", s.state.Phase)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordUnmatchedEvent()
	}
}

func (s *Sequencer) appendRecord(ctx context.Context, logger *slog.Logger, rec visit.TaskRecord) {
	if s.cfg.Journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.JournalTimeout)
	defer cancel()
	if err := s.cfg.Journal.Append(jctx, rec); err != nil {
		logger.Error("journal append failed", "error", err)
	}
}

func (s *Sequencer) transition(phase visit.Phase) {
	s.state.Phase = phase
	s.state.UpdatedAt = s.cfg.Now()
	s.publish()
	s.cfg.Logger.Debug("task phase", "phase", phase)
}

func (s *Sequencer) publish() {
	snap := s.state.Clone()
	s.published.Store(&snap)
}

func (s *Sequencer) remember(batchID string) {
	s.seen[batchID] = struct{}{}
	s.seenOrder = append(s.seenOrder, batchID)
	if len(s.seenOrder) > s.cfg.DedupeWindow {
		delete(s.seen, s.seenOrder[0])
		s.seenOrder = s.seenOrder[1:]
	}
}

// KindOf classifies an error into the task error taxonomy.
func KindOf(err error) visit.ErrorKind {
	switch {
	case err == nil:
		return visit.ErrorNone
	case errors.Is(err, ports.ErrRetryExhausted):
		return visit.ErrorRetryExhausted
	case errors.Is(err, ports.ErrUpstreamRejected):
		return visit.ErrorUpstreamRejected
	case errors.Is(err, ports.ErrNotFound):
		return visit.ErrorNotFound
	case errors.Is(err, ports.ErrMissingField):
		return visit.ErrorMissingField
	case errors.Is(err, ports.ErrInvalidPayload):
		return visit.ErrorInvalidPayload
	case errors.Is(err, ports.ErrTimeout):
		return visit.ErrorTimeout
	case errors.Is(err, ports.ErrConnection):
		return visit.ErrorConnection
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return visit.ErrorInterrupted
	default:
		return visit.ErrorUnknown
	}
}
