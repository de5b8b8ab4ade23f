// Package telemetry mirrors acknowledged navigation goals to monitoring.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"roundsbot/internal/domain/visit"
)

// Goal is the monitoring view of a navigation target: z carries the yaw.
type Goal struct {
	Location string    `json:"location,omitempty"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Z        float64   `json:"z"`
	At       time.Time `json:"at"`
}

type Pump struct {
	ch      chan Goal
	logger  *slog.Logger
	now     func() time.Time
	dropped atomic.Uint64

	mu     sync.Mutex
	recent []Goal
	limit  int
}

func NewPump(buffer, keep int, logger *slog.Logger) *Pump {
	if buffer <= 0 {
		buffer = 32
	}
	if keep <= 0 {
		keep = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pump{
		ch:     make(chan Goal, buffer),
		logger: logger,
		now:    time.Now,
		limit:  keep,
	}
}

// Publish never blocks; goals are dropped when the buffer is full.
func (p *Pump) Publish(cmd visit.NavigationCommand) {
	g := Goal{
		Location: cmd.LocationLabel,
		X:        cmd.Target.X,
		Y:        cmd.Target.Y,
		Z:        cmd.Target.Yaw,
		At:       p.now(),
	}
	select {
	case p.ch <- g:
	default:
		p.dropped.Add(1)
	}
}

func (p *Pump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case g := <-p.ch:
			p.logger.Info("navigation goal", "location", g.Location, "x", g.X, "y", g.Y, "z", g.Z)
			p.mu.Lock()
			p.recent = append(p.recent, g)
			if len(p.recent) > p.limit {
				p.recent = append(p.recent[:0:0], p.recent[len(p.recent)-p.limit:]...)
			}
			p.mu.Unlock()
		}
	}
}

// Recent returns the most recent goals, oldest first.
func (p *Pump) Recent() []Goal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Goal(nil), p.recent...)
}

func (p *Pump) Dropped() uint64 {
	return p.dropped.Load()
}

type Snapshot struct {
	Recent  []Goal `json:"recent"`
	Dropped uint64 `json:"dropped"`
}

func (p *Pump) SnapshotAny() any {
	return Snapshot{Recent: p.Recent(), Dropped: p.Dropped()}
}
