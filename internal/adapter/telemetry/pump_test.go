package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"roundsbot/internal/domain/visit"
)

func TestPumpRecordsGoalsWithYawAsZ(t *testing.T) {
	p := NewPump(4, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Publish(visit.NavigationCommand{Target: visit.Pose{X: 1, Y: 2, Yaw: 0.5}, LocationLabel: "room_1"})
	p.Publish(visit.NavigationCommand{Target: visit.Pose{X: 3, Y: 4, Yaw: 1.5}, LocationLabel: "bed_2"})
	p.Publish(visit.NavigationCommand{Target: visit.Pose{X: 5, Y: 6, Yaw: 2.5}, LocationLabel: "room_1_exit"})

	deadline := time.Now().Add(2 * time.Second)
	for len(p.Recent()) < 2 || p.Recent()[1].Location != "room_1_exit" {
		if time.Now().After(deadline) {
			t.Fatalf("goals not drained: %+v", p.Recent())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}

	got := p.Recent()
	if len(got) != 2 {
		t.Fatalf("ring size mismatch: got=%d want=2", len(got))
	}
	if got[0].Location != "bed_2" || got[0].Z != 1.5 || got[0].X != 3 || got[0].Y != 4 {
		t.Fatalf("unexpected oldest goal: %+v", got[0])
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	p := NewPump(1, 10, nil)
	p.Publish(visit.NavigationCommand{})
	p.Publish(visit.NavigationCommand{})
	p.Publish(visit.NavigationCommand{})
	if got := p.Dropped(); got != 2 {
		t.Fatalf("dropped mismatch: got=%d want=2", got)
	}
}
