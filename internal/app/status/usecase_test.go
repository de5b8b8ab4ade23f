package status

import (
	"context"
	"testing"

	"roundsbot/internal/domain/visit"
)

func TestUseCase_ReportsStateAndQueue(t *testing.T) {
	a := &visit.Assignment{Room: "room_1", Bed: "bed_2", BatchID: "B1"}
	uc := UseCase{
		Tasks: stubTasks{state: visit.TaskState{CurrentAssignment: a, Phase: visit.PhaseAwaitingOperatorEvent}, pending: 2},
		Feed:  FeedFunc(func() string { return "connected" }),
	}
	resp, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if resp.State.Phase != visit.PhaseAwaitingOperatorEvent || resp.State.CurrentAssignment.BatchID != "B1" {
		t.Fatalf("unexpected state: %+v", resp.State)
	}
	if resp.Pending != 2 {
		t.Fatalf("pending mismatch: got=%d want=2", resp.Pending)
	}
	if resp.Feed != "connected" {
		t.Fatalf("feed mismatch: got=%q", resp.Feed)
	}
}

func TestUseCase_WithoutFeed(t *testing.T) {
	uc := UseCase{Tasks: stubTasks{state: visit.TaskState{Phase: visit.PhaseIdle}}}
	resp, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if resp.Feed != "" || resp.State.Phase != visit.PhaseIdle {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

type stubTasks struct {
	state   visit.TaskState
	pending int
}

func (s stubTasks) State() visit.TaskState { return s.state }
func (s stubTasks) Pending() int           { return s.pending }
