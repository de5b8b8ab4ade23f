package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"roundsbot/internal/app/ports"
)

func TestDecodeAssignment(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a, err := DecodeAssignment([]byte(`{"room":" room_1 ","bed":"bed_2","batch_id":"B1"}`), now)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if a.Room != "room_1" || a.Bed != "bed_2" || a.BatchID != "B1" || !a.ReceivedAt.Equal(now) {
		t.Fatalf("unexpected assignment: %+v", a)
	}

	a, err = DecodeAssignment([]byte(`{"room":"room_1","bed":"bed_2"}`), now)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(a.BatchID) != 36 {
		t.Fatalf("expected generated uuid batch id, got %q", a.BatchID)
	}
}

func TestDecodeAssignment_Rejects(t *testing.T) {
	cases := map[string]struct {
		msg  string
		want error
	}{
		"malformed":     {`{"room":`, ports.ErrInvalidPayload},
		"not an object": {`[1,2]`, ports.ErrInvalidPayload},
		"missing room":  {`{"bed":"bed_2"}`, ports.ErrMissingField},
		"blank bed":     {`{"room":"room_1","bed":"  "}`, ports.ErrMissingField},
		"object batch":  {`{"room":"r","bed":"b","batch_id":{"x":1}}`, ports.ErrInvalidPayload},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeAssignment([]byte(tc.msg), time.Now())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAssignmentHandler_PropagatesSinkError(t *testing.T) {
	sink := &stubSink{err: context.Canceled}
	err := AssignmentHandler(sink, discardLogger())(context.Background(), []byte(`{"room":"r","bed":"b","batch_id":"x"}`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestEmergencyHandler(t *testing.T) {
	h := EmergencyHandler(discardLogger())
	if err := h(context.Background(), []byte(`{"level":"high","room":"room_3"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h(context.Background(), []byte(`oops`)); !errors.Is(err, ports.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}
