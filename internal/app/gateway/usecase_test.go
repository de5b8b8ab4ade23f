package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"
)

func TestSkip_DeliversKnownReason(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	sink := &stubEvents{}
	uc := UseCase{Events: sink, Now: func() time.Time { return now }}

	resp, err := uc.Skip(context.Background(), SkipRequest{Reason: " Confirm ", BatchID: "B1"})
	if err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	if !resp.Handled || resp.Event != visit.EventConfirmed {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(sink.got) != 1 {
		t.Fatalf("expected one delivered event, got %d", len(sink.got))
	}
	want := visit.OperatorEvent{Kind: visit.EventConfirmed, SubjectID: "B1", ReceivedAt: now}
	if sink.got[0] != want {
		t.Fatalf("event mismatch: got=%+v want=%+v", sink.got[0], want)
	}
}

func TestSkip_UnknownReasonAcceptedNotDelivered(t *testing.T) {
	sink := &stubEvents{}
	uc := UseCase{Events: sink}
	resp, err := uc.Skip(context.Background(), SkipRequest{Reason: "coffee_break", BatchID: "B1"})
	if err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	if resp.Handled || len(sink.got) != 0 {
		t.Fatalf("unknown reason must not reach the sequencer: resp=%+v events=%d", resp, len(sink.got))
	}
}

func TestSkip_MissingFields(t *testing.T) {
	uc := UseCase{Events: &stubEvents{}}
	cases := map[string]struct {
		req   SkipRequest
		field string
	}{
		"reason":   {SkipRequest{BatchID: "B1"}, "reason"},
		"batch id": {SkipRequest{Reason: "timeout", BatchID: "  "}, "batch_id"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uc.Skip(context.Background(), tc.req)
			var missing *ports.MissingFieldError
			if !errors.As(err, &missing) || missing.Field != tc.field {
				t.Fatalf("expected missing %s, got %v", tc.field, err)
			}
		})
	}
}

func TestSkip_QueueFullPropagates(t *testing.T) {
	uc := UseCase{Events: &stubEvents{err: ports.ErrQueueFull}}
	if _, err := uc.Skip(context.Background(), SkipRequest{Reason: "help", BatchID: "B1"}); !errors.Is(err, ports.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestCreatePositions_ForwardCurrentPose(t *testing.T) {
	pose := visit.Pose{X: 4.5, Y: -1.25, Yaw: 3.14159}
	cases := []struct {
		name    string
		call    func(UseCase) (PositionResponse, error)
		kind    ports.PositionKind
		idField string
	}{
		{"slot", func(u UseCase) (PositionResponse, error) {
			return u.CreateSlotPosition(context.Background(), PositionRequest{ID: "12"})
		}, ports.PositionSlot, "slot_id"},
		{"entry", func(u UseCase) (PositionResponse, error) {
			return u.CreateRoomEntryPosition(context.Background(), PositionRequest{ID: "12"})
		}, ports.PositionRoomEntry, "room_pos_id"},
		{"exit", func(u UseCase) (PositionResponse, error) {
			return u.CreateRoomExitPosition(context.Background(), PositionRequest{ID: "12"})
		}, ports.PositionRoomExit, "room_pos_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubPositions{}
			resp, err := tc.call(UseCase{Localizer: stubLocalizer{pose: pose}, Positions: store})
			if err != nil {
				t.Fatalf("capture error: %v", err)
			}
			if len(store.got) != 1 {
				t.Fatalf("expected one stored position, got %d", len(store.got))
			}
			want := ports.PositionRecord{Kind: tc.kind, IDField: tc.idField, ID: "12", Pose: pose}
			if store.got[0] != want {
				t.Fatalf("record mismatch: got=%+v want=%+v", store.got[0], want)
			}
			body := resp.Body()
			if fmt.Sprint(body[tc.idField]) != "12" || body["yaw"] != 3.14159 {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestCreatePosition_PreservesIDType(t *testing.T) {
	store := &stubPositions{}
	uc := UseCase{Localizer: stubLocalizer{}, Positions: store}

	resp, err := uc.CreateSlotPosition(context.Background(), PositionRequest{ID: "31", Numeric: true})
	if err != nil {
		t.Fatalf("capture error: %v", err)
	}
	if !store.got[0].NumericID || !resp.Numeric {
		t.Fatalf("numeric id lost: record=%+v resp=%+v", store.got[0], resp)
	}
	if b, err := json.Marshal(resp.Body()); err != nil || !strings.Contains(string(b), `"slot_id":31`) {
		t.Fatalf("numeric body mismatch: %s err=%v", b, err)
	}

	resp, err = uc.CreateSlotPosition(context.Background(), PositionRequest{ID: "007"})
	if err != nil {
		t.Fatalf("capture error: %v", err)
	}
	if b, err := json.Marshal(resp.Body()); err != nil || !strings.Contains(string(b), `"slot_id":"007"`) {
		t.Fatalf("string body mismatch: %s err=%v", b, err)
	}
}

func TestCreatePosition_Errors(t *testing.T) {
	store := &stubPositions{}
	uc := UseCase{Localizer: stubLocalizer{}, Positions: store}
	if _, err := uc.CreateSlotPosition(context.Background(), PositionRequest{}); !errors.Is(err, ports.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}

	poseErr := &ports.TransportError{Service: "localization", Kind: ports.ErrTimeout, Err: errors.New("deadline")}
	uc.Localizer = stubLocalizer{err: poseErr}
	if _, err := uc.CreateSlotPosition(context.Background(), PositionRequest{ID: "1"}); !errors.Is(err, ports.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if len(store.got) != 0 {
		t.Fatalf("nothing must be stored when the pose is unavailable")
	}

	uc.Localizer = stubLocalizer{}
	uc.Positions = &stubPositions{err: &ports.UpstreamError{Service: "bed data backend", Status: 500}}
	if _, err := uc.CreateRoomExitPosition(context.Background(), PositionRequest{ID: "1"}); !errors.Is(err, ports.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
}

func TestEffects(t *testing.T) {
	fx := &stubEffects{}
	uc := UseCase{Effects: fx}
	if err := uc.DemoCompleted(context.Background(), " P7 "); err != nil {
		t.Fatalf("DemoCompleted error: %v", err)
	}
	if err := uc.SetVolume(context.Background(), "60"); err != nil {
		t.Fatalf("SetVolume error: %v", err)
	}
	if fx.patient != "P7" || fx.volume != "60" {
		t.Fatalf("effects not applied: %+v", fx)
	}
	if err := uc.DemoCompleted(context.Background(), ""); !errors.Is(err, ports.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if err := uc.SetVolume(context.Background(), ""); !errors.Is(err, ports.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

type stubEvents struct {
	got []visit.OperatorEvent
	err error
}

func (s *stubEvents) Deliver(ev visit.OperatorEvent) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, ev)
	return nil
}

type stubLocalizer struct {
	pose visit.Pose
	err  error
}

func (s stubLocalizer) CurrentPose(context.Context) (visit.Pose, error) {
	return s.pose, s.err
}

type stubPositions struct {
	got []ports.PositionRecord
	err error
}

func (s *stubPositions) CreatePosition(_ context.Context, rec ports.PositionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, rec)
	return nil
}

type stubEffects struct {
	patient string
	volume  string
}

func (s *stubEffects) StartCameraDetection(_ context.Context, patientID string) error {
	s.patient = patientID
	return nil
}

func (s *stubEffects) SetVolume(_ context.Context, volume string) error {
	s.volume = volume
	return nil
}
