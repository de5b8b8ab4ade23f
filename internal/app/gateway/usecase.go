// Package gateway validates operator webhooks and turns them into sequencer
// events, captured positions or robot side effects.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"
)

type UseCase struct {
	Events    ports.EventSink
	Localizer ports.Localizer
	Positions ports.PositionStore
	Effects   ports.Effects
	Logger    *slog.Logger
	Now       func() time.Time
}

func (u UseCase) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}

func (u UseCase) now() time.Time {
	if u.Now == nil {
		return time.Now().UTC()
	}
	return u.Now()
}

// Skip hands an operator event to the sequencer. Unknown reasons are accepted
// and logged so newer tablets keep working against this build.
func (u UseCase) Skip(_ context.Context, req SkipRequest) (SkipResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	batchID := strings.TrimSpace(req.BatchID)
	if reason == "" {
		return SkipResponse{}, &ports.MissingFieldError{Field: "reason"}
	}
	if batchID == "" {
		return SkipResponse{}, &ports.MissingFieldError{Field: "batch_id"}
	}

	resp := SkipResponse{Reason: reason, BatchID: batchID}
	kind, ok := visit.ParseReason(reason)
	if !ok {
		u.logger().Warn("unhandled reason", "reason", reason, "batch_id", batchID)
		return resp, nil
	}
	if err := u.Events.Deliver(visit.OperatorEvent{Kind: kind, SubjectID: batchID, ReceivedAt: u.now()}); err != nil {
		return SkipResponse{}, err
	}
	u.logger().Info("operator event queued", "kind", kind, "batch_id", batchID)
	resp.Event = kind
	resp.Handled = true
	return resp, nil
}

func (u UseCase) CreateSlotPosition(ctx context.Context, req PositionRequest) (PositionResponse, error) {
	return u.capture(ctx, ports.PositionSlot, "slot_id", req)
}

func (u UseCase) CreateRoomEntryPosition(ctx context.Context, req PositionRequest) (PositionResponse, error) {
	return u.capture(ctx, ports.PositionRoomEntry, "room_pos_id", req)
}

func (u UseCase) CreateRoomExitPosition(ctx context.Context, req PositionRequest) (PositionResponse, error) {
	return u.capture(ctx, ports.PositionRoomExit, "room_pos_id", req)
}

func (u UseCase) capture(ctx context.Context, kind ports.PositionKind, idField string, req PositionRequest) (PositionResponse, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return PositionResponse{}, &ports.MissingFieldError{Field: idField}
	}
	pose, err := u.Localizer.CurrentPose(ctx)
	if err != nil {
		return PositionResponse{}, fmt.Errorf("read current pose: %w", err)
	}
	rec := ports.PositionRecord{Kind: kind, IDField: idField, ID: id, NumericID: req.Numeric, Pose: pose}
	if err := u.Positions.CreatePosition(ctx, rec); err != nil {
		return PositionResponse{}, fmt.Errorf("store %s position: %w", kind, err)
	}
	return PositionResponse{IDField: idField, ID: id, Numeric: req.Numeric, Pose: pose}, nil
}

func (u UseCase) DemoCompleted(ctx context.Context, patientID string) error {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return &ports.MissingFieldError{Field: "patient_id"}
	}
	return u.Effects.StartCameraDetection(ctx, patientID)
}

func (u UseCase) SetVolume(ctx context.Context, volume string) error {
	volume = strings.TrimSpace(volume)
	if volume == "" {
		return &ports.MissingFieldError{Field: "volume"}
	}
	return u.Effects.SetVolume(ctx, volume)
}
