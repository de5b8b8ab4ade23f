package ports

import (
	"context"

	"roundsbot/internal/domain/visit"
)

// NextRequest is the descriptor sent upstream to ask for the next batch.
type NextRequest struct {
	Room string `json:"room" yaml:"room"`
	Bed  string `json:"bed" yaml:"bed"`
}

type NextRequester interface {
	RequestNext(req NextRequest)
}

type AssignmentSink interface {
	Submit(ctx context.Context, a visit.Assignment) error
}

type EventSink interface {
	Deliver(ev visit.OperatorEvent) error
}

// Effects are the opaque robot side effects triggered by operator webhooks.
type Effects interface {
	StartCameraDetection(ctx context.Context, patientID string) error
	SetVolume(ctx context.Context, volume string) error
}
