package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"

	"github.com/google/uuid"
)

type assignmentMessage struct {
	Room    *string         `json:"room"`
	Bed     *string         `json:"bed"`
	BatchID json.RawMessage `json:"batch_id"`
}

// DecodeAssignment parses one scheduler message. A missing batch_id gets a
// generated one so the sequencer can still correlate operator events.
func DecodeAssignment(msg []byte, now time.Time) (visit.Assignment, error) {
	var m assignmentMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return visit.Assignment{}, fmt.Errorf("%w: %v", ports.ErrInvalidPayload, err)
	}
	if m.Room == nil || strings.TrimSpace(*m.Room) == "" {
		return visit.Assignment{}, &ports.MissingFieldError{Field: "room"}
	}
	if m.Bed == nil || strings.TrimSpace(*m.Bed) == "" {
		return visit.Assignment{}, &ports.MissingFieldError{Field: "bed"}
	}
	id, err := batchID(m.BatchID)
	if err != nil {
		return visit.Assignment{}, err
	}
	return visit.Assignment{
		Room:       strings.TrimSpace(*m.Room),
		Bed:        strings.TrimSpace(*m.Bed),
		BatchID:    id,
		ReceivedAt: now,
	}, nil
}

func batchID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return uuid.NewString(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return uuid.NewString(), nil
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: batch_id must be a string or number", ports.ErrInvalidPayload)
}

// AssignmentHandler forwards each decoded assignment to sink exactly once.
func AssignmentHandler(sink ports.AssignmentSink, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, msg []byte) error {
		a, err := DecodeAssignment(msg, time.Now().UTC())
		if err != nil {
			return err
		}
		logger.Info("assignment received", "room", a.Room, "bed", a.Bed, "batch_id", a.BatchID)
		return sink.Submit(ctx, a)
	}
}

// EmergencyHandler logs each emergency status message.
func EmergencyHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(_ context.Context, msg []byte) error {
		var body map[string]any
		if err := json.Unmarshal(msg, &body); err != nil {
			return fmt.Errorf("%w: %v", ports.ErrInvalidPayload, err)
		}
		logger.Warn("emergency status received", "payload", body)
		return nil
	}
}
