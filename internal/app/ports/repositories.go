package ports

import (
	"context"
	"encoding/json"

	"roundsbot/internal/domain/visit"
)

// TaskJournal is the append-only outcome log. The sequencer is its only writer.
type TaskJournal interface {
	Append(ctx context.Context, record visit.TaskRecord) error
	List(ctx context.Context, limit int) ([]visit.TaskRecord, error)
}

// SnapshotWriter persists the normalized POI table for offline inspection.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, entries map[string]visit.Pose) error
}

type PositionKind string

const (
	PositionSlot      PositionKind = "slot"
	PositionRoomEntry PositionKind = "room_entry"
	PositionRoomExit  PositionKind = "room_exit"
)

// PositionRecord is a captured pose forwarded to the bed-data backend.
// NumericID is set when the tablet sent the id as a JSON number.
type PositionRecord struct {
	Kind      PositionKind
	IDField   string
	ID        string
	NumericID bool
	Pose      visit.Pose
}

// IDValue is the id in the JSON type it arrived with.
func (r PositionRecord) IDValue() any {
	if r.NumericID && json.Valid([]byte(r.ID)) {
		return json.Number(r.ID)
	}
	return r.ID
}

type PositionStore interface {
	CreatePosition(ctx context.Context, rec PositionRecord) error
}
