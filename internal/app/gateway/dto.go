package gateway

import (
	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"
)

type SkipRequest struct {
	Reason  string
	BatchID string
}

type SkipResponse struct {
	Reason  string          `json:"reason"`
	BatchID string          `json:"batch_id"`
	Event   visit.EventKind `json:"event,omitempty"`
	Handled bool            `json:"handled"`
}

type PositionRequest struct {
	ID      string
	Numeric bool
}

type PositionResponse struct {
	IDField string
	ID      string
	Numeric bool
	Pose    visit.Pose
}

// Body renders the record the way the bed-data backend stores it.
func (r PositionResponse) Body() map[string]any {
	return map[string]any{
		r.IDField: ports.PositionRecord{ID: r.ID, NumericID: r.Numeric}.IDValue(),
		"x":       r.Pose.X,
		"y":       r.Pose.Y,
		"yaw":     r.Pose.Yaw,
	}
}
