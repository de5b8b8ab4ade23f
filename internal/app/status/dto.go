package status

import "roundsbot/internal/domain/visit"

type Response struct {
	State   visit.TaskState `json:"state"`
	Pending int             `json:"pending_assignments"`
	Feed    string          `json:"feed_state,omitempty"`
}
