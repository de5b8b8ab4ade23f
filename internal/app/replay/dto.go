package replay

import "roundsbot/internal/domain/visit"

type Request struct {
	Limit        int
	Outcome      string
	FinishedFrom int64
	FinishedTo   int64
}

type Summary struct {
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Incomplete int `json:"incomplete"`
}

type Response struct {
	Records []visit.TaskRecord `json:"records"`
	Summary Summary            `json:"summary"`
}
