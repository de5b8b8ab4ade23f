package replay

import (
	"context"
	"errors"
	"strings"

	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"
)

var ErrInvalidRequest = errors.New("invalid history request")

const (
	defaultLimit = 50
	maxLimit     = 500
)

type UseCase struct {
	Journal ports.TaskJournal
}

// Execute lists journal records, newest first, optionally filtered by
// outcome and by a unix-seconds window on FinishedAt.
func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	if req.Limit < 0 || (req.FinishedFrom > 0 && req.FinishedTo > 0 && req.FinishedFrom > req.FinishedTo) {
		return Response{}, ErrInvalidRequest
	}
	outcome := visit.Outcome(strings.ToLower(strings.TrimSpace(req.Outcome)))
	switch outcome {
	case "", visit.OutcomeCompleted, visit.OutcomeFailed, visit.OutcomeIncomplete:
	default:
		return Response{}, ErrInvalidRequest
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	records, err := u.Journal.List(ctx, limit)
	if err != nil {
		return Response{}, err
	}
	records = filter(records, outcome, req.FinishedFrom, req.FinishedTo)
	return Response{Records: records, Summary: summarize(records)}, nil
}

func filter(records []visit.TaskRecord, outcome visit.Outcome, from, to int64) []visit.TaskRecord {
	out := make([]visit.TaskRecord, 0, len(records))
	for _, rec := range records {
		if outcome != "" && rec.Outcome != outcome {
			continue
		}
		ts := rec.FinishedAt.Unix()
		if from > 0 && ts < from {
			continue
		}
		if to > 0 && ts > to {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func summarize(records []visit.TaskRecord) Summary {
	var s Summary
	for _, rec := range records {
		switch rec.Outcome {
		case visit.OutcomeCompleted:
			s.Completed++
		case visit.OutcomeFailed:
			s.Failed++
		case visit.OutcomeIncomplete:
			s.Incomplete++
		}
	}
	return s
}
