package status

import (
	"context"

	"roundsbot/internal/domain/visit"
)

type TaskSource interface {
	State() visit.TaskState
	Pending() int
}

type FeedSource interface {
	State() string
}

type FeedFunc func() string

func (f FeedFunc) State() string { return f() }

type UseCase struct {
	Tasks TaskSource
	Feed  FeedSource
}

func (u UseCase) Execute(_ context.Context) (Response, error) {
	resp := Response{
		State:   u.Tasks.State(),
		Pending: u.Tasks.Pending(),
	}
	if u.Feed != nil {
		resp.Feed = u.Feed.State()
	}
	return resp, nil
}
