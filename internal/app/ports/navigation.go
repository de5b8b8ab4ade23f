package ports

import (
	"context"

	"roundsbot/internal/domain/visit"
)

type CatalogueRecord struct {
	DisplayName *string
	Pose        *visit.Pose
}

type CatalogueSource interface {
	FetchCatalogue(ctx context.Context) ([]CatalogueRecord, error)
}

// MoveAck means the backend accepted the goal, not that the robot arrived.
type MoveAck struct {
	Attempts int
	Status   int
}

type Navigator interface {
	MoveTo(ctx context.Context, cmd visit.NavigationCommand) (MoveAck, error)
}

type Localizer interface {
	CurrentPose(ctx context.Context) (visit.Pose, error)
}

// GoalSink mirrors acknowledged goals to monitoring. Publish must not block.
type GoalSink interface {
	Publish(cmd visit.NavigationCommand)
}
