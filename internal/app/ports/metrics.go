package ports

import "roundsbot/internal/domain/visit"

type TaskMetrics interface {
	RecordOutcome(outcome visit.Outcome, kind visit.ErrorKind)
	RecordNavigation(attempts int, ok bool)
	RecordUnmatchedEvent()
}

type FeedMetrics interface {
	RecordFeedConnect()
	RecordFeedMessage(feed string)
	RecordFeedDecodeError()
}
