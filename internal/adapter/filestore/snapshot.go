package filestore

import (
	"context"

	"roundsbot/internal/domain/visit"
)

type Snapshot struct {
	path string
}

func NewSnapshot(path string) Snapshot {
	return Snapshot{path: path}
}

// WriteSnapshot replaces the snapshot file with the given table, keyed by
// normalized name.
func (s Snapshot) WriteSnapshot(ctx context.Context, entries map[string]visit.Pose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = map[string]visit.Pose{}
	}
	return writeJSONAtomic(s.path, entries)
}
