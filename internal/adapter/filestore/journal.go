package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"roundsbot/internal/domain/visit"
)

// Journal is an append-only list of task records kept in one JSON array file.
// Existing history is loaded at open and always preserved on append.
type Journal struct {
	path string

	mu      sync.Mutex
	records []visit.TaskRecord
}

func OpenJournal(path string) (*Journal, error) {
	j := &Journal{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return j, nil
	case err != nil:
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if len(data) == 0 {
		return j, nil
	}
	if err := json.Unmarshal(data, &j.records); err != nil {
		return nil, fmt.Errorf("decode journal %s: %w", path, err)
	}
	return j, nil
}

func (j *Journal) Append(ctx context.Context, record visit.TaskRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	next := make([]visit.TaskRecord, len(j.records), len(j.records)+1)
	copy(next, j.records)
	next = append(next, record)
	if err := writeJSONAtomic(j.path, next); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	j.records = next
	return nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (j *Journal) List(_ context.Context, limit int) ([]visit.TaskRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := len(j.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]visit.TaskRecord, 0, n)
	for i := len(j.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.records[i])
	}
	return out, nil
}
