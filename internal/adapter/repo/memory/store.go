package memory

import (
	"context"
	"sync"

	"roundsbot/internal/domain/visit"
)

// Journal keeps task records in process memory. It backs development runs
// without a database and tests.
type Journal struct {
	mu      sync.RWMutex
	records []visit.TaskRecord
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Append(_ context.Context, record visit.TaskRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	record.Legs = append([]visit.LegRecord(nil), record.Legs...)
	j.records = append(j.records, record)
	return nil
}

func (j *Journal) List(_ context.Context, limit int) ([]visit.TaskRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
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
