package gormrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"roundsbot/internal/adapter/repo/gorm/model"
	"roundsbot/internal/domain/visit"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskJournalRepo struct {
	db *gorm.DB
}

func NewTaskJournalRepo(db *gorm.DB) TaskJournalRepo {
	return TaskJournalRepo{db: db}
}

func (r TaskJournalRepo) Append(ctx context.Context, record visit.TaskRecord) error {
	legs := record.Legs
	if legs == nil {
		legs = []visit.LegRecord{}
	}
	b, err := json.Marshal(legs)
	if err != nil {
		return fmt.Errorf("encode legs: %w", err)
	}
	row := model.TaskRecord{
		BatchID:    record.Assignment.BatchID,
		Room:       record.Assignment.Room,
		Bed:        record.Assignment.Bed,
		Outcome:    string(record.Outcome),
		ErrorKind:  string(record.Error),
		Detail:     record.Detail,
		Legs:       string(b),
		ReceivedAt: record.Assignment.ReceivedAt,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r TaskJournalRepo) List(ctx context.Context, limit int) ([]visit.TaskRecord, error) {
	rows := []model.TaskRecord{}
	query := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "finished_at"}, Desc: true},
				{Column: clause.Column{Name: "id"}, Desc: true},
			},
		})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]visit.TaskRecord, 0, len(rows))
	for _, row := range rows {
		var legs []visit.LegRecord
		if row.Legs != "" {
			_ = json.Unmarshal([]byte(row.Legs), &legs)
		}
		rec := visit.TaskRecord{
			Assignment: visit.Assignment{
				Room:       row.Room,
				Bed:        row.Bed,
				BatchID:    row.BatchID,
				ReceivedAt: row.ReceivedAt,
			},
			Legs:      legs,
			StartedAt: row.StartedAt,
		}
		rec.Finish(visit.Outcome(row.Outcome), visit.ErrorKind(row.ErrorKind), row.Detail, row.FinishedAt)
		out = append(out, rec)
	}
	return out, nil
}
