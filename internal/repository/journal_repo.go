package repository

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/model"

	"gorm.io/gorm"
)

// JournalFilter narrows a journal listing. Empty fields match everything.
type JournalFilter struct {
	UserID     string
	EntityType string
	EntityID   string
	Outcome    string
}

// JournalSummaryRow counts journal entries per action and outcome.
type JournalSummaryRow struct {
	Action  string `gorm:"column:action" json:"action"`
	Outcome string `gorm:"column:outcome" json:"outcome"`
	Total   int64  `gorm:"column:total" json:"total"`
}

type JournalRepository interface {
	Append(ctx context.Context, entries ...*model.ActionLog) error
	List(ctx context.Context, f JournalFilter, page, limit int) ([]model.ActionLog, int64, error)
	// Summary groups the matching entries created at or after since. A zero
	// since counts everything.
	Summary(ctx context.Context, f JournalFilter, since time.Time) ([]JournalSummaryRow, error)
}

type journalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) Append(ctx context.Context, entries ...*model.ActionLog) error {
	if len(entries) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(entries).Error
}

func (r *journalRepository) filtered(ctx context.Context, f JournalFilter) *gorm.DB {
	db := GetDB(ctx, r.db).Model(&model.ActionLog{})
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.EntityType != "" {
		db = db.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		db = db.Where("entity_id = ?", f.EntityID)
	}
	if f.Outcome != "" {
		db = db.Where("outcome = ?", f.Outcome)
	}
	return db
}

func (r *journalRepository) List(ctx context.Context, f JournalFilter, page, limit int) ([]model.ActionLog, int64, error) {
	var logs []model.ActionLog
	var total int64

	db := r.filtered(ctx, f)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Order("id").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *journalRepository) Summary(ctx context.Context, f JournalFilter, since time.Time) ([]JournalSummaryRow, error) {
	db := r.filtered(ctx, f)
	if !since.IsZero() {
		db = db.Where("created_at >= ?", since)
	}

	var rows []JournalSummaryRow
	err := db.Select("action, outcome, COUNT(*) AS total").
		Group("action, outcome").
		Order("action").Order("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize journal: %w", err)
	}
	return rows, nil
}
