package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"backoffice/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:journal_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.ActionLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestJournal_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewJournalRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		outcome := model.OutcomeCommitted
		if i%2 == 1 {
			outcome = model.OutcomeUndone
		}
		err := repo.Append(ctx, &model.ActionLog{
			UserID:     "u1",
			Action:     model.ActionReposicionTransition,
			EntityType: model.EntityReposicion,
			EntityID:   fmt.Sprint(i),
			Outcome:    outcome,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	logs, total, err := repo.List(ctx, JournalFilter{UserID: "u1"}, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(logs) != 2 || logs[0].EntityID != "4" || logs[1].EntityID != "3" {
		t.Fatalf("got total=%d logs=%+v", total, logs)
	}

	_, total, err = repo.List(ctx, JournalFilter{Outcome: model.OutcomeUndone}, 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("undone: total=%d err=%v", total, err)
	}
	_, total, _ = repo.List(ctx, JournalFilter{UserID: "other"}, 1, 10)
	if total != 0 {
		t.Fatalf("other user sees %d rows", total)
	}

	rows, err := repo.Summary(ctx, JournalFilter{UserID: "u1"}, time.Time{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(rows) != 2 || rows[0].Outcome != model.OutcomeCommitted || rows[0].Total != 3 || rows[1].Total != 2 {
		t.Fatalf("summary = %+v", rows)
	}
	rows, _ = repo.Summary(ctx, JournalFilter{}, base.Add(3*time.Minute))
	var n int64
	for _, r := range rows {
		n += r.Total
	}
	if n != 2 {
		t.Fatalf("since filter counted %d", n)
	}
}

func TestTransactionManager_RollsBackEveryEntry(t *testing.T) {
	db := newTestDB(t)
	repo := NewJournalRepository(db)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := repo.Append(txCtx, &model.ActionLog{Action: model.ActionReposicionTransition, EntityType: model.EntityReposicion, Outcome: model.OutcomeCommitted}); err != nil {
			return err
		}
		// nested call joins the same transaction
		return tm.RunInTx(txCtx, func(inner context.Context) error {
			if err := repo.Append(inner, &model.ActionLog{Action: model.ActionRequestCascade, EntityType: model.EntityRequest, Outcome: model.OutcomeCommitted}); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	_, total, _ := repo.List(ctx, JournalFilter{}, 1, 10)
	if total != 0 {
		t.Fatalf("rows survived rollback: %d", total)
	}
}
