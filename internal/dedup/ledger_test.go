package dedup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s/test.db?_busy_timeout=5000", t.TempDir())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.ProcessedEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMarkProcessedOnce(t *testing.T) {
	l := NewLedger(testDB(t))
	ctx := context.Background()

	if err := l.MarkProcessed(ctx, "ev-1"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	ok, err := l.IsProcessed(ctx, "ev-1")
	if err != nil || !ok {
		t.Fatalf("expected processed, got ok=%v err=%v", ok, err)
	}
	ok, err = l.IsProcessed(ctx, "ev-2")
	if err != nil || ok {
		t.Fatalf("expected not processed, got ok=%v err=%v", ok, err)
	}
}

func TestMarkProcessedDuplicate(t *testing.T) {
	l := NewLedger(testDB(t))
	ctx := context.Background()

	if err := l.MarkProcessed(ctx, "ev-dup"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	err := l.MarkProcessed(ctx, "ev-dup")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestMarkProcessedIgnoreExisting(t *testing.T) {
	l := NewLedger(testDB(t))
	ctx := context.Background()

	if err := l.MarkProcessedIgnoreExisting(ctx, "ev-b"); err != nil {
		t.Fatalf("first backfill: %v", err)
	}
	if err := l.MarkProcessedIgnoreExisting(ctx, "ev-b"); err != nil {
		t.Fatalf("repeat backfill should be silent: %v", err)
	}
}
