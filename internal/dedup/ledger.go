// Package dedup persists which events have already been folded, making
// at-least-once consumption idempotent.
package dedup

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
)

// ErrAlreadyProcessed reports that the marker already existed. The consumer
// swallows it: the event was handled by an earlier delivery.
var ErrAlreadyProcessed = errors.New("event already processed")

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// IsProcessed reports whether a marker exists for eventID.
func (l *Ledger) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&model.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed inserts the marker for eventID. The insert is the commit
// point for event handling: callers fold into memory only after it succeeds.
// A duplicate-key violation comes back as ErrAlreadyProcessed; any other
// error is a persistence failure the caller must not commit the offset for.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID string) error {
	err := l.db.WithContext(ctx).Create(&model.ProcessedEvent{
		EventID:     eventID,
		ProcessedAt: time.Now().UTC(),
	}).Error
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return ErrAlreadyProcessed
	}
	return err
}

// MarkProcessedIgnoreExisting is the backfill variant used by the startup
// rebuild: existing markers are fine.
func (l *Ledger) MarkProcessedIgnoreExisting(ctx context.Context, eventID string) error {
	err := l.MarkProcessed(ctx, eventID)
	if errors.Is(err, ErrAlreadyProcessed) {
		return nil
	}
	return err
}

// isDuplicateKey recognizes unique violations across the supported drivers.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") ||
		strings.Contains(s, "unique") ||
		strings.Contains(s, "Duplicate entry")
}
