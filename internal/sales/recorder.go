// Package sales owns the sale transaction: row-locked stock decrement, sale
// persistence and event publication.
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/queue"
)

var (
	// ErrProductNotFound is a business failure, reported as 404.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is a business failure, reported as 400.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// EventPublisher is what Record needs from the queue; *queue.Producer
// satisfies it.
type EventPublisher interface {
	PublishSaleCreated(ctx context.Context, ev queue.SaleEvent) error
}

// Input is one sale request. UnitPrice overrides the product price when set.
type Input struct {
	ProductID uint
	Quantity  int
	UnitPrice *decimal.Decimal
	SoldAt    time.Time
	UserID    *int64
}

type Recorder struct {
	db  *gorm.DB
	pub EventPublisher
	log *logrus.Logger
}

func NewRecorder(db *gorm.DB, pub EventPublisher, log *logrus.Logger) *Recorder {
	return &Recorder{db: db, pub: pub, log: log}
}

// Record decrements stock and persists the sale in ONE transaction, holding
// an exclusive row lock on the product so concurrent sales of the same
// product serialize and stock can never go negative. The sale row commits
// with event_status=pending; the event publish happens after commit and is
// retried by the outbox sweeper if it fails, so a crash after commit delays
// the event but never loses stock or the audit record.
func (r *Recorder) Record(ctx context.Context, in Input) (model.Sale, error) {
	if in.Quantity <= 0 {
		return model.Sale{}, fmt.Errorf("quantity must be > 0, got %d", in.Quantity)
	}
	if in.SoldAt.IsZero() {
		in.SoldAt = time.Now().UTC()
	}

	var sale model.Sale
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prod model.Product
		q := tx
		// SQLite has no FOR UPDATE; its single-writer transaction lock
		// already serializes the check-and-decrement.
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&prod, in.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		if prod.Stock < in.Quantity {
			return ErrInsufficientStock
		}

		if err := tx.Model(&model.Product{}).
			Where("id = ?", prod.ID).
			Update("stock", gorm.Expr("stock - ?", in.Quantity)).Error; err != nil {
			return err
		}

		price := prod.Price
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		sale = model.Sale{
			SaleUID:     uuid.New().String(),
			ProductID:   prod.ID,
			UserID:      in.UserID,
			Quantity:    in.Quantity,
			Price:       price,
			SoldAt:      in.SoldAt.UTC(),
			EventStatus: model.SaleEventPending,
		}
		return tx.Create(&sale).Error
	})
	if err != nil {
		return model.Sale{}, err
	}

	if err := r.pub.PublishSaleCreated(ctx, queue.SaleEventFrom(sale)); err != nil {
		// Leave the sale pending; the outbox sweeper will republish.
		r.log.WithError(err).WithField("sale_uid", sale.SaleUID).
			Warn("sale event publish failed, deferred to outbox")
		return sale, nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Where("id = ?", sale.ID).
		Update("event_status", model.SaleEventPublished).Error; err != nil {
		// Worst case the outbox republishes an already published event;
		// consumers dedup on sale_id.
		r.log.WithError(err).WithField("sale_uid", sale.SaleUID).
			Warn("failed to mark sale published")
		return sale, nil
	}
	sale.EventStatus = model.SaleEventPublished
	return sale, nil
}
