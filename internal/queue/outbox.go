package queue

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
)

// salePublisher lets tests sweep without a broker; *Producer satisfies it.
type salePublisher interface {
	PublishSaleCreated(ctx context.Context, ev SaleEvent) error
}

// Outbox republishes sales whose event never got a broker ack. The recorder
// commits each sale with event_status=pending and flips it to published after
// the ack; a crash or broker outage in between leaves a pending row that this
// sweeper picks up, so no committed sale can stay unannounced.
type Outbox struct {
	db       *gorm.DB
	producer salePublisher
	log      *logrus.Logger

	interval time.Duration
	// minAge keeps the sweeper off sales whose first publish attempt is
	// still in flight.
	minAge    time.Duration
	batchSize int
}

func NewOutbox(db *gorm.DB, producer salePublisher, log *logrus.Logger, interval time.Duration) *Outbox {
	return &Outbox{
		db:        db,
		producer:  producer,
		log:       log,
		interval:  interval,
		minAge:    10 * time.Second,
		batchSize: 100,
	}
}

func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.interval):
		}
		if n, err := o.SweepOnce(ctx); err != nil {
			o.log.WithError(err).Error("outbox: sweep failed")
		} else if n > 0 {
			o.log.WithField("republished", n).Info("outbox: republished pending sales")
		}
	}
}

// SweepOnce publishes up to batchSize stale pending sales and marks the acked
// ones published. Publishing the same sale twice is harmless: consumers dedup
// on sale_id.
func (o *Outbox) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-o.minAge)
	var pending []model.Sale
	err := o.db.WithContext(ctx).
		Where("event_status = ? AND created_at <= ?", model.SaleEventPending, cutoff).
		Order("id ASC").
		Limit(o.batchSize).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	done := 0
	for _, s := range pending {
		if err := o.producer.PublishSaleCreated(ctx, SaleEventFrom(s)); err != nil {
			// Broker still unavailable; the rest of the batch would fail too.
			return done, err
		}
		if err := o.db.WithContext(ctx).Model(&model.Sale{}).
			Where("id = ?", s.ID).
			Update("event_status", model.SaleEventPublished).Error; err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
