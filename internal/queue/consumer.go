package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/config"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/dedup"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/series"
)

// Handler folds sale events into the live series behind the dedup gate.
// Kept separate from the Kafka loop so the folding logic is testable
// without a broker.
type Handler struct {
	ledger *dedup.Ledger
	agg    *series.Aggregator
	log    *logrus.Logger
}

func NewHandler(ledger *dedup.Ledger, agg *series.Aggregator, log *logrus.Logger) *Handler {
	return &Handler{ledger: ledger, agg: agg, log: log}
}

// HandleSaleCreated processes one delivery. The marker insert is the commit
// point: fold only after it succeeds, so a crash between fold and marker can
// never double count. A duplicate marker means an earlier delivery already
// handled the event; it is swallowed and the offset may be committed.
func (h *Handler) HandleSaleCreated(ctx context.Context, ev SaleEvent) error {
	err := h.ledger.MarkProcessed(ctx, ev.SaleID)
	if errors.Is(err, dedup.ErrAlreadyProcessed) {
		h.log.WithField("sale_id", ev.SaleID).Debug("duplicate delivery skipped")
		return nil
	}
	if err != nil {
		return err
	}
	h.agg.Apply(ev.ProductID, ev.SoldAt, ev.Quantity)
	return nil
}

// Consumer is the single long-lived reader of sale.created. One reader per
// process keeps the single-consumer-per-partition assumption intact.
type Consumer struct {
	r   *kafka.Reader
	h   *Handler
	log *logrus.Logger
}

func NewConsumer(cfg config.AppConfig, h *Handler, log *logrus.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.SaleTopic,
			GroupID:  cfg.ConsumerGroup,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		h:   h,
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run fetches, handles, then commits. Offsets commit only after durable
// handling; malformed payloads are logged and committed so a poison pill
// cannot wedge the partition.
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return // ctx cancel or closed reader
		}

		var ev SaleEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.log.WithError(err).Warn("consumer: dropping malformed payload")
			c.commit(ctx, m)
			continue
		}
		if err := ev.Validate(); err != nil {
			c.log.WithError(err).WithField("sale_id", ev.SaleID).
				Warn("consumer: dropping invalid event")
			c.commit(ctx, m)
			continue
		}

		// Retry in place on infrastructure failure. Moving on without a
		// commit would silently skip the event for this session.
		for {
			err := c.h.HandleSaleCreated(ctx, ev)
			if err == nil {
				break
			}
			c.log.WithError(err).WithField("sale_id", ev.SaleID).
				Error("consumer: handling failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
		}
		c.commit(ctx, m)
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.WithError(err).Error("consumer: offset commit failed")
	}
}
