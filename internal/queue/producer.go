package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/config"
)

// Producer wraps one Kafka writer shared across topics.
//
// Reliability settings:
//   - Hash balancer + product-id key: events for one product land on one
//     partition, preserving per-product order.
//   - RequireAll: wait for ISR acks before reporting success.
//   - MaxAttempts/timeouts bound retries.
type Producer struct {
	w         *kafka.Writer
	saleTopic string
	product   config.ProductTopics
}

func NewProducer(cfg config.AppConfig) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
		saleTopic: cfg.SaleTopic,
		product:   cfg.ProductTopics,
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// PublishSaleCreated writes one sale event, keyed by product id so all sales
// of a product stay ordered.
func (p *Producer) PublishSaleCreated(ctx context.Context, ev SaleEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: p.saleTopic,
		Key:   []byte(strconv.FormatUint(uint64(ev.ProductID), 10)),
		Value: b,
	})
}

// ProductAction names the lifecycle topic to publish on.
type ProductAction int

const (
	ProductCreated ProductAction = iota
	ProductUpdated
	ProductDeleted
)

// PublishProductEvent writes one product lifecycle event.
func (p *Producer) PublishProductEvent(ctx context.Context, action ProductAction, ev ProductEvent) error {
	var topic string
	switch action {
	case ProductCreated:
		topic = p.product.Created
	case ProductUpdated:
		topic = p.product.Updated
	case ProductDeleted:
		topic = p.product.Deleted
	default:
		return fmt.Errorf("unknown product action %d", action)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatUint(uint64(ev.ProductID), 10)),
		Value: b,
	})
}
