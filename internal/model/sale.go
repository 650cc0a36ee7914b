package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleEventStatus tracks whether the sale.created event reached the broker.
type SaleEventStatus int

const (
	SaleEventPending   SaleEventStatus = iota // committed sale, publish outstanding
	SaleEventPublished                        // broker acknowledged the event
)

// Sale is immutable after insert except for EventStatus, which the
// publisher and the outbox sweeper flip to published.
type Sale struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// SaleUID is the globally unique event identity carried on the wire
	// and stored in processed_events by consumers.
	SaleUID   string          `gorm:"size:64;uniqueIndex;not null" json:"sale_uid"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	UserID    *int64          `gorm:"index" json:"user_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	SoldAt    time.Time       `gorm:"not null;index" json:"sold_at"`

	EventStatus SaleEventStatus `gorm:"not null;default:0;index" json:"-"`
}

func (Sale) TableName() string { return "sales" }
