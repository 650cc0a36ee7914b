package queue

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
)

// SaleEvent is the wire representation of a sale on the sale.created topic.
// SaleID is globally unique and doubles as the dedup key on the consumer side.
type SaleEvent struct {
	SaleID    string          `json:"sale_id"`
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	SoldAt    time.Time       `json:"sold_at"`
	UserID    *int64          `json:"user_id"`
}

// Validate rejects malformed payloads before they reach the handler.
func (e SaleEvent) Validate() error {
	if e.SaleID == "" {
		return fmt.Errorf("sale_id is required")
	}
	if e.ProductID == 0 {
		return fmt.Errorf("product_id is required")
	}
	if e.Quantity <= 0 {
		return fmt.Errorf("quantity must be > 0")
	}
	if e.SoldAt.IsZero() {
		return fmt.Errorf("sold_at is required")
	}
	return nil
}

// SaleEventFrom builds the event for a persisted sale.
func SaleEventFrom(s model.Sale) SaleEvent {
	return SaleEvent{
		SaleID:    s.SaleUID,
		ProductID: s.ProductID,
		Quantity:  s.Quantity,
		Price:     s.Price,
		SoldAt:    s.SoldAt,
		UserID:    s.UserID,
	}
}

// ProductEvent is published on the product lifecycle topics for external
// consumers (ETL, caches); nothing in this process subscribes to it.
type ProductEvent struct {
	ProductID uint            `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

// ProductEventFrom builds the lifecycle payload for a product row.
func ProductEventFrom(p model.Product) ProductEvent {
	return ProductEvent{
		ProductID: p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	}
}
