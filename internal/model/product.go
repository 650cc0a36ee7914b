package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the inventory ledger row. Stock must never go negative;
// the sales recorder enforces that under a row lock.
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SKU   string          `gorm:"size:100;uniqueIndex;not null" json:"sku"`
	Name  string          `gorm:"size:100;not null" json:"name"`
	Price decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock int             `gorm:"not null;default:0" json:"stock"`
}

func (Product) TableName() string { return "products" }
