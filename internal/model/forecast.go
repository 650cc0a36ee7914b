package model

import "time"

// Forecast is one persisted batch prediction, upserted by
// (product_id, period_key). PeriodKey is an ISO week key like "2026-W35".
type Forecast struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint    `gorm:"not null;uniqueIndex:idx_forecast_product_period" json:"product_id"`
	PeriodKey string  `gorm:"size:16;not null;uniqueIndex:idx_forecast_product_period" json:"period_key"`
	Predicted float64 `gorm:"not null" json:"predicted"`
	Lower     float64 `gorm:"not null" json:"lower"`
	Upper     float64 `gorm:"not null" json:"upper"`
}

func (Forecast) TableName() string { return "forecasts" }

// TrainingRun marks one completed batch training per period. Its presence
// is what makes re-running the scheduler within a period a no-op.
type TrainingRun struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PeriodKey string    `gorm:"size:16;uniqueIndex;not null" json:"period_key"`
	Accuracy  float64   `json:"accuracy"`
	TrainedAt time.Time `gorm:"not null" json:"trained_at"`
}

func (TrainingRun) TableName() string { return "training_runs" }
