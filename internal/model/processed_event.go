package model

import "time"

// ProcessedEvent is the dedup marker: one row per event that has been
// durably folded into the time series. Insert of this row is the
// consumer's commit point.
type ProcessedEvent struct {
	EventID     string    `gorm:"primarykey;size:64" json:"event_id"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }
