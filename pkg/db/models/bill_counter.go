package models

import "time"

// BillCounter holds the last issued bill sequence of a partition.
type BillCounter struct {
	PartitionKey string    `gorm:"column:partition_key;type:text;primaryKey"`
	LastSequence int64     `gorm:"column:last_sequence;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BillCounter) TableName() string { return "bill_counters" }
