package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/enums"
)

// InventoryItem is one sellable vegetable within a single day's partition. The
// same item id is reused across partitions when a catalog is copied forward.
type InventoryItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PartitionKey   string          `gorm:"column:partition_key;type:text;primaryKey"`
	Name           string          `gorm:"column:name;not null"`
	UnitType       enums.UnitType  `gorm:"column:unit_type;type:text;not null"`
	PricePerKg     decimal.Decimal `gorm:"column:price_per_kg;type:numeric(12,2);not null"`
	TotalStock     decimal.Decimal `gorm:"column:total_stock;type:numeric(12,3);not null"`
	AvailableStock decimal.Decimal `gorm:"column:available_stock;type:numeric(12,3);not null"`
	Version        int64           `gorm:"column:version;not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryItem) TableName() string { return "inventory_items" }

// Sold is the quantity already reserved by orders for the day.
func (i InventoryItem) Sold() decimal.Decimal {
	return i.TotalStock.Sub(i.AvailableStock)
}
