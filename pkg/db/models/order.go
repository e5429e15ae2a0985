package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/enums"
)

// Order is the bill created by a successful stock reservation.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BillID       string            `gorm:"column:bill_id;type:text;not null;uniqueIndex:ux_orders_bill_id"`
	PartitionKey string            `gorm:"column:partition_key;type:text;not null;uniqueIndex:ux_orders_partition_sequence,priority:1"`
	BillSequence int64             `gorm:"column:bill_sequence;not null;uniqueIndex:ux_orders_partition_sequence,priority:2"`
	CustomerID   string            `gorm:"column:customer_id;type:text;not null;index"`
	BagCount     int               `gorm:"column:bag_count;not null;default:0"`
	Total        decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Lines        []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// OrderLine snapshots the item name and price at the moment of reservation.
type OrderLine struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ItemID     uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	Name       string          `gorm:"column:name;not null"`
	UnitType   enums.UnitType  `gorm:"column:unit_type;type:text;not null"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	PricePerKg decimal.Decimal `gorm:"column:price_per_kg;type:numeric(12,2);not null"`
	Subtotal   decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLine) TableName() string { return "order_lines" }
