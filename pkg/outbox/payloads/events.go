package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/enums"
)

// OrderLine is one reserved item inside an OrderCreatedEvent.
type OrderLine struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// OrderCreatedEvent is emitted in the reservation transaction of a new bill.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID       `json:"order_id"`
	BillID       string          `json:"bill_id"`
	BillSequence int64           `json:"bill_sequence"`
	PartitionKey string          `json:"partition_key"`
	CustomerID   string          `json:"customer_id"`
	BagCount     int             `json:"bag_count"`
	Total        decimal.Decimal `json:"total"`
	Lines        []OrderLine     `json:"lines"`
}

// OrderStatusChangedEvent follows every accepted status transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	BillID    string            `json:"bill_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// StockAdjustedEvent records an admin SET or ADD edit.
type StockAdjustedEvent struct {
	ItemID         uuid.UUID             `json:"item_id"`
	PartitionKey   string                `json:"partition_key"`
	Mode           enums.StockUpdateMode `json:"mode"`
	Value          decimal.Decimal       `json:"value"`
	TotalStock     decimal.Decimal       `json:"total_stock"`
	AvailableStock decimal.Decimal       `json:"available_stock"`
}
