package shopclient

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/enums"
)

// StockLevel is one sellable item as returned by GET /api/v1/stock.
type StockLevel struct {
	ItemID         uuid.UUID       `json:"item_id"`
	Name           string          `json:"name"`
	UnitType       enums.UnitType  `json:"unit_type"`
	PricePerKg     decimal.Decimal `json:"price_per_kg"`
	TotalStock     decimal.Decimal `json:"total_stock"`
	AvailableStock decimal.Decimal `json:"available_stock"`
	Orderable      decimal.Decimal `json:"orderable"`
}

// StockView is the stock snapshot of one partition.
type StockView struct {
	PartitionKey string       `json:"partition_key"`
	Items        []StockLevel `json:"items"`
}

// OrderLine is one priced line of a placed order.
type OrderLine struct {
	ItemID     uuid.UUID       `json:"item_id"`
	Name       string          `json:"name"`
	UnitType   enums.UnitType  `json:"unit_type"`
	Quantity   decimal.Decimal `json:"quantity"`
	PricePerKg decimal.Decimal `json:"price_per_kg"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// PlacedOrder is the receipt returned by POST /api/v1/orders.
type PlacedOrder struct {
	BillID       string          `json:"bill_id"`
	BillSequence int64           `json:"bill_sequence"`
	PartitionKey string          `json:"partition_key"`
	Total        decimal.Decimal `json:"total"`
	Items        []OrderLine     `json:"items"`
}

// Order is the full order as returned by GET /api/v1/orders/{bill_id}.
type Order struct {
	ID           uuid.UUID         `json:"id"`
	BillID       string            `json:"bill_id"`
	BillSequence int64             `json:"bill_sequence"`
	PartitionKey string            `json:"partition_key"`
	CustomerID   string            `json:"customer_id"`
	BagCount     int               `json:"bag_count"`
	Total        decimal.Decimal   `json:"total"`
	Status       enums.OrderStatus `json:"status"`
	Items        []OrderLine       `json:"items"`
	CreatedAt    time.Time         `json:"created_at"`
}
