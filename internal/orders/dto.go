package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
)

// ItemRequest is one cart line submitted by a customer.
type ItemRequest struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

// PlaceOrderInput carries a cart submission. At defaults to now.
type PlaceOrderInput struct {
	CustomerID string
	Items      []ItemRequest
	BagCount   int
	At         time.Time
	Actor      *outbox.ActorRef
}

// ListFilters narrows the admin order list.
type ListFilters struct {
	Status *enums.OrderStatus
}

// LineDTO is an order line as returned to callers.
type LineDTO struct {
	ItemID     uuid.UUID       `json:"item_id"`
	Name       string          `json:"name"`
	UnitType   enums.UnitType  `json:"unit_type"`
	Quantity   decimal.Decimal `json:"quantity"`
	PricePerKg decimal.Decimal `json:"price_per_kg"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// PlacedOrder is the receipt handed back after a successful placement.
type PlacedOrder struct {
	BillID       string          `json:"bill_id"`
	BillSequence int64           `json:"bill_sequence"`
	PartitionKey string          `json:"partition_key"`
	Total        decimal.Decimal `json:"total"`
	Items        []LineDTO       `json:"items"`
}

// OrderDTO is the full read model of an order.
type OrderDTO struct {
	ID           uuid.UUID         `json:"id"`
	BillID       string            `json:"bill_id"`
	BillSequence int64             `json:"bill_sequence"`
	PartitionKey string            `json:"partition_key"`
	CustomerID   string            `json:"customer_id"`
	BagCount     int               `json:"bag_count"`
	Total        decimal.Decimal   `json:"total"`
	Status       enums.OrderStatus `json:"status"`
	Items        []LineDTO         `json:"items"`
	CreatedAt    time.Time         `json:"created_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func newLineDTOs(lines []models.OrderLine) []LineDTO {
	out := make([]LineDTO, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineDTO{
			ItemID:     line.ItemID,
			Name:       line.Name,
			UnitType:   line.UnitType,
			Quantity:   line.Quantity,
			PricePerKg: line.PricePerKg,
			Subtotal:   line.Subtotal,
		})
	}
	return out
}

// NewOrderDTO maps a stored order with its lines.
func NewOrderDTO(order models.Order) OrderDTO {
	return OrderDTO{
		ID:           order.ID,
		BillID:       order.BillID,
		BillSequence: order.BillSequence,
		PartitionKey: order.PartitionKey,
		CustomerID:   order.CustomerID,
		BagCount:     order.BagCount,
		Total:        order.Total,
		Status:       order.Status,
		Items:        newLineDTOs(order.Lines),
		CreatedAt:    order.CreatedAt,
	}
}

func newPlacedOrder(order models.Order) PlacedOrder {
	return PlacedOrder{
		BillID:       order.BillID,
		BillSequence: order.BillSequence,
		PartitionKey: order.PartitionKey,
		Total:        order.Total,
		Items:        newLineDTOs(order.Lines),
	}
}
