package reservation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
)

// Line asks for Quantity units (kilograms or pieces) of one item.
type Line struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

// Request is one order submission against a single partition.
type Request struct {
	PartitionKey partition.Key
	// Day is the calendar day printed on the bill.
	Day        time.Time
	CustomerID string
	BagCount   int
	Lines      []Line
	Actor      *outbox.ActorRef
}

// Shortfall reports a line that could not be satisfied. Available is the
// orderable quantity at the time of the check, so clients can clamp to it.
type Shortfall struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name,omitempty"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

// Result is a committed reservation.
type Result struct {
	Order    models.Order
	Attempts int
}
