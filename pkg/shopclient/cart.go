package shopclient

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

// CartLine is one requested item.
type CartLine struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}

// Cart is what the customer intends to order.
type Cart struct {
	Lines    []CartLine
	BagCount int
}

// Shortfall mirrors the server's insufficient-stock detail. Available is the
// orderable quantity, not the raw stock.
type Shortfall struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name,omitempty"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

// Adjustment records a line the clamp changed.
type Adjustment struct {
	ItemID    uuid.UUID
	Requested decimal.Decimal
	Allowed   decimal.Decimal
}

// AdjustedCart is a cart reduced to what can be sold, to be shown to the
// customer for re-confirmation before resubmitting.
type AdjustedCart struct {
	Cart        Cart
	Adjustments []Adjustment
	Shortfalls  []Shortfall
}

// ClampCart limits every line to the orderable quantity in view, computed
// with the client's policy. Lines with nothing orderable are dropped, and so
// are items missing from the view. COUNT lines are rounded down to whole
// units.
func (c *Client) ClampCart(view *StockView, cart Cart) AdjustedCart {
	out := AdjustedCart{Cart: Cart{BagCount: cart.BagCount}}
	levels := make(map[uuid.UUID]StockLevel)
	if view != nil {
		for _, level := range view.Items {
			levels[level.ItemID] = level
		}
	}

	for _, line := range cart.Lines {
		allowed := decimal.Zero
		if level, ok := levels[line.ItemID]; ok {
			allowed = c.policy.Orderable(level.AvailableStock, level.TotalStock, level.UnitType)
		}
		clamped := decimal.Min(line.Quantity, allowed)
		if level, ok := levels[line.ItemID]; ok && level.UnitType == enums.UnitTypeCount {
			clamped = clamped.Floor()
		}
		if !clamped.Equal(line.Quantity) {
			out.Adjustments = append(out.Adjustments, Adjustment{ItemID: line.ItemID, Requested: line.Quantity, Allowed: clamped})
		}
		if clamped.IsPositive() {
			out.Cart.Lines = append(out.Cart.Lines, CartLine{ItemID: line.ItemID, Quantity: clamped})
		}
	}
	return out
}

func adjustForShortfalls(cart Cart, shortfalls []Shortfall) *AdjustedCart {
	short := make(map[uuid.UUID]Shortfall, len(shortfalls))
	for _, s := range shortfalls {
		short[s.ItemID] = s
	}

	out := &AdjustedCart{Cart: Cart{BagCount: cart.BagCount}, Shortfalls: shortfalls}
	for _, line := range cart.Lines {
		s, ok := short[line.ItemID]
		if !ok {
			out.Cart.Lines = append(out.Cart.Lines, line)
			continue
		}
		allowed := decimal.Max(decimal.Zero, decimal.Min(line.Quantity, s.Available))
		out.Adjustments = append(out.Adjustments, Adjustment{ItemID: line.ItemID, Requested: line.Quantity, Allowed: allowed})
		if allowed.IsPositive() {
			out.Cart.Lines = append(out.Cart.Lines, CartLine{ItemID: line.ItemID, Quantity: allowed})
		}
	}
	return out
}

// AdjustedCartFrom extracts the adjusted cart from a PlaceOrder error.
func AdjustedCartFrom(err error) (*AdjustedCart, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return nil, false
	}
	adjusted, ok := typed.Details().(*AdjustedCart)
	return adjusted, ok
}
