// Package stock holds the available-stock policy shared by the reservation
// engine, the stock view and client-side cart clamping.
package stock

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/enums"
)

const (
	// QuantityScale is the number of decimal places a stock level or order
	// quantity may carry. It matches the numeric(12,3) stock columns.
	QuantityScale = 3
	// PriceScale matches the numeric(12,2) price column.
	PriceScale = 2
)

var one = decimal.NewFromInt(1)

// Orderable returns how much of an item can still be sold.
//
// COUNT items sell down to zero. KG items withhold reservedFraction of the
// day's total: once total*(1-reservedFraction) has been sold nothing more is
// orderable even if physical stock remains. The result is truncated to
// QuantityScale so it can always be ordered back verbatim, and stays within
// [0, available].
func Orderable(available, total decimal.Decimal, unit enums.UnitType, reservedFraction decimal.Decimal) decimal.Decimal {
	if !available.IsPositive() {
		return decimal.Zero
	}
	remaining := available
	if unit == enums.UnitTypeKG {
		sold := total.Sub(available)
		limit := total.Mul(one.Sub(reservedFraction))
		remaining = decimal.Max(decimal.Zero, decimal.Min(available, limit.Sub(sold)))
	}
	return remaining.Truncate(QuantityScale)
}

// Policy binds Orderable to a configured reserved fraction.
type Policy struct {
	reservedFraction decimal.Decimal
}

// NewPolicy validates fraction is in [0, 1).
func NewPolicy(reservedFraction decimal.Decimal) (Policy, error) {
	if reservedFraction.IsNegative() || reservedFraction.GreaterThanOrEqual(one) {
		return Policy{}, fmt.Errorf("reserved fraction must be in [0, 1), got %s", reservedFraction)
	}
	return Policy{reservedFraction: reservedFraction}, nil
}

// ReservedFraction returns the configured buffer.
func (p Policy) ReservedFraction() decimal.Decimal {
	return p.reservedFraction
}

func (p Policy) Orderable(available, total decimal.Decimal, unit enums.UnitType) decimal.Decimal {
	return Orderable(available, total, unit, p.reservedFraction)
}

// WithinScale reports whether v has at most places decimal places.
func WithinScale(v decimal.Decimal, places int32) bool {
	return v.Truncate(places).Equal(v)
}

// ValidQuantity reports whether qty can be ordered or stocked for unit.
// Quantities must be positive and COUNT items whole.
func ValidQuantity(unit enums.UnitType, qty decimal.Decimal) bool {
	if !qty.IsPositive() {
		return false
	}
	if unit == enums.UnitTypeCount {
		return qty.IsInteger()
	}
	return true
}
