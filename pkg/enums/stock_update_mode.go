package enums

import (
	"fmt"
	"strings"
)

// StockUpdateMode selects how an admin edit revises an item's total stock.
type StockUpdateMode string

const (
	// StockUpdateSet replaces total stock and resets available stock to it.
	StockUpdateSet StockUpdateMode = "SET"
	// StockUpdateAdd shifts total and available stock by the same delta.
	StockUpdateAdd StockUpdateMode = "ADD"
)

// IsValid reports whether the value is a known StockUpdateMode.
func (m StockUpdateMode) IsValid() bool {
	return m == StockUpdateSet || m == StockUpdateAdd
}

// ParseStockUpdateMode converts raw input into a StockUpdateMode.
func ParseStockUpdateMode(value string) (StockUpdateMode, error) {
	mode := StockUpdateMode(strings.ToUpper(strings.TrimSpace(value)))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid stock update mode %q", value)
	}
	return mode, nil
}
