package enums

import (
	"fmt"
	"strings"
)

// UnitType describes how an inventory item is measured and sold.
type UnitType string

const (
	UnitTypeKG    UnitType = "KG"
	UnitTypeCount UnitType = "COUNT"
)

var validUnitTypes = []UnitType{
	UnitTypeKG,
	UnitTypeCount,
}

// String implements fmt.Stringer.
func (u UnitType) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UnitType.
func (u UnitType) IsValid() bool {
	for _, candidate := range validUnitTypes {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUnitType converts raw input into a UnitType. Matching is case-insensitive.
func ParseUnitType(value string) (UnitType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validUnitTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid unit type %q", value)
}
