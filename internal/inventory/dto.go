package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/enums"
)

// UpsertItemInput creates an item or edits its catalog fields. TotalStock is
// only read on create; later stock edits go through UpdateStock.
type UpsertItemInput struct {
	ID         *uuid.UUID
	Name       string
	UnitType   enums.UnitType
	PricePerKg decimal.Decimal
	TotalStock decimal.Decimal
}

// StockLevel is one row of the available-stock view.
type StockLevel struct {
	ItemID         uuid.UUID       `json:"item_id"`
	Name           string          `json:"name"`
	UnitType       enums.UnitType  `json:"unit_type"`
	PricePerKg     decimal.Decimal `json:"price_per_kg"`
	TotalStock     decimal.Decimal `json:"total_stock"`
	AvailableStock decimal.Decimal `json:"available_stock"`
	Orderable      decimal.Decimal `json:"orderable"`
}

// StockView is the sellable snapshot of one partition.
type StockView struct {
	PartitionKey string       `json:"partition_key"`
	Items        []StockLevel `json:"items"`
}

// Orderable indexes the view by item id.
func (v StockView) Orderable() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(v.Items))
	for _, item := range v.Items {
		out[item.ItemID] = item.Orderable
	}
	return out
}

// ItemDTO is the admin-facing representation of an inventory row.
type ItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	PartitionKey   string          `json:"partition_key"`
	Name           string          `json:"name"`
	UnitType       enums.UnitType  `json:"unit_type"`
	PricePerKg     decimal.Decimal `json:"price_per_kg"`
	TotalStock     decimal.Decimal `json:"total_stock"`
	AvailableStock decimal.Decimal `json:"available_stock"`
	Version        int64           `json:"version"`
}

// NewItemDTO maps a model row.
func NewItemDTO(item models.InventoryItem) ItemDTO {
	return ItemDTO{
		ID:             item.ID,
		PartitionKey:   item.PartitionKey,
		Name:           item.Name,
		UnitType:       item.UnitType,
		PricePerKg:     item.PricePerKg,
		TotalStock:     item.TotalStock,
		AvailableStock: item.AvailableStock,
		Version:        item.Version,
	}
}
