// Package inventory manages the per-day catalog: admin item edits, SET/ADD
// stock revisions, copy-forward of a catalog and the available-stock view.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/internal/stock"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/logger"
	"github.com/vegshop/vegshop-backend/pkg/metrics"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
	"github.com/vegshop/vegshop-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithOptimisticTx(ctx context.Context, policy db.RetryPolicy, fn func(tx *gorm.DB) error) (int, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes catalog administration and the stock view.
type Service interface {
	ListItems(ctx context.Context, key partition.Key) ([]models.InventoryItem, error)
	UpsertItem(ctx context.Context, key partition.Key, input UpsertItemInput) (*models.InventoryItem, error)
	UpdateStock(ctx context.Context, key partition.Key, itemID uuid.UUID, mode enums.StockUpdateMode, value decimal.Decimal) (*models.InventoryItem, error)
	GetAvailableStock(ctx context.Context, key partition.Key) (*StockView, error)
	CopyForward(ctx context.Context, from, to partition.Key) (int, error)
}

// ServiceParams wires the inventory service.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Outbox  outboxPublisher
	Policy  stock.Policy
	Retry   db.RetryPolicy
	Metrics *metrics.ReservationMetrics
	Logger  *logger.Logger
}

type service struct {
	db      txRunner
	repo    Repository
	outbox  outboxPublisher
	policy  stock.Policy
	retry   db.RetryPolicy
	metrics *metrics.ReservationMetrics
	logg    *logger.Logger
}

// NewService builds the inventory service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		db:      params.DB,
		repo:    params.Repo,
		outbox:  params.Outbox,
		policy:  params.Policy,
		retry:   params.Retry,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

func (s *service) ListItems(ctx context.Context, key partition.Key) ([]models.InventoryItem, error) {
	if key.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partition key required")
	}
	items, err := s.repo.ListByPartition(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return items, nil
}

func (s *service) UpsertItem(ctx context.Context, key partition.Key, input UpsertItemInput) (*models.InventoryItem, error) {
	if key.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partition key required")
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateUpsert(input); err != nil {
		return nil, err
	}

	var saved models.InventoryItem
	_, err := s.db.WithOptimisticTx(ctx, s.retry, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.ID != nil {
			existing, err := repo.FindByID(ctx, key, *input.ID)
			if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return err
			}
			if existing != nil {
				return s.applyDetails(ctx, repo, *existing, input, &saved)
			}
		}

		if !stock.ValidQuantity(input.UnitType, input.TotalStock) && !input.TotalStock.IsZero() {
			return invalidQuantity(input.UnitType, input.TotalStock)
		}
		id := uuid.New()
		if input.ID != nil {
			id = *input.ID
		}
		saved = models.InventoryItem{
			ID:             id,
			PartitionKey:   key.String(),
			Name:           input.Name,
			UnitType:       input.UnitType,
			PricePerKg:     input.PricePerKg,
			TotalStock:     input.TotalStock,
			AvailableStock: input.TotalStock,
		}
		if err := repo.Create(ctx, saved); err != nil {
			if db.IsUniqueViolation(err, "") {
				return fmt.Errorf("create item %s: %w", id, db.ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithPartition(ctx, key.String())
	s.logg.Info(s.logg.WithField(logCtx, "item_id", saved.ID.String()), "inventory item saved")
	return &saved, nil
}

func (s *service) applyDetails(ctx context.Context, repo Repository, existing models.InventoryItem, input UpsertItemInput, out *models.InventoryItem) error {
	if existing.UnitType != input.UnitType && !existing.Sold().IsZero() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "unit type cannot change after sales").
			WithDetails(map[string]any{"item_id": existing.ID, "sold": existing.Sold()})
	}
	if input.UnitType == enums.UnitTypeCount && (!existing.TotalStock.IsInteger() || !existing.AvailableStock.IsInteger()) {
		return invalidQuantity(input.UnitType, existing.TotalStock)
	}
	updated := existing
	updated.Name = input.Name
	updated.UnitType = input.UnitType
	updated.PricePerKg = input.PricePerKg
	if err := repo.SwapDetails(ctx, updated); err != nil {
		return err
	}
	updated.Version++
	*out = updated
	return nil
}

// UpdateStock applies an admin SET or ADD revision in one optimistic
// transaction against the same row the reservation engine decrements.
func (s *service) UpdateStock(ctx context.Context, key partition.Key, itemID uuid.UUID, mode enums.StockUpdateMode, value decimal.Decimal) (*models.InventoryItem, error) {
	if key.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partition key required")
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mode must be SET or ADD")
	}

	var saved models.InventoryItem
	_, err := s.db.WithOptimisticTx(ctx, s.retry, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindByID(ctx, key, itemID)
		if err != nil {
			return err
		}
		total, available, err := ApplyStockUpdate(*item, mode, value)
		if err != nil {
			return err
		}
		if err := repo.SwapStock(ctx, *item, total, available); err != nil {
			return err
		}
		saved = *item
		saved.TotalStock = total
		saved.AvailableStock = available
		saved.Version++

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   item.ID,
			Data: payloads.StockAdjustedEvent{
				ItemID:         item.ID,
				PartitionKey:   key.String(),
				Mode:           mode,
				Value:          value,
				TotalStock:     total,
				AvailableStock: available,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncStockUpdate(string(mode))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"partition": key.String(),
		"item_id":   itemID.String(),
		"mode":      mode,
		"value":     value.String(),
	})
	s.logg.Info(logCtx, "stock updated")
	return &saved, nil
}

// ApplyStockUpdate computes the new total and available stock.
//
// SET replaces the day's total and resets available to it, discarding the
// sales already counted. ADD shifts both by the same delta so the sold amount
// is preserved; a negative delta may not push available below zero.
func ApplyStockUpdate(item models.InventoryItem, mode enums.StockUpdateMode, value decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !stock.WithinScale(value, stock.QuantityScale) {
		return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "stock value has too many decimal places").
			WithDetails(map[string]any{"value": value, "max_scale": stock.QuantityScale})
	}
	switch mode {
	case enums.StockUpdateSet:
		if value.IsNegative() {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "SET value must not be negative")
		}
		if !value.IsZero() && !stock.ValidQuantity(item.UnitType, value) {
			return decimal.Zero, decimal.Zero, invalidQuantity(item.UnitType, value)
		}
		return value, value, nil
	case enums.StockUpdateAdd:
		if value.IsZero() {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "ADD delta must not be zero")
		}
		if !stock.ValidQuantity(item.UnitType, value.Abs()) {
			return decimal.Zero, decimal.Zero, invalidQuantity(item.UnitType, value)
		}
		total := item.TotalStock.Add(value)
		available := item.AvailableStock.Add(value)
		if available.IsNegative() {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "ADD would drive available stock below zero").
				WithDetails(map[string]any{"item_id": item.ID, "available": item.AvailableStock, "delta": value})
		}
		return total, available, nil
	default:
		return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "mode must be SET or ADD")
	}
}

func (s *service) GetAvailableStock(ctx context.Context, key partition.Key) (*StockView, error) {
	items, err := s.ListItems(ctx, key)
	if err != nil {
		return nil, err
	}
	view := &StockView{PartitionKey: key.String(), Items: make([]StockLevel, 0, len(items))}
	for _, item := range items {
		view.Items = append(view.Items, StockLevel{
			ItemID:         item.ID,
			Name:           item.Name,
			UnitType:       item.UnitType,
			PricePerKg:     item.PricePerKg,
			TotalStock:     item.TotalStock,
			AvailableStock: item.AvailableStock,
			Orderable:      s.policy.Orderable(item.AvailableStock, item.TotalStock, item.UnitType),
		})
	}
	return view, nil
}

// CopyForward seeds an empty partition with the catalog of another one.
// Stock restarts at each item's total. A target that already has rows is left
// alone and 0 is returned.
func (s *service) CopyForward(ctx context.Context, from, to partition.Key) (int, error) {
	if from.IsZero() || to.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "source and target partitions required")
	}
	if from == to {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "source and target partitions must differ")
	}
	if to.IsLegacy() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "legacy partition is read-only for copy-forward")
	}

	copied := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.CountByPartition(ctx, to)
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		source, err := repo.ListByPartition(ctx, from)
		if err != nil {
			return err
		}
		if len(source) == 0 {
			return nil
		}
		rows := make([]models.InventoryItem, 0, len(source))
		for _, item := range source {
			rows = append(rows, models.InventoryItem{
				ID:             item.ID,
				PartitionKey:   to.String(),
				Name:           item.Name,
				UnitType:       item.UnitType,
				PricePerKg:     item.PricePerKg,
				TotalStock:     item.TotalStock,
				AvailableStock: item.TotalStock,
			})
		}
		if err := repo.Create(ctx, rows...); err != nil {
			return err
		}
		copied = len(rows)
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "copy catalog forward")
	}
	if copied > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{"from": from.String(), "to": to.String(), "items": copied})
		s.logg.Info(logCtx, "catalog copied forward")
	}
	return copied, nil
}

func validateUpsert(input UpsertItemInput) error {
	details := map[string]any{}
	if input.Name == "" {
		details["name"] = "required"
	}
	if !input.UnitType.IsValid() {
		details["unit_type"] = "must be KG or COUNT"
	}
	switch {
	case input.PricePerKg.IsNegative():
		details["price_per_kg"] = "must not be negative"
	case !stock.WithinScale(input.PricePerKg, stock.PriceScale):
		details["price_per_kg"] = fmt.Sprintf("at most %d decimal places", stock.PriceScale)
	}
	switch {
	case input.TotalStock.IsNegative():
		details["total_stock"] = "must not be negative"
	case !stock.WithinScale(input.TotalStock, stock.QuantityScale):
		details["total_stock"] = fmt.Sprintf("at most %d decimal places", stock.QuantityScale)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid inventory item").WithDetails(details)
	}
	return nil
}

func invalidQuantity(unit enums.UnitType, value decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity is not valid for the unit type").
		WithDetails(map[string]any{"unit_type": unit, "value": value})
}
