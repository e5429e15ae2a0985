package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

// Repository reads and writes partition-scoped inventory rows. Every stock
// mutation is a compare-and-swap on the version column.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByPartition(ctx context.Context, key partition.Key) ([]models.InventoryItem, error)
	CountByPartition(ctx context.Context, key partition.Key) (int64, error)
	FindByID(ctx context.Context, key partition.Key, id uuid.UUID) (*models.InventoryItem, error)
	FindByIDs(ctx context.Context, key partition.Key, ids []uuid.UUID) ([]models.InventoryItem, error)
	Create(ctx context.Context, items ...models.InventoryItem) error
	SwapDetails(ctx context.Context, item models.InventoryItem) error
	SwapStock(ctx context.Context, item models.InventoryItem, total, available decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the inventory repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByPartition(ctx context.Context, key partition.Key) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("partition_key = ?", key.String()).
		Order("name ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) CountByPartition(ctx context.Context, key partition.Key) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("partition_key = ?", key.String()).
		Count(&count).Error
	return count, err
}

func (r *repository) FindByID(ctx context.Context, key partition.Key, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("partition_key = ? AND id = ?", key.String(), id).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found").
			WithDetails(map[string]any{"item_id": id, "partition": key.String()})
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDs returns the rows that exist; callers compare against ids.
func (r *repository) FindByIDs(ctx context.Context, key partition.Key, ids []uuid.UUID) ([]models.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("partition_key = ? AND id IN ?", key.String(), ids).
		Find(&items).Error
	return items, err
}

func (r *repository) Create(ctx context.Context, items ...models.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// SwapDetails updates name, unit and price when the row still has item.Version.
func (r *repository) SwapDetails(ctx context.Context, item models.InventoryItem) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ? AND partition_key = ? AND version = ?", item.ID, item.PartitionKey, item.Version).
		Updates(map[string]any{
			"name":         item.Name,
			"unit_type":    item.UnitType,
			"price_per_kg": item.PricePerKg,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		})
	return casResult(res, item)
}

// SwapStock writes new stock levels when the row still has item.Version.
func (r *repository) SwapStock(ctx context.Context, item models.InventoryItem, total, available decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ? AND partition_key = ? AND version = ?", item.ID, item.PartitionKey, item.Version).
		Updates(map[string]any{
			"total_stock":     total,
			"available_stock": available,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now().UTC(),
		})
	return casResult(res, item)
}

func casResult(res *gorm.DB, item models.InventoryItem) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("inventory item %s@%d: %w", item.ID, item.Version, db.ErrConflict)
	}
	return nil
}
