package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
)

// Repository persists per-partition bill counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextSequence(ctx context.Context, key partition.Key) (int64, error)
	LastSequence(ctx context.Context, key partition.Key) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bill counter repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// NextSequence advances the counter with a compare-and-swap on last_sequence.
// A lost race returns db.ErrConflict so the enclosing transaction is replayed.
func (r *repository) NextSequence(ctx context.Context, key partition.Key) (int64, error) {
	conn := r.db.WithContext(ctx)

	var counter models.BillCounter
	err := conn.Where("partition_key = ?", key.String()).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.BillCounter{PartitionKey: key.String(), LastSequence: 1}
		if err := conn.Create(&counter).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return 0, fmt.Errorf("create bill counter %s: %w", key, db.ErrConflict)
			}
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	next := counter.LastSequence + 1
	res := conn.Model(&models.BillCounter{}).
		Where("partition_key = ? AND last_sequence = ?", key.String(), counter.LastSequence).
		Updates(map[string]any{
			"last_sequence": next,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("advance bill counter %s: %w", key, db.ErrConflict)
	}
	return next, nil
}

func (r *repository) LastSequence(ctx context.Context, key partition.Key) (int64, error) {
	var counter models.BillCounter
	err := r.db.WithContext(ctx).Where("partition_key = ?", key.String()).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.LastSequence, nil
}
