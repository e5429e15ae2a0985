package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	"github.com/vegshop/vegshop-backend/pkg/pagination"
)

// Repository reads orders and moves their status. Orders are inserted by the
// reservation engine only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByBillID(ctx context.Context, billID string) (*models.Order, error)
	ListByPartition(ctx context.Context, key partition.Key, filters ListFilters, params pagination.Params) ([]models.Order, string, error)
	ListByCustomer(ctx context.Context, customerID string, params pagination.Params) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) error
}
