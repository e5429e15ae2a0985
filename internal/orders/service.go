// Package orders is the order facade: it places orders through the
// reservation engine and serves reads and status changes afterwards.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vegshop/vegshop-backend/internal/billing"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/internal/reservation"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/logger"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
	"github.com/vegshop/vegshop-backend/pkg/outbox/payloads"
	"github.com/vegshop/vegshop-backend/pkg/pagination"
)

type txRunner interface {
	WithOptimisticTx(ctx context.Context, policy db.RetryPolicy, fn func(tx *gorm.DB) error) (int, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type placer interface {
	Place(ctx context.Context, req reservation.Request) (*reservation.Result, error)
}

// Service defines order operations.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlacedOrder, error)
	GetOrder(ctx context.Context, billID string) (*OrderDTO, error)
	ListOrders(ctx context.Context, key partition.Key, filters ListFilters, params pagination.Params) (*OrderList, error)
	ListCustomerOrders(ctx context.Context, customerID string, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, billID string, next enums.OrderStatus, actor *outbox.ActorRef) (*OrderDTO, error)
}

// ServiceParams wires the orders service.
type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Engine   placer
	Outbox   outboxPublisher
	Resolver *partition.Resolver
	Retry    db.RetryPolicy
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	db       txRunner
	engine   placer
	outbox   outboxPublisher
	resolver *partition.Resolver
	retry    db.RetryPolicy
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the orders service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Engine == nil {
		return nil, fmt.Errorf("reservation engine required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Resolver == nil {
		return nil, fmt.Errorf("partition resolver required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:     p.Repo,
		db:       p.DB,
		engine:   p.Engine,
		outbox:   p.Outbox,
		resolver: p.Resolver,
		retry:    p.Retry,
		logg:     p.Logger,
		now:      p.Now,
	}, nil
}

// PlaceOrder reserves the cart against the partition of the local day
// containing input.At.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlacedOrder, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	at := input.At
	if at.IsZero() {
		at = s.now()
	}
	lines := make([]reservation.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, reservation.Line{ItemID: item.ItemID, Quantity: item.Quantity})
	}

	res, err := s.engine.Place(ctx, reservation.Request{
		PartitionKey: s.resolver.Resolve(at),
		Day:          s.resolver.LocalDay(at),
		CustomerID:   customerID,
		BagCount:     input.BagCount,
		Lines:        lines,
		Actor:        input.Actor,
	})
	if err != nil {
		return nil, err
	}
	placed := newPlacedOrder(res.Order)
	return &placed, nil
}

func (s *service) GetOrder(ctx context.Context, billID string) (*OrderDTO, error) {
	billID = strings.TrimSpace(billID)
	if _, _, err := billing.ParseBillID(billID, s.resolver.Location()); err != nil {
		return nil, err
	}
	order, err := s.repo.FindByBillID(ctx, billID)
	if err != nil {
		return nil, wrapRead(err, "load order")
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, key partition.Key, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if key.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partition key required")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, next, err := s.repo.ListByPartition(ctx, key, filters, params)
	if err != nil {
		return nil, wrapRead(err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(row))
	}
	return list, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerID string, params pagination.Params) (*OrderList, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	rows, next, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, wrapRead(err, "list customer orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(row))
	}
	return list, nil
}

// UpdateStatus advances an order along its lifecycle. Only forward moves are
// accepted; stock and lines are never touched.
func (s *service) UpdateStatus(ctx context.Context, billID string, next enums.OrderStatus, actor *outbox.ActorRef) (*OrderDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": next})
	}

	var dto OrderDTO
	_, err := s.db.WithOptimisticTx(ctx, s.retry, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByBillID(ctx, billID)
		if err != nil {
			return err
		}
		from := order.Status
		if !from.CanAdvanceTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status can only move forward").
				WithDetails(map[string]any{"bill_id": billID, "from": from, "to": next})
		}
		if err := repo.UpdateStatus(ctx, order.ID, from, next); err != nil {
			return err
		}
		order.Status = next
		dto = NewOrderDTO(*order)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				BillID:    order.BillID,
				From:      from,
				To:        next,
				ChangedAt: s.now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"bill_id": billID, "status": next})
	s.logg.Info(logCtx, "order status updated")
	return &dto, nil
}

func wrapRead(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
