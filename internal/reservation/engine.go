// Package reservation runs the atomic order unit: check every line against
// the available-stock policy, decrement stock, draw a bill sequence, insert
// the order and queue its event, all in one optimistic transaction.
package reservation

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/vegshop/vegshop-backend/internal/billing"
	"github.com/vegshop/vegshop-backend/internal/inventory"
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
	"github.com/vegshop/vegshop-backend/pkg/tracing"
)

type txRunner interface {
	WithOptimisticTx(ctx context.Context, policy db.RetryPolicy, fn func(tx *gorm.DB) error) (int, error)
}

type billIssuer interface {
	Next(ctx context.Context, tx *gorm.DB, key partition.Key) (int64, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Params wires an Engine.
type Params struct {
	DB      txRunner
	Items   inventory.Repository
	Orders  Repository
	Bills   billIssuer
	Outbox  outboxPublisher
	Policy  stock.Policy
	Retry   db.RetryPolicy
	Metrics *metrics.ReservationMetrics
	Logger  *logger.Logger
	Tracer  trace.Tracer
}

// Engine places orders.
type Engine struct {
	db      txRunner
	items   inventory.Repository
	orders  Repository
	bills   billIssuer
	outbox  outboxPublisher
	policy  stock.Policy
	retry   db.RetryPolicy
	metrics *metrics.ReservationMetrics
	logg    *logger.Logger
	tracer  trace.Tracer
}

// NewEngine validates params and builds the engine.
func NewEngine(p Params) (*Engine, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Items == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if p.Bills == nil {
		return nil, fmt.Errorf("bill issuer required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Tracer == nil {
		p.Tracer = tracing.Tracer("vegshop/reservation")
	}
	return &Engine{
		db:      p.DB,
		items:   p.Items,
		orders:  p.Orders,
		bills:   p.Bills,
		outbox:  p.Outbox,
		policy:  p.Policy,
		retry:   p.Retry,
		metrics: p.Metrics,
		logg:    p.Logger,
		tracer:  p.Tracer,
	}, nil
}

// Place reserves stock for every line and creates the order, or changes
// nothing. Lost races on a stock row or the bill counter replay the whole
// unit; a shortfall on any line fails the order with CodeInsufficientStock
// listing every short line.
func (e *Engine) Place(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "reservation.place", trace.WithAttributes(
		attribute.String("partition", req.PartitionKey.String()),
		attribute.Int("lines", len(req.Lines)),
	))
	defer span.End()

	logCtx := e.logg.WithFields(ctx, map[string]any{
		"partition":   req.PartitionKey.String(),
		"customer_id": req.CustomerID,
	})

	lines, err := normalize(req)
	if err != nil {
		e.finish(logCtx, span, nil, 0, started, err)
		return nil, err
	}

	var order models.Order
	attempts, err := e.db.WithOptimisticTx(ctx, e.retry, func(tx *gorm.DB) error {
		placed, err := e.reserve(ctx, tx, req, lines)
		if err != nil {
			return err
		}
		order = *placed
		return nil
	})
	if err != nil {
		e.finish(logCtx, span, nil, attempts, started, err)
		return nil, err
	}

	e.finish(logCtx, span, &order, attempts, started, nil)
	return &Result{Order: order, Attempts: attempts}, nil
}

func (e *Engine) reserve(ctx context.Context, tx *gorm.DB, req Request, lines []Line) (*models.Order, error) {
	items := e.items.WithTx(tx)

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	rows, err := items.FindByIDs(ctx, req.PartitionKey, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.InventoryItem, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	missing := make([]uuid.UUID, 0)
	for _, line := range lines {
		if _, ok := byID[line.ItemID]; !ok {
			missing = append(missing, line.ItemID)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "items not stocked for this day").
			WithDetails(map[string]any{"item_ids": missing, "partition": req.PartitionKey.String()})
	}

	shortfalls := make([]Shortfall, 0)
	for _, line := range lines {
		item := byID[line.ItemID]
		if !stock.ValidQuantity(item.UnitType, line.Quantity) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a whole number for COUNT items").
				WithDetails(map[string]any{"item_id": item.ID, "quantity": line.Quantity})
		}
		orderable := e.policy.Orderable(item.AvailableStock, item.TotalStock, item.UnitType)
		if line.Quantity.GreaterThan(orderable) {
			shortfalls = append(shortfalls, Shortfall{
				ItemID:    item.ID,
				Name:      item.Name,
				Requested: line.Quantity,
				Available: orderable,
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(shortfalls)
	}

	for _, line := range lines {
		item := byID[line.ItemID]
		if err := items.SwapStock(ctx, item, item.TotalStock, item.AvailableStock.Sub(line.Quantity)); err != nil {
			return nil, err
		}
	}

	seq, err := e.bills.Next(ctx, tx, req.PartitionKey)
	if err != nil {
		return nil, err
	}

	order := buildOrder(req, lines, byID, seq)
	if err := e.orders.WithTx(tx).CreateOrder(ctx, &order); err != nil {
		if db.IsUniqueViolation(err, "ux_orders_partition_sequence") || db.IsUniqueViolation(err, "ux_orders_bill_id") {
			return nil, fmt.Errorf("insert order %s: %w", order.BillID, db.ErrConflict)
		}
		return nil, err
	}

	event := payloads.OrderCreatedEvent{
		OrderID:      order.ID,
		BillID:       order.BillID,
		BillSequence: order.BillSequence,
		PartitionKey: order.PartitionKey,
		CustomerID:   order.CustomerID,
		BagCount:     order.BagCount,
		Total:        order.Total,
		Lines:        make([]payloads.OrderLine, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		event.Lines = append(event.Lines, payloads.OrderLine{
			ItemID:   line.ItemID,
			Name:     line.Name,
			Quantity: line.Quantity,
			Subtotal: line.Subtotal,
		})
	}
	if err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         req.Actor,
		Data:          event,
	}); err != nil {
		return nil, err
	}
	return &order, nil
}

func buildOrder(req Request, lines []Line, items map[uuid.UUID]models.InventoryItem, seq int64) models.Order {
	order := models.Order{
		ID:           uuid.New(),
		BillID:       billing.FormatBillID(req.Day, seq),
		PartitionKey: req.PartitionKey.String(),
		BillSequence: seq,
		CustomerID:   req.CustomerID,
		BagCount:     req.BagCount,
		Status:       enums.OrderStatusPending,
		Lines:        make([]models.OrderLine, 0, len(lines)),
	}
	total := decimal.Zero
	for _, line := range lines {
		item := items[line.ItemID]
		subtotal := line.Quantity.Mul(item.PricePerKg).Round(2)
		total = total.Add(subtotal)
		order.Lines = append(order.Lines, models.OrderLine{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ItemID:     item.ID,
			Name:       item.Name,
			UnitType:   item.UnitType,
			Quantity:   line.Quantity,
			PricePerKg: item.PricePerKg,
			Subtotal:   subtotal,
		})
	}
	order.Total = total
	return order
}

// normalize validates the request shape and merges repeated items. Lines are
// returned sorted by item id so concurrent orders touch rows in one order.
func normalize(req Request) ([]Line, error) {
	if req.PartitionKey.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partition key required")
	}
	if req.Day.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order day required")
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if req.BagCount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bag count must not be negative")
	}
	if len(req.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	merged := make(map[uuid.UUID]decimal.Decimal, len(req.Lines))
	for i, line := range req.Lines {
		if line.ItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required").
				WithDetails(map[string]any{"line": i})
		}
		if !line.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"line": i, "item_id": line.ItemID})
		}
		if !stock.WithinScale(line.Quantity, stock.QuantityScale) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity has too many decimal places").
				WithDetails(map[string]any{"line": i, "item_id": line.ItemID, "max_scale": stock.QuantityScale})
		}
		merged[line.ItemID] = merged[line.ItemID].Add(line.Quantity)
	}

	out := make([]Line, 0, len(merged))
	for id, qty := range merged {
		out = append(out, Line{ItemID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ItemID[:], out[j].ItemID[:]) < 0
	})
	return out, nil
}

func (e *Engine) finish(ctx context.Context, span trace.Span, order *models.Order, attempts int, started time.Time, err error) {
	outcome := outcomeFor(err)
	e.metrics.ObserveReservation(outcome, attempts, time.Since(started))
	span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("attempts", attempts))

	logCtx := e.logg.WithFields(ctx, map[string]any{"attempts": attempts, "outcome": outcome})
	switch outcome {
	case metrics.OutcomeCommitted:
		span.SetAttributes(attribute.String("bill_id", order.BillID))
		logCtx = e.logg.WithFields(logCtx, map[string]any{
			"bill_id": order.BillID,
			"total":   order.Total.StringFixed(2),
		})
		e.logg.Info(logCtx, "order reserved")
	case metrics.OutcomeInsufficientStock, metrics.OutcomeRejected:
		e.logg.Info(logCtx, "order rejected")
	case metrics.OutcomeConflict:
		span.SetStatus(codes.Error, "retries exhausted")
		e.logg.Warn(logCtx, "order reservation retries exhausted")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation failed")
		e.logg.Error(logCtx, "order reservation failed", err)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCommitted
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
		return metrics.OutcomeInsufficientStock
	case pkgerrors.HasCode(err, pkgerrors.CodeTransactionConflict):
		return metrics.OutcomeConflict
	case pkgerrors.HasCode(err, pkgerrors.CodeValidation), pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// Shortfalls extracts the short lines from an insufficient-stock error.
func Shortfalls(err error) []Shortfall {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return nil
	}
	out, _ := typed.Details().([]Shortfall)
	return out
}
