package orders

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegshop/vegshop-backend/internal/billing"
	"github.com/vegshop/vegshop-backend/internal/inventory"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/internal/reservation"
	"github.com/vegshop/vegshop-backend/internal/stock"
	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/db/dbtest"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/logger"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
	"github.com/vegshop/vegshop-backend/pkg/pagination"
)

type ordersFixture struct {
	client   *db.Client
	items    inventory.Repository
	svc      Service
	resolver *partition.Resolver
}

func newOrdersFixture(t *testing.T) ordersFixture {
	t.Helper()
	client := dbtest.Open(t)
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	resolver := partition.NewResolver(loc)

	retry := db.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	publisher := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	gen, err := billing.NewGenerator(billing.NewRepository(client.DB()))
	require.NoError(t, err)
	policy, err := stock.NewPolicy(decimal.RequireFromString("0.15"))
	require.NoError(t, err)
	items := inventory.NewRepository(client.DB())

	engine, err := reservation.NewEngine(reservation.Params{
		DB:     client,
		Items:  items,
		Orders: reservation.NewRepository(client.DB()),
		Bills:  gen,
		Outbox: publisher,
		Policy: policy,
		Retry:  retry,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		DB:       client,
		Engine:   engine,
		Outbox:   publisher,
		Resolver: resolver,
		Retry:    retry,
		Now:      func() time.Time { return time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return ordersFixture{client: client, items: items, svc: svc, resolver: resolver}
}

func (f ordersFixture) seed(t *testing.T, day, name string, unit enums.UnitType, price, total string) models.InventoryItem {
	t.Helper()
	key, err := f.resolver.ResolveDate(day)
	require.NoError(t, err)
	item := models.InventoryItem{
		ID:             uuid.New(),
		PartitionKey:   key.String(),
		Name:           name,
		UnitType:       unit,
		PricePerKg:     decimal.RequireFromString(price),
		TotalStock:     decimal.RequireFromString(total),
		AvailableStock: decimal.RequireFromString(total),
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func (f ordersFixture) place(t *testing.T, customer string, item models.InventoryItem, qty string) *PlacedOrder {
	t.Helper()
	placed, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: customer,
		Items:      []ItemRequest{{ItemID: item.ID, Quantity: decimal.RequireFromString(qty)}},
		BagCount:   1,
	})
	require.NoError(t, err)
	return placed
}

func TestPlaceOrderResolvesLocalDay(t *testing.T) {
	f := newOrdersFixture(t)
	tomato := f.seed(t, "2025-03-02", "Tomato", enums.UnitTypeKG, "40", "50")

	// 20:00 UTC on the 1st is 01:30 on the 2nd in the shop's timezone.
	placed, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: "cust-1",
		Items: []ItemRequest{
			{ItemID: tomato.ID, Quantity: decimal.RequireFromString("1.25")},
			{ItemID: tomato.ID, Quantity: decimal.RequireFromString("0.75")},
		},
		BagCount: 2,
		At:       time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02", placed.PartitionKey)
	assert.Equal(t, "ES02032025001", placed.BillID)
	assert.Equal(t, int64(1), placed.BillSequence)
	require.Len(t, placed.Items, 1)
	assert.True(t, decimal.NewFromInt(80).Equal(placed.Total))
}

func TestPlaceOrderRejectsEmptyCartAndAnonymous(t *testing.T) {
	f := newOrdersFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{CustomerID: "cust-1"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Items: []ItemRequest{{ItemID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestGetOrder(t *testing.T) {
	f := newOrdersFixture(t)
	onion := f.seed(t, "2025-03-01", "Onion", enums.UnitTypeKG, "30", "20")
	placed := f.place(t, "cust-1", onion, "2")

	got, err := f.svc.GetOrder(context.Background(), placed.BillID)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Onion", got.Items[0].Name)

	_, err = f.svc.GetOrder(context.Background(), "ES01032025999")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetOrder(context.Background(), "nope")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListOrdersPagesInBillOrder(t *testing.T) {
	f := newOrdersFixture(t)
	onion := f.seed(t, "2025-03-01", "Onion", enums.UnitTypeKG, "30", "100")
	for i := 0; i < 5; i++ {
		f.place(t, "cust-1", onion, "1")
	}
	key, err := f.resolver.ResolveDate("2025-03-01")
	require.NoError(t, err)

	first, err := f.svc.ListOrders(context.Background(), key, ListFilters{}, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Orders, 3)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, int64(1), first.Orders[0].BillSequence)

	second, err := f.svc.ListOrders(context.Background(), key, ListFilters{}, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	assert.Equal(t, int64(4), second.Orders[0].BillSequence)
	assert.Empty(t, second.NextCursor)
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	f := newOrdersFixture(t)
	onion := f.seed(t, "2025-03-01", "Onion", enums.UnitTypeKG, "30", "100")
	a := f.place(t, "cust-1", onion, "1")
	f.place(t, "cust-2", onion, "1")

	_, err := f.svc.UpdateStatus(context.Background(), a.BillID, enums.OrderStatusPacked, nil)
	require.NoError(t, err)

	key, err := f.resolver.ResolveDate("2025-03-01")
	require.NoError(t, err)
	packed := enums.OrderStatusPacked
	list, err := f.svc.ListOrders(context.Background(), key, ListFilters{Status: &packed}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, a.BillID, list.Orders[0].BillID)
}

func TestListCustomerOrders(t *testing.T) {
	f := newOrdersFixture(t)
	onion := f.seed(t, "2025-03-01", "Onion", enums.UnitTypeKG, "30", "100")
	f.place(t, "cust-1", onion, "1")
	f.place(t, "cust-2", onion, "1")
	f.place(t, "cust-1", onion, "1")

	list, err := f.svc.ListCustomerOrders(context.Background(), "cust-1", pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)
	for _, order := range list.Orders {
		assert.Equal(t, "cust-1", order.CustomerID)
	}
}

func TestUpdateStatusIsForwardOnly(t *testing.T) {
	f := newOrdersFixture(t)
	onion := f.seed(t, "2025-03-01", "Onion", enums.UnitTypeKG, "30", "100")
	placed := f.place(t, "cust-1", onion, "4")
	ctx := context.Background()

	updated, err := f.svc.UpdateStatus(ctx, placed.BillID, enums.OrderStatusInProgress, &outbox.ActorRef{UserID: "admin-1", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusInProgress, updated.Status)

	_, err = f.svc.UpdateStatus(ctx, placed.BillID, enums.OrderStatusBillSent, nil)
	require.NoError(t, err)

	for _, status := range []enums.OrderStatus{enums.OrderStatusBillSent, enums.OrderStatusPacked, enums.OrderStatusPending} {
		_, err = f.svc.UpdateStatus(ctx, placed.BillID, status, nil)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), status)
	}

	_, err = f.svc.UpdateStatus(ctx, placed.BillID, enums.OrderStatus("lost"), nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	key, err := f.resolver.ResolveDate("2025-03-01")
	require.NoError(t, err)
	item, err := f.items.FindByID(ctx, key, onion.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(96).Equal(item.AvailableStock))

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderStatusChanged).Count(&events).Error)
	assert.Equal(t, int64(2), events)
}
