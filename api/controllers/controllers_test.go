package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vegshop/vegshop-backend/api/middleware"
	"github.com/vegshop/vegshop-backend/internal/inventory"
	internalorders "github.com/vegshop/vegshop-backend/internal/orders"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/config"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
	"github.com/vegshop/vegshop-backend/pkg/pagination"
)

type stubInventory struct {
	inventory.Service
	updateStock func(ctx context.Context, key partition.Key, itemID uuid.UUID, mode enums.StockUpdateMode, value decimal.Decimal) (*models.InventoryItem, error)
	upsert      func(ctx context.Context, key partition.Key, input inventory.UpsertItemInput) (*models.InventoryItem, error)
	stock       func(ctx context.Context, key partition.Key) (*inventory.StockView, error)
	copyForward func(ctx context.Context, from, to partition.Key) (int, error)
	listItems   func(ctx context.Context, key partition.Key) ([]models.InventoryItem, error)
}

func (s *stubInventory) ListItems(ctx context.Context, key partition.Key) ([]models.InventoryItem, error) {
	return s.listItems(ctx, key)
}

func (s *stubInventory) UpdateStock(ctx context.Context, key partition.Key, itemID uuid.UUID, mode enums.StockUpdateMode, value decimal.Decimal) (*models.InventoryItem, error) {
	return s.updateStock(ctx, key, itemID, mode, value)
}

func (s *stubInventory) UpsertItem(ctx context.Context, key partition.Key, input inventory.UpsertItemInput) (*models.InventoryItem, error) {
	return s.upsert(ctx, key, input)
}

func (s *stubInventory) GetAvailableStock(ctx context.Context, key partition.Key) (*inventory.StockView, error) {
	return s.stock(ctx, key)
}

func (s *stubInventory) CopyForward(ctx context.Context, from, to partition.Key) (int, error) {
	return s.copyForward(ctx, from, to)
}

type stubOrders struct {
	internalorders.Service
	list         func(ctx context.Context, key partition.Key, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error)
	updateStatus func(ctx context.Context, billID string, next enums.OrderStatus, actor *outbox.ActorRef) (*internalorders.OrderDTO, error)
}

func (s *stubOrders) ListOrders(ctx context.Context, key partition.Key, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
	return s.list(ctx, key, filters, params)
}

func (s *stubOrders) UpdateStatus(ctx context.Context, billID string, next enums.OrderStatus, actor *outbox.ActorRef) (*internalorders.OrderDTO, error) {
	return s.updateStatus(ctx, billID, next, actor)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testResolver(t *testing.T) *partition.Resolver {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return partition.NewResolver(loc)
}

func withParams(req *http.Request, kv ...string) *http.Request {
	rc := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rc.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = middleware.WithUserID(ctx, "admin-1")
	ctx = middleware.WithRole(ctx, string(enums.RoleAdmin))
	return req.WithContext(ctx)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestAdminUpdateStockParsesModeAndValue(t *testing.T) {
	itemID := uuid.New()
	svc := &stubInventory{
		updateStock: func(_ context.Context, key partition.Key, id uuid.UUID, mode enums.StockUpdateMode, value decimal.Decimal) (*models.InventoryItem, error) {
			require.Equal(t, "2025-03-01", key.String())
			require.Equal(t, itemID, id)
			require.Equal(t, enums.StockUpdateAdd, mode)
			require.True(t, value.Equal(decimal.NewFromInt(-10)))
			return &models.InventoryItem{ID: id, PartitionKey: key.String(), TotalStock: decimal.NewFromInt(40), AvailableStock: decimal.NewFromInt(20)}, nil
		},
	}

	req := withParams(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"mode":"ADD","value":"-10"}`)),
		"date", "2025-03-01", "itemId", itemID.String())
	rec := httptest.NewRecorder()
	AdminUpdateStock(svc, testResolver(t), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data inventory.ItemDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Data.TotalStock.Equal(decimal.NewFromInt(40)))
}

func TestAdminUpdateStockRejectsBadInput(t *testing.T) {
	svc := &stubInventory{}
	cases := []struct {
		name string
		date string
		item string
		body string
	}{
		{"bad date", "01-03-2025", uuid.NewString(), `{"mode":"SET","value":1}`},
		{"bad item", "2025-03-01", "tomato", `{"mode":"SET","value":1}`},
		{"bad mode", "2025-03-01", uuid.NewString(), `{"mode":"MULTIPLY","value":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := withParams(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tc.body)), "date", tc.date, "itemId", tc.item)
			rec := httptest.NewRecorder()
			AdminUpdateStock(svc, testResolver(t), nil).ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
		})
	}
}

func TestAdminUpsertItemBuildsInput(t *testing.T) {
	id := uuid.New()
	svc := &stubInventory{
		upsert: func(_ context.Context, _ partition.Key, input inventory.UpsertItemInput) (*models.InventoryItem, error) {
			require.NotNil(t, input.ID)
			require.Equal(t, id, *input.ID)
			require.Equal(t, "Tomato", input.Name)
			require.Equal(t, enums.UnitTypeKG, input.UnitType)
			return &models.InventoryItem{ID: id, Name: input.Name, UnitType: input.UnitType}, nil
		},
	}
	body := `{"id":"` + id.String() + `","name":"  Tomato ","unit_type":"KG","price_per_kg":"40","total_stock":"100"}`
	req := withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), "date", "2025-03-01")
	rec := httptest.NewRecorder()
	AdminUpsertItem(svc, testResolver(t), nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"name":"Leek","unit_type":"BUNCH","price_per_kg":"1","total_stock":"1"}`)), "date", "2025-03-01")
	rec = httptest.NewRecorder()
	AdminUpsertItem(svc, testResolver(t), nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCopyForward(t *testing.T) {
	svc := &stubInventory{
		copyForward: func(_ context.Context, from, to partition.Key) (int, error) {
			require.Equal(t, "2025-03-01", from.String())
			require.Equal(t, "2025-03-02", to.String())
			return 7, nil
		},
	}
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"from":"2025-03-01"}`)), "date", "2025-03-02")
	rec := httptest.NewRecorder()
	AdminCopyForward(svc, testResolver(t), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"copied":7`)
}

func TestAdminListItemsReturnsDayCatalog(t *testing.T) {
	var gotKey partition.Key
	svc := &stubInventory{
		listItems: func(_ context.Context, key partition.Key) ([]models.InventoryItem, error) {
			gotKey = key
			return []models.InventoryItem{{ID: uuid.New(), Name: "Tomato", UnitType: enums.UnitTypeKG}}, nil
		},
	}
	req := withParams(httptest.NewRequest(http.MethodGet, "/", nil), "date", "2025-03-02")
	rec := httptest.NewRecorder()
	AdminListItems(svc, testResolver(t), nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2025-03-02", gotKey.String())
	require.Contains(t, rec.Body.String(), `"partition_key":"2025-03-02"`)
	require.Contains(t, rec.Body.String(), "Tomato")

	req = withParams(httptest.NewRequest(http.MethodGet, "/", nil), "date", "02-03-2025")
	rec = httptest.NewRecorder()
	AdminListItems(svc, testResolver(t), nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerStockUsesQueryDate(t *testing.T) {
	svc := &stubInventory{
		stock: func(_ context.Context, key partition.Key) (*inventory.StockView, error) {
			return &inventory.StockView{PartitionKey: key.String()}, nil
		},
	}
	rec := httptest.NewRecorder()
	CustomerStock(svc, testResolver(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stock?date=2025-03-05", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"partition_key":"2025-03-05"`)

	rec = httptest.NewRecorder()
	CustomerStock(svc, testResolver(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stock?date=yesterday", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminListOrdersFilters(t *testing.T) {
	svc := &stubOrders{
		list: func(_ context.Context, key partition.Key, filters internalorders.ListFilters, params pagination.Params) (*internalorders.OrderList, error) {
			require.Equal(t, "2025-03-01", key.String())
			require.NotNil(t, filters.Status)
			require.Equal(t, enums.OrderStatusPacked, *filters.Status)
			require.Equal(t, pagination.DefaultLimit, params.Limit)
			return &internalorders.OrderList{}, nil
		},
	}
	rec := httptest.NewRecorder()
	AdminListOrders(svc, testResolver(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?date=2025-03-01&status=packed", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	AdminListOrders(svc, testResolver(t), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?date=2025-03-01&status=lost", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUpdateOrderStatusMapsStateConflict(t *testing.T) {
	svc := &stubOrders{
		updateStatus: func(_ context.Context, billID string, next enums.OrderStatus, actor *outbox.ActorRef) (*internalorders.OrderDTO, error) {
			require.Equal(t, "ES01032025001", billID)
			require.Equal(t, enums.OrderStatusPending, next)
			require.Equal(t, "admin-1", actor.UserID)
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status can only move forward")
		},
	}
	req := withParams(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"pending"}`)), "billId", "ES01032025001")
	rec := httptest.NewRecorder()
	AdminUpdateOrderStatus(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, rec))
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"dependency":"redis"`)
}
