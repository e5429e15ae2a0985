package shopclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/internal/stock"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	client, err := NewClient("http://shop.test/", "token-1", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURLAndToken(t *testing.T) {
	if _, err := NewClient(" ", "token"); err == nil {
		t.Fatalf("expected base url error")
	}
	if _, err := NewClient("http://shop.test", ""); err == nil {
		t.Fatalf("expected token error")
	}
}

func TestStockRequest(t *testing.T) {
	itemID := uuid.New()
	var capturedURL, capturedAuth string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, `{"data":{"partition_key":"2025-03-01","items":[{"item_id":"`+itemID.String()+`","name":"Tomato","unit_type":"KG","available_stock":"50","total_stock":"100","orderable":"35"}]}}`), nil
	})

	view, err := client.Stock(context.Background(), "2025-03-01")
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if capturedURL != "http://shop.test/api/v1/stock?date=2025-03-01" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if capturedAuth != "Bearer token-1" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if len(view.Items) != 1 || !view.Items[0].Orderable.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestPlaceOrderSendsIdempotencyKeyAndBody(t *testing.T) {
	itemID := uuid.New()
	var capturedKey string
	var payload map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedKey = req.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusCreated, `{"data":{"bill_id":"ES01032025001","bill_sequence":1,"partition_key":"2025-03-01","total":"240","items":[]}}`), nil
	})

	placed, err := client.PlaceOrder(context.Background(), "sess-1", Cart{
		Lines:    []CartLine{{ItemID: itemID, Quantity: decimal.RequireFromString("1.5")}},
		BagCount: 2,
	}, "")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if placed.BillID != "ES01032025001" {
		t.Fatalf("unexpected bill id %q", placed.BillID)
	}
	if _, err := uuid.Parse(capturedKey); err != nil {
		t.Fatalf("expected generated uuid idempotency key, got %q", capturedKey)
	}
	items := payload["items"].([]any)
	line := items[0].(map[string]any)
	if line["quantity"] != "1.5" || line["item_id"] != itemID.String() {
		t.Fatalf("unexpected line %+v", line)
	}
	if payload["bag_count"].(float64) != 2 {
		t.Fatalf("unexpected bag count %v", payload["bag_count"])
	}
}

func TestPlaceOrderInsufficientStockReturnsAdjustedCart(t *testing.T) {
	short := uuid.New()
	fine := uuid.New()
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusConflict, `{"error":{"code":"INSUFFICIENT_STOCK","message":"insufficient stock","details":[{"item_id":"`+short.String()+`","requested":"5","available":"2"}]}}`), nil
	})

	_, err := client.PlaceOrder(context.Background(), "sess-1", Cart{Lines: []CartLine{
		{ItemID: short, Quantity: decimal.NewFromInt(5)},
		{ItemID: fine, Quantity: decimal.NewFromInt(1)},
	}}, "key-1")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	adjusted, ok := AdjustedCartFrom(err)
	if !ok {
		t.Fatalf("expected adjusted cart on error")
	}
	if len(adjusted.Cart.Lines) != 2 {
		t.Fatalf("expected both lines kept, got %+v", adjusted.Cart.Lines)
	}
	if !adjusted.Cart.Lines[0].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("short line should be clamped to 2, got %s", adjusted.Cart.Lines[0].Quantity)
	}
	if len(adjusted.Adjustments) != 1 || len(adjusted.Shortfalls) != 1 {
		t.Fatalf("unexpected adjustments %+v", adjusted)
	}
}

func TestPlaceOrderMapsTypedErrors(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"code":"SUBMISSION_IN_PROGRESS","message":"an order is already being processed, please wait"}}`), nil
	})
	_, err := client.PlaceOrder(context.Background(), "sess-1", Cart{Lines: []CartLine{{ItemID: uuid.New(), Quantity: decimal.NewFromInt(1)}}}, "k")
	if !pkgerrors.HasCode(err, pkgerrors.CodeSubmissionBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if _, ok := AdjustedCartFrom(err); ok {
		t.Fatalf("busy error carries no cart")
	}
}

func TestPlaceOrderUnexpectedBodyIsDependencyError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, `<html>bad gateway</html>`), nil
	})
	_, err := client.PlaceOrder(context.Background(), "sess-1", Cart{Lines: []CartLine{{ItemID: uuid.New(), Quantity: decimal.NewFromInt(1)}}}, "k")
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	if _, err := client.PlaceOrder(context.Background(), "sess-1", Cart{}, ""); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlaceOrderSerializesSession(t *testing.T) {
	var inFlight, maxInFlight int32
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxInFlight)
			if current <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return jsonResponse(http.StatusCreated, `{"data":{"bill_id":"ES01032025001"}}`), nil
	})

	cart := Cart{Lines: []CartLine{{ItemID: uuid.New(), Quantity: decimal.NewFromInt(1)}}}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.PlaceOrder(context.Background(), "sess-1", cart, ""); err != nil {
				t.Errorf("place order: %v", err)
			}
		}()
	}
	wg.Wait()
	if maxInFlight != 1 {
		t.Fatalf("expected one submission in flight per session, saw %d", maxInFlight)
	}
}

func TestClampCartUsesPolicy(t *testing.T) {
	policy, err := stock.NewPolicy(decimal.RequireFromString("0.15"))
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) { return nil, nil }, WithPolicy(policy))

	tomato, egg, gone, unknown := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	view := &StockView{Items: []StockLevel{
		{ItemID: tomato, UnitType: enums.UnitTypeKG, TotalStock: decimal.NewFromInt(100), AvailableStock: decimal.NewFromInt(20)},
		{ItemID: egg, UnitType: enums.UnitTypeCount, TotalStock: decimal.NewFromInt(12), AvailableStock: decimal.NewFromInt(3)},
		{ItemID: gone, UnitType: enums.UnitTypeKG, TotalStock: decimal.NewFromInt(10), AvailableStock: decimal.NewFromInt(1)},
	}}

	adjusted := client.ClampCart(view, Cart{BagCount: 1, Lines: []CartLine{
		{ItemID: tomato, Quantity: decimal.NewFromInt(10)},
		{ItemID: egg, Quantity: decimal.NewFromInt(2)},
		{ItemID: gone, Quantity: decimal.NewFromInt(1)},
		{ItemID: unknown, Quantity: decimal.NewFromInt(1)},
	}})

	// tomato: 80 sold of a 85 limit leaves 5 orderable
	if len(adjusted.Cart.Lines) != 2 {
		t.Fatalf("expected two surviving lines, got %+v", adjusted.Cart.Lines)
	}
	if !adjusted.Cart.Lines[0].Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("tomato should clamp to 5, got %s", adjusted.Cart.Lines[0].Quantity)
	}
	if !adjusted.Cart.Lines[1].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("egg line should be untouched, got %s", adjusted.Cart.Lines[1].Quantity)
	}
	if len(adjusted.Adjustments) != 3 {
		t.Fatalf("expected three adjustments, got %d", len(adjusted.Adjustments))
	}
	if adjusted.Cart.BagCount != 1 {
		t.Fatalf("bag count lost")
	}
}

func TestSubmissionStateIdleByDefault(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) { return nil, nil })
	if got := client.SubmissionState("sess-1"); got != "idle" {
		t.Fatalf("expected idle, got %s", got)
	}
}
