// Package shopclient is the Go SDK for the shop API. It serializes a
// session's submissions locally and clamps carts with the same stock policy
// the server enforces.
package shopclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vegshop/vegshop-backend/internal/stock"
	"github.com/vegshop/vegshop-backend/internal/submission"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

const (
	defaultTimeout              = 30 * time.Second
	defaultSubmissionWait       = 30 * time.Second
	responseBodyReadLimit int64 = 1 << 20
)

// defaultReservedFraction matches the server's default KG buffer.
var defaultReservedFraction = decimal.RequireFromString("0.15")

var (
	errBaseURLRequired = errors.New("shop api base url is required")
	errTokenRequired   = errors.New("access token is required")
)

// Client talks to the customer API on behalf of one signed-in user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	policy     stock.Policy
	queue      *submission.Queue
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default traced HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPolicy sets the stock policy used for cart clamping. It must match the
// server's reserved fraction.
func WithPolicy(policy stock.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithSubmissionWait bounds how long a queued submission waits for its turn.
func WithSubmissionWait(wait time.Duration) Option {
	return func(c *Client) {
		c.queue = submission.NewQueue(wait)
	}
}

// NewClient builds a client for baseURL authenticated with a bearer token.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, errTokenRequired
	}

	policy, err := stock.NewPolicy(defaultReservedFraction)
	if err != nil {
		return nil, err
	}
	client := &Client{
		policy:  policy,
		baseURL: trimmedURL,
		token:   trimmedToken,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		queue: submission.NewQueue(defaultSubmissionWait),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Stock fetches the sellable view of the partition for date (YYYY-MM-DD).
// An empty date asks for today's partition.
func (c *Client) Stock(ctx context.Context, date string) (*StockView, error) {
	path := "/api/v1/stock"
	if d := strings.TrimSpace(date); d != "" {
		path += "?date=" + url.QueryEscape(d)
	}
	var view StockView
	if err := c.do(ctx, http.MethodGet, path, nil, "", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// SubmissionState reports whether session has a submission queued or running.
func (c *Client) SubmissionState(session string) submission.State {
	return c.queue.State(session)
}

// PlaceOrder submits cart. Calls sharing a session run one at a time in
// arrival order. An empty idempotency key gets a fresh one, so retrying with
// the same key after a timeout never places the order twice.
//
// When the server rejects the cart for insufficient stock the error carries
// an *AdjustedCart; see AdjustedCartFrom.
func (c *Client) PlaceOrder(ctx context.Context, session string, cart Cart, idempotencyKey string) (*PlacedOrder, error) {
	if len(cart.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if strings.TrimSpace(session) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		idempotencyKey = uuid.NewString()
	}

	var placed PlacedOrder
	err := c.queue.Do(ctx, session, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/api/v1/orders", newPlaceOrderBody(cart), idempotencyKey, &placed)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
			if shortfalls, ok := typed.Details().([]Shortfall); ok {
				typed.WithDetails(adjustForShortfalls(cart, shortfalls))
			}
		}
		return nil, err
	}
	return &placed, nil
}

// Order fetches one of the caller's orders by bill id.
func (c *Client) Order(ctx context.Context, billID string) (*Order, error) {
	trimmed := strings.TrimSpace(billID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill id is required")
	}
	var order Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(trimmed), nil, "", &order); err != nil {
		return nil, err
	}
	return &order, nil
}

type placeOrderItem struct {
	ItemID   string `json:"item_id"`
	Quantity string `json:"quantity"`
}

type placeOrderBody struct {
	Items    []placeOrderItem `json:"items"`
	BagCount int              `json:"bag_count"`
}

func newPlaceOrderBody(cart Cart) placeOrderBody {
	body := placeOrderBody{BagCount: cart.BagCount, Items: make([]placeOrderItem, 0, len(cart.Lines))}
	for _, line := range cart.Lines {
		body.Items = append(body.Items, placeOrderItem{ItemID: line.ItemID.String(), Quantity: line.Quantity.String()})
	}
	return body
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, raw)
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response envelope")
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

// decodeAPIError turns an error envelope back into a typed error.
// Shortfall details are decoded so callers can rebuild the cart.
func decodeAPIError(status int, raw []byte) error {
	var envelope struct {
		Error struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details,omitempty"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unexpected status %d: %s", status, strings.TrimSpace(string(raw))))
	}

	typed := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
	if len(envelope.Error.Details) == 0 {
		return typed
	}
	if typed.Code() == pkgerrors.CodeInsufficientStock {
		var shortfalls []Shortfall
		if err := json.Unmarshal(envelope.Error.Details, &shortfalls); err == nil {
			return typed.WithDetails(shortfalls)
		}
	}
	var details any
	if err := json.Unmarshal(envelope.Error.Details, &details); err == nil {
		typed.WithDetails(details)
	}
	return typed
}
