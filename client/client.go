// Package client implements the typed HTTP wrapper for the remote vending
// service. Each orchestrator intent maps to exactly one HTTP call; the
// client does not retry, cache, or interpret business meaning beyond
// success or failure. Every failure surfaces as *core.ServiceError carrying
// the operation name and the transport or status detail.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vendline/vendline/core"
)

// VendingClient talks to one vending machine backend.
type VendingClient struct {
	baseURL   string
	http      *http.Client
	logger    core.Logger
	telemetry core.Telemetry
	timeout   time.Duration
	sessionID string
}

// Option configures a VendingClient.
type Option func(*VendingClient)

// WithHTTPClient replaces the underlying HTTP client. The client's own
// per-call timeout still applies through the request context.
func WithHTTPClient(h *http.Client) Option {
	return func(c *VendingClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTransport replaces the underlying transport, keeping the default
// client. Used to install the circuit breaker transport. The replacement
// is wrapped with OpenTelemetry HTTP instrumentation, same as the default.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *VendingClient) {
		if rt != nil {
			c.http.Transport = otelhttp.NewTransport(rt)
		}
	}
}

// New creates a client for the configured base URL. Logger and telemetry
// may be nil; no-op implementations are substituted.
func New(cfg *core.Config, logger core.Logger, telemetry core.Telemetry, opts ...Option) *VendingClient {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	c := &VendingClient{
		baseURL:   cfg.BaseURL,
		http:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:    logger,
		telemetry: telemetry,
		timeout:   cfg.RequestTimeout,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID identifies this client instance in logs.
func (c *VendingClient) SessionID() string {
	return c.sessionID
}

// FetchProducts returns the full product catalog.
func (c *VendingClient) FetchProducts(ctx context.Context) ([]core.Product, error) {
	var products []core.Product
	if err := c.do(ctx, "client.FetchProducts", http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// FetchBalance returns the server-side inserted-but-unspent credit.
func (c *VendingClient) FetchBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := c.do(ctx, "client.FetchBalance", http.MethodGet, "/balance", nil, &balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// InsertCoin credits the given amount. The server may reject unknown
// denominations; the client only checks that the amount is positive.
func (c *VendingClient) InsertCoin(ctx context.Context, amount decimal.Decimal) error {
	const op = "client.InsertCoin"
	if !amount.IsPositive() {
		return core.NewServiceError(op, 0, fmt.Errorf("amount must be positive, got %s", amount))
	}
	query := url.Values{"amount": {amount.String()}}
	return c.do(ctx, op, http.MethodPost, "/insert-coin", query, nil)
}

// SelectProduct registers a selection event with the server. It does not
// touch any local cart; that is the orchestrator's job after success.
func (c *VendingClient) SelectProduct(ctx context.Context, productID, quantity int) error {
	const op = "client.SelectProduct"
	if quantity < 1 {
		return core.NewServiceError(op, 0, fmt.Errorf("quantity must be at least 1, got %d", quantity))
	}
	query := url.Values{
		"productId": {strconv.Itoa(productID)},
		"quantity":  {strconv.Itoa(quantity)},
	}
	return c.do(ctx, op, http.MethodPost, "/select-product", query, nil)
}

// CompletePurchase finalizes the pending transaction and returns its receipt.
func (c *VendingClient) CompletePurchase(ctx context.Context) (*core.Receipt, error) {
	var receipt core.Receipt
	if err := c.do(ctx, "client.CompletePurchase", http.MethodPost, "/purchase", nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// CancelTransaction aborts the pending transaction, returning coins,
// and returns the cancellation receipt.
func (c *VendingClient) CancelTransaction(ctx context.Context) (*core.Receipt, error) {
	var receipt core.Receipt
	if err := c.do(ctx, "client.CancelTransaction", http.MethodPost, "/cancel", nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// FetchTransaction returns the receipt for a past transaction by id.
func (c *VendingClient) FetchTransaction(ctx context.Context, id int) (*core.Receipt, error) {
	var receipt core.Receipt
	path := "/transactions/" + strconv.Itoa(id)
	if err := c.do(ctx, "client.FetchTransaction", http.MethodGet, path, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// do performs one HTTP call under the per-call timeout and decodes a JSON
// body into out when out is non-nil. Any non-2xx status is a failure; the
// body of a failed response is not parsed for structured detail.
func (c *VendingClient) do(ctx context.Context, op, method, path string, query url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.telemetry.StartSpan(ctx, op)
	defer span.End()
	span.SetAttribute("http.method", method)
	span.SetAttribute("http.path", path)

	requestID := uuid.NewString()
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		span.RecordError(err)
		return core.NewServiceError(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", core.ErrTimeout, err)
		}
		c.logger.Error("Vending request failed", map[string]interface{}{
			"operation":  op,
			"session_id": c.sessionID,
			"request_id": requestID,
			"error":      err.Error(),
		})
		span.RecordError(err)
		return core.NewServiceError(op, 0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	span.SetAttribute("http.status_code", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return core.NewServiceError(op, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := core.NewServiceError(op, resp.StatusCode, core.ErrRequestFailed)
		c.logger.Error("Vending request rejected", map[string]interface{}{
			"operation":   op,
			"session_id":  c.sessionID,
			"request_id":  requestID,
			"status_code": resp.StatusCode,
		})
		span.RecordError(serr)
		return serr
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			serr := core.NewServiceError(op, resp.StatusCode, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err))
			span.RecordError(serr)
			return serr
		}
	}

	c.telemetry.RecordMetric("vending_client_requests_total", 1, map[string]string{"operation": op})
	c.logger.Debug("Vending request completed", map[string]interface{}{
		"operation":   op,
		"session_id":  c.sessionID,
		"request_id":  requestID,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
