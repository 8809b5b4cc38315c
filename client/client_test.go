package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vendline/vendline/core"
	"github.com/vendline/vendline/resilience"
)

func testConfig(t *testing.T, baseURL string) *core.Config {
	t.Helper()
	cfg, err := core.NewConfig(
		core.WithBaseURL(baseURL),
		core.WithRequestTimeout(2*time.Second),
	)
	require.NoError(t, err)
	return cfg
}

func TestFetchProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":1,"name":"Cola","price":1.50,"stock":3,"available":true},
			{"id":2,"name":"Chips","price":0.75,"stock":0,"available":false}
		]`))
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	products, err := c.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, 1, products[0].ID)
	assert.Equal(t, "Cola", products[0].Name)
	assert.True(t, products[0].Price.Equal(decimal.NewFromFloat(1.50)))
	assert.False(t, products[0].OutOfStock())
	assert.True(t, products[1].OutOfStock())
}

func TestFetchBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balance", r.URL.Path)
		w.Write([]byte(`1.25`))
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	balance, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromFloat(1.25)))
}

func TestInsertCoin(t *testing.T) {
	var gotAmount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/insert-coin", r.URL.Path)
		gotAmount = r.URL.Query().Get("amount")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	err := c.InsertCoin(context.Background(), decimal.NewFromFloat(0.25))
	require.NoError(t, err)
	assert.Equal(t, "0.25", gotAmount)
}

func TestInsertCoinRejectsNonPositiveAmount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be reached")
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromFloat(-0.25)} {
		err := c.InsertCoin(context.Background(), amount)
		require.Error(t, err)
		assert.True(t, core.IsRemote(err))
	}
}

func TestSelectProduct(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/select-product", r.URL.Path)
		gotQuery = map[string]string{
			"productId": r.URL.Query().Get("productId"),
			"quantity":  r.URL.Query().Get("quantity"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	require.NoError(t, c.SelectProduct(context.Background(), 3, 1))
	assert.Equal(t, "3", gotQuery["productId"])
	assert.Equal(t, "1", gotQuery["quantity"])
}

func TestCompletePurchase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/purchase", r.URL.Path)
		w.Write([]byte(`{
			"items":[{"productId":1,"productName":"Cola","quantity":1,"unitPrice":1.00,"totalPrice":1.00}],
			"totalAmount":1.00,
			"amountReceived":1.25,
			"changeGiven":0.25,
			"status":"COMPLETED",
			"timestamp":"2026-08-30T12:00:00Z",
			"changeBreakdown":{"QUARTER":1}
		}`))
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	receipt, err := c.CompletePurchase(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, receipt.Status)
	assert.True(t, receipt.TotalAmount.Equal(decimal.NewFromFloat(1.00)))
	assert.True(t, receipt.ChangeGiven.Equal(decimal.NewFromFloat(0.25)))
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "Cola", receipt.Items[0].ProductName)
	assert.Equal(t, 1, receipt.ChangeBreakdown["QUARTER"])
}

func TestCancelTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cancel", r.URL.Path)
		w.Write([]byte(`{"items":[],"totalAmount":0,"amountReceived":1.25,"changeGiven":1.25,"status":"CANCELLED","timestamp":"2026-08-30T12:00:00Z","changeBreakdown":{}}`))
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	receipt, err := c.CancelTransaction(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, receipt.Status)
	assert.True(t, receipt.ChangeGiven.Equal(decimal.NewFromFloat(1.25)))
}

func TestFetchTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/7", r.URL.Path)
		w.Write([]byte(`{"items":[],"totalAmount":1.00,"amountReceived":1.00,"changeGiven":0,"status":"COMPLETED","timestamp":"2026-08-30T12:00:00Z","changeBreakdown":{}}`))
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	receipt, err := c.FetchTransaction(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, receipt.Status)
}

// Every non-2xx status produces the same uniform error kind, carrying the
// operation name and status but never a different type per code.
func TestNonSuccessStatusIsUniformServiceError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))

		c := New(testConfig(t, server.URL), nil, nil)
		_, err := c.FetchBalance(context.Background())
		require.Error(t, err)

		var serr *core.ServiceError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "client.FetchBalance", serr.Op)
		assert.Equal(t, status, serr.Status)
		assert.ErrorIs(t, err, core.ErrRequestFailed)

		server.Close()
	}
}

func TestMalformedBodyIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := New(testConfig(t, server.URL), nil, nil)
	_, err := c.FetchProducts(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsRemote(err))
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestTransportFailureIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	c := New(testConfig(t, server.URL), nil, nil)
	_, err := c.FetchProducts(context.Background())
	require.Error(t, err)

	var serr *core.ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, serr.Status)
}

// A hung backend must not hold the caller forever: the per-call timeout
// fires and the failure is recognizable as a stuck call.
func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	cfg, err := core.NewConfig(
		core.WithBaseURL(server.URL),
		core.WithRequestTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)

	c := New(cfg, nil, nil)
	start := time.Now()
	_, err = c.FetchBalance(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, core.IsStuck(err))
	assert.True(t, core.IsRemote(err))
}

// Both the default transport and any replacement installed through
// WithTransport carry OpenTelemetry HTTP instrumentation.
func TestTransportIsInstrumented(t *testing.T) {
	c := New(testConfig(t, "http://localhost:8080/api/vending"), nil, nil)
	_, ok := c.http.Transport.(*otelhttp.Transport)
	assert.True(t, ok, "default transport should be otel-instrumented")

	breaker := resilience.NewCircuitBreaker("test", core.CircuitBreakerConfig{Enabled: true}, nil)
	c = New(testConfig(t, "http://localhost:8080/api/vending"), nil, nil,
		WithTransport(NewBreakerTransport(nil, breaker)))
	_, ok = c.http.Transport.(*otelhttp.Transport)
	assert.True(t, ok, "replacement transport should be wrapped")
}

func TestBreakerTransportOpensAfterServerErrors(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	breaker := resilience.NewCircuitBreaker("test", core.CircuitBreakerConfig{
		Enabled:          true,
		Threshold:        3,
		SleepWindow:      time.Minute,
		HalfOpenRequests: 1,
	}, nil)

	c := New(testConfig(t, server.URL), nil, nil,
		WithTransport(NewBreakerTransport(nil, breaker)))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.FetchBalance(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, "open", breaker.GetState())
	assert.Equal(t, 3, requests)

	// Open circuit fails fast without touching the backend.
	_, err := c.FetchBalance(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.True(t, core.IsRemote(err))
	assert.Equal(t, 3, requests)
}

func TestBreakerTransportIgnoresClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	breaker := resilience.NewCircuitBreaker("test", core.CircuitBreakerConfig{
		Enabled:   true,
		Threshold: 2,
	}, nil)
	c := New(testConfig(t, server.URL), nil, nil,
		WithTransport(NewBreakerTransport(nil, breaker)))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.FetchBalance(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrCircuitBreakerOpen)
	}
	assert.Equal(t, "closed", breaker.GetState())
}
