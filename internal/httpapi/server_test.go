package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantglass/marketintel/internal/callmetrics"
	"github.com/quantglass/marketintel/internal/domain"
	"github.com/quantglass/marketintel/internal/engine"
	"github.com/quantglass/marketintel/internal/ratelimit"
	"github.com/quantglass/marketintel/internal/upstream"
)

type stubService struct {
	markets  []domain.MarketDescriptor
	book     *domain.OrderBookSnapshot
	trades   []domain.Trade
	err      error
	recorder *callmetrics.Recorder
}

func (s *stubService) ListMarkets(ctx context.Context) ([]domain.MarketDescriptor, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.markets, nil
}

func (s *stubService) GetMarket(ctx context.Context, id string) (domain.MarketDescriptor, error) {
	if s.err != nil {
		return domain.MarketDescriptor{}, s.err
	}
	for _, m := range s.markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.MarketDescriptor{}, &upstream.NotFoundError{MarketID: id}
}

func (s *stubService) GetOrderBook(ctx context.Context, id string) (*domain.OrderBookSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.book, nil
}

func (s *stubService) GetRecentTrades(ctx context.Context, id string, limit int) ([]domain.Trade, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.trades, nil
}

func (s *stubService) Recorder() *callmetrics.Recorder { return s.recorder }

func newStub() *stubService {
	return &stubService{
		markets: []domain.MarketDescriptor{
			{ID: "1", Symbol: "ATOM/OSMO", Base: "ATOM", Quote: "OSMO"},
		},
		book: &domain.OrderBookSnapshot{
			MarketID: "1",
			Bids:     []domain.PriceLevel{{Price: 100, Size: 5}},
			Asks:     []domain.PriceLevel{{Price: 101, Size: 5}},
		},
		trades: []domain.Trade{
			{Price: 100.5, Size: 2, Timestamp: time.Now()},
		},
		recorder: callmetrics.NewRecorder(10),
	}
}

func doRequest(t *testing.T, svc Service, path string) *httptest.ResponseRecorder {
	t.Helper()
	server := New(svc, engine.DefaultConfig(), 5*time.Minute, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestListMarketsEndpoint(t *testing.T) {
	rec := doRequest(t, newStub(), "/v1/markets")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Markets []domain.MarketDescriptor `json:"markets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Markets, 1)
	assert.Equal(t, "ATOM/OSMO", body.Markets[0].Symbol)
}

func TestMetricsEndpoint_FullBundle(t *testing.T) {
	rec := doRequest(t, newStub(), "/v1/markets/1/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"market", "liquidity", "volatility", "activity", "health", "signals"} {
		assert.Contains(t, body, key)
	}

	var liquidity engine.LiquidityMetrics
	require.NoError(t, json.Unmarshal(body["liquidity"], &liquidity))
	assert.InDelta(t, 99.5, liquidity.SpreadBps, 0.1)

	var signals []engine.Signal
	require.NoError(t, json.Unmarshal(body["signals"], &signals))
	assert.NotEmpty(t, signals)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not_found", &upstream.NotFoundError{MarketID: "x"}, http.StatusNotFound, "market_not_found"},
		{"rate_limited", &ratelimit.ExceededError{Endpoint: "markets", Budget: 10}, http.StatusTooManyRequests, "rate_limited"},
		{"unavailable", &upstream.UnavailableError{Endpoint: "markets", Attempts: 3}, http.StatusServiceUnavailable, "upstream_unavailable"},
		{"upstream_5xx", &upstream.UpstreamError{Endpoint: "markets", StatusCode: 500}, http.StatusBadGateway, "upstream_error"},
		{"malformed", &upstream.FormatError{Endpoint: "markets", Reason: "missing id"}, http.StatusBadGateway, "upstream_malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newStub()
			svc.err = tt.err
			rec := doRequest(t, svc, "/v1/markets")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestGetMarket_NotFoundStatus(t *testing.T) {
	rec := doRequest(t, newStub(), "/v1/markets/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	svc := newStub()
	svc.recorder.Record(callmetrics.Outcome{Endpoint: "markets", Success: true, Latency: 10 * time.Millisecond})
	svc.recorder.Record(callmetrics.Outcome{Endpoint: "markets", Success: false, Error: "timeout"})

	rec := doRequest(t, svc, "/v1/ops/calls")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary callmetrics.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Failure)

	rec = doRequest(t, svc, "/v1/ops/failures?n=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var failures struct {
		Failures []callmetrics.Outcome `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failures))
	require.Len(t, failures.Failures, 1)
	assert.Equal(t, "timeout", failures.Failures[0].Error)
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, newStub(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRankEndpoint(t *testing.T) {
	rec := doRequest(t, newStub(), "/v1/markets/rank")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Markets []map[string]json.RawMessage `json:"markets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Markets, 1)
	assert.Contains(t, body.Markets[0], "activity")
}
