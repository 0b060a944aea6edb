// Package httpapi is the thin routing layer over the acquisition core
// and the metrics engine. It maps inbound requests to core operations
// and core error categories to HTTP status classes; it holds no
// algorithmic logic of its own.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/quantglass/marketintel/internal/callmetrics"
	"github.com/quantglass/marketintel/internal/domain"
	"github.com/quantglass/marketintel/internal/engine"
	"github.com/quantglass/marketintel/internal/rank"
	"github.com/quantglass/marketintel/internal/ratelimit"
	"github.com/quantglass/marketintel/internal/upstream"
)

// Service is the slice of the upstream client the API depends on.
type Service interface {
	ListMarkets(ctx context.Context) ([]domain.MarketDescriptor, error)
	GetMarket(ctx context.Context, id string) (domain.MarketDescriptor, error)
	GetOrderBook(ctx context.Context, id string) (*domain.OrderBookSnapshot, error)
	GetRecentTrades(ctx context.Context, id string, limit int) ([]domain.Trade, error)
	Recorder() *callmetrics.Recorder
}

// Server wires routes to the service.
type Server struct {
	service        Service
	engineCfg      engine.Config
	summaryWindow  time.Duration
	metricsHandler http.Handler
}

// New creates a server. metricsHandler serves /metrics and may be nil.
func New(service Service, engineCfg engine.Config, summaryWindow time.Duration, metricsHandler http.Handler) *Server {
	return &Server{
		service:        service,
		engineCfg:      engineCfg,
		summaryWindow:  summaryWindow,
		metricsHandler: metricsHandler,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/v1/markets", s.handleListMarkets).Methods(http.MethodGet)
	r.HandleFunc("/v1/markets/rank", s.handleRank).Methods(http.MethodGet)
	r.HandleFunc("/v1/markets/{id}", s.handleGetMarket).Methods(http.MethodGet)
	r.HandleFunc("/v1/markets/{id}/orderbook", s.handleOrderBook).Methods(http.MethodGet)
	r.HandleFunc("/v1/markets/{id}/trades", s.handleTrades).Methods(http.MethodGet)
	r.HandleFunc("/v1/markets/{id}/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/v1/ops/calls", s.handleCallSummary).Methods(http.MethodGet)
	r.HandleFunc("/v1/ops/failures", s.handleRecentFailures).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.service.ListMarkets(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	market, err := s.service.GetMarket(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, market)
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.GetOrderBook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	trades, err := s.service.GetRecentTrades(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// handleMetrics fetches the raw data and runs the full engine pass:
// four metric bundles plus derived signals.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	market, err := s.service.GetMarket(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	snapshot, err := s.service.GetOrderBook(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	trades, err := s.service.GetRecentTrades(ctx, id, queryInt(r, "limit", 200))
	if err != nil {
		respondError(w, err)
		return
	}

	liquidity := engine.ComputeLiquidity(snapshot, trades, s.engineCfg)
	volatility := engine.ComputeVolatility(trades, 0, s.engineCfg)
	activity := engine.ComputeActivity(trades, s.engineCfg)
	health := engine.ComputeHealth(liquidity, volatility, activity, s.engineCfg)
	signals := engine.BuildSignals(liquidity, volatility, activity, health, s.engineCfg)

	respondJSON(w, http.StatusOK, map[string]any{
		"market":     market,
		"liquidity":  liquidity,
		"volatility": volatility,
		"activity":   activity,
		"health":     health,
		"signals":    signals,
	})
}

// handleRank fans out across all markets and orders them by recent
// activity. Failed markets appear at the end with their error noted
// rather than failing the whole response.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	results, err := rank.ByActivity(r.Context(), s.service, queryInt(r, "limit", 100), s.engineCfg)
	if err != nil {
		respondError(w, err)
		return
	}

	rows := make([]map[string]any, 0, len(results))
	for _, result := range results {
		row := map[string]any{
			"market":   result.Market,
			"activity": result.Activity,
		}
		if result.Err != nil {
			row["error"] = "data unavailable"
		}
		rows = append(rows, row)
	}
	respondJSON(w, http.StatusOK, map[string]any{"markets": rows})
}

func (s *Server) handleCallSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Recorder().Summary(s.summaryWindow))
}

func (s *Server) handleRecentFailures(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", 10)
	respondJSON(w, http.StatusOK, map[string]any{"failures": s.service.Recorder().RecentFailures(n)})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError maps the core error taxonomy onto HTTP status classes.
// The internal category and message stay in the log, not the body.
func respondError(w http.ResponseWriter, err error) {
	var notFound *upstream.NotFoundError
	var exceeded *ratelimit.ExceededError
	var upstreamErr *upstream.UpstreamError
	var formatErr *upstream.FormatError
	var unavailable *upstream.UnavailableError
	var timeout *upstream.TimeoutError

	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.As(err, &notFound):
		status, code = http.StatusNotFound, "market_not_found"
	case errors.As(err, &exceeded):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &unavailable):
		status, code = http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.As(err, &timeout):
		status, code = http.StatusServiceUnavailable, "upstream_timeout"
	case errors.As(err, &upstreamErr):
		status, code = http.StatusBadGateway, "upstream_error"
	case errors.As(err, &formatErr):
		status, code = http.StatusBadGateway, "upstream_malformed"
	}

	log.Warn().Err(err).Int("status", status).Str("code", code).Msg("request failed")
	respondJSON(w, status, map[string]any{
		"error": map[string]string{"code": code},
	})
}
