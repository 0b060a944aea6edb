// Package upstream implements the data-acquisition client for the
// market intelligence core. It tolerates an upstream API with
// inconsistent endpoint shapes and paths by iterating configured
// endpoint-path variants, enforces a per-endpoint outbound rate
// budget, de-duplicates concurrent fetches, caches responses with a
// TTL and records call-health telemetry for every attempt.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/quantglass/marketintel/internal/cache"
	"github.com/quantglass/marketintel/internal/callmetrics"
	"github.com/quantglass/marketintel/internal/domain"
	"github.com/quantglass/marketintel/internal/ratelimit"
	"github.com/quantglass/marketintel/internal/telemetry"
)

// Logical endpoint labels. Rate budgets, breakers and call metrics are
// tracked per label, not per path variant.
const (
	EndpointMarkets   = "markets"
	EndpointOrderBook = "orderbook"
	EndpointTrades    = "trades"
)

// Config holds upstream client settings.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`

	// Ordered endpoint-path variants per logical resource. Order book
	// and trade variants contain one %s placeholder for the market id.
	MarketsVariants   []string `yaml:"markets_variants"`
	OrderBookVariants []string `yaml:"orderbook_variants"`
	TradesVariants    []string `yaml:"trades_variants"`

	MarketsTTL   time.Duration `yaml:"markets_ttl"`
	OrderBookTTL time.Duration `yaml:"orderbook_ttl"`
	TradesTTL    time.Duration `yaml:"trades_ttl"`

	// SmoothRPS spaces outbound calls with a token bucket on top of
	// the sliding-window budget. 0 disables smoothing.
	SmoothRPS float64 `yaml:"smooth_rps"`

	// Circuit breaker per logical endpoint. An open breaker fails
	// fast as UnavailableError without consuming rate budget.
	BreakerEnabled  bool          `yaml:"breaker_enabled"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

func (cfg Config) withDefaults() Config {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "marketintel/1.0"
	}
	if len(cfg.MarketsVariants) == 0 {
		cfg.MarketsVariants = []string{"/v1/markets", "/markets", "/api/v1/markets"}
	}
	if len(cfg.OrderBookVariants) == 0 {
		cfg.OrderBookVariants = []string{"/v1/markets/%s/orderbook", "/markets/%s/orderbook", "/v1/orderbooks/%s"}
	}
	if len(cfg.TradesVariants) == 0 {
		cfg.TradesVariants = []string{"/v1/markets/%s/trades", "/markets/%s/trades", "/v1/trades/%s"}
	}
	if cfg.MarketsTTL == 0 {
		cfg.MarketsTTL = 60 * time.Second
	}
	if cfg.OrderBookTTL == 0 {
		cfg.OrderBookTTL = 5 * time.Second
	}
	if cfg.TradesTTL == 0 {
		cfg.TradesTTL = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	return cfg
}

// Deps are the shared collaborators constructed once at process start.
// Metrics may be nil.
type Deps struct {
	Cache    *cache.TTLCache
	Limiter  *ratelimit.Limiter
	Recorder *callmetrics.Recorder
	Metrics  *telemetry.Metrics
}

// Client orchestrates rate limiting, caching and call telemetry around
// outbound market data calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.TTLCache
	limiter    *ratelimit.Limiter
	recorder   *callmetrics.Recorder
	metrics    *telemetry.Metrics
	throttle   *rate.Limiter
	breakers   map[string]*gobreaker.CircuitBreaker
	group      singleflight.Group
}

// New creates a client from config and shared collaborators.
func New(cfg Config, deps Deps) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			// Per-attempt deadlines come from the request context; the
			// transport-level timeout is a backstop only.
			Timeout: cfg.RequestTimeout + time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		cache:    deps.Cache,
		limiter:  deps.Limiter,
		recorder: deps.Recorder,
		metrics:  deps.Metrics,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}

	if cfg.SmoothRPS > 0 {
		c.throttle = rate.NewLimiter(rate.Limit(cfg.SmoothRPS), 1)
	}

	if cfg.BreakerEnabled {
		for _, endpoint := range []string{EndpointMarkets, EndpointOrderBook, EndpointTrades} {
			c.breakers[endpoint] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    endpoint,
				Timeout: cfg.BreakerCooldown,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= cfg.BreakerFailures
				},
				// Our own budget rejections are not upstream failures
				// and must not trip the breaker.
				IsSuccessful: func(err error) bool {
					if err == nil {
						return true
					}
					var exceeded *ratelimit.ExceededError
					return errors.As(err, &exceeded)
				},
			})
		}
	}

	return c
}

// Recorder exposes the call metrics history for ops endpoints.
func (c *Client) Recorder() *callmetrics.Recorder { return c.recorder }

// CacheStats exposes response cache counters.
func (c *Client) CacheStats() cache.Stats { return c.cache.Stats() }

// ListMarkets fetches and normalizes the full market listing.
func (c *Client) ListMarkets(ctx context.Context) ([]domain.MarketDescriptor, error) {
	value, err := c.fetchResource(ctx, EndpointMarkets, c.cfg.MarketsVariants, "markets", c.cfg.MarketsTTL,
		func(body []byte) (any, error) { return parseMarkets(body) })
	if err != nil {
		return nil, err
	}
	return value.([]domain.MarketDescriptor), nil
}

// GetMarket looks up one market by identifier. This is a pure filter
// over the cached or freshly fetched listing; no dedicated upstream
// call exists for a single market.
func (c *Client) GetMarket(ctx context.Context, id string) (domain.MarketDescriptor, error) {
	markets, err := c.ListMarkets(ctx)
	if err != nil {
		return domain.MarketDescriptor{}, err
	}

	for _, market := range markets {
		if market.ID == id {
			return market, nil
		}
	}
	return domain.MarketDescriptor{}, &NotFoundError{MarketID: id}
}

// GetOrderBook fetches the order book snapshot for a market.
func (c *Client) GetOrderBook(ctx context.Context, id string) (*domain.OrderBookSnapshot, error) {
	variants := make([]string, len(c.cfg.OrderBookVariants))
	for i, variant := range c.cfg.OrderBookVariants {
		variants[i] = fmt.Sprintf(variant, id)
	}

	value, err := c.fetchResource(ctx, EndpointOrderBook, variants, "orderbook:"+id, c.cfg.OrderBookTTL, parseOrderBook(id))
	if err != nil {
		return nil, err
	}
	// Cached snapshots are shared across callers and must not be
	// mutated here; the parser resolves the timestamp before caching.
	return value.(*domain.OrderBookSnapshot), nil
}

// GetRecentTrades fetches up to limit recent trades for a market,
// sorted ascending by timestamp.
func (c *Client) GetRecentTrades(ctx context.Context, id string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	variants := make([]string, len(c.cfg.TradesVariants))
	for i, variant := range c.cfg.TradesVariants {
		variants[i] = fmt.Sprintf(variant, id) + fmt.Sprintf("?limit=%d", limit)
	}

	key := fmt.Sprintf("trades:%s:%d", id, limit)
	value, err := c.fetchResource(ctx, EndpointTrades, variants, key, c.cfg.TradesTTL, parseTrades)
	if err != nil {
		return nil, err
	}

	trades := value.([]domain.Trade)
	// Variants that ignore the limit parameter can over-deliver; keep
	// the most recent entries.
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return trades, nil
}

// fetchResource runs the cache -> dedup -> breaker -> variant loop
// pipeline for one logical resource.
func (c *Client) fetchResource(ctx context.Context, endpoint string, variants []string, cacheKey string, ttl time.Duration, parse func([]byte) (any, error)) (any, error) {
	if value, ok := c.cache.Get(cacheKey); ok {
		c.metrics.ObserveCache(endpoint, true)
		return value, nil
	}
	c.metrics.ObserveCache(endpoint, false)

	// Concurrent misses for the same key collapse into one upstream
	// fetch; every waiter receives the same result.
	value, err, _ := c.group.Do(cacheKey, func() (any, error) {
		if value, ok := c.cache.Get(cacheKey); ok {
			return value, nil
		}

		fetch := func() (any, error) {
			return c.fetchVariants(ctx, endpoint, variants, parse)
		}

		var value any
		var err error
		if breaker, ok := c.breakers[endpoint]; ok {
			value, err = breaker.Execute(fetch)
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				err = &UnavailableError{Endpoint: endpoint, Last: err}
			}
		} else {
			value, err = fetch()
		}
		if err != nil {
			return nil, err
		}

		c.cache.SetWithTTL(cacheKey, value, ttl)
		return value, nil
	})
	return value, err
}

// fetchVariants walks the configured variants in order. Timeouts and
// not-found responses advance to the next variant; a rate budget
// rejection or a dead caller context aborts the whole operation; any
// other non-success status or a shape-invalid payload is fatal.
func (c *Client) fetchVariants(ctx context.Context, endpoint string, variants []string, parse func([]byte) (any, error)) (any, error) {
	var lastErr error

	for _, path := range variants {
		if err := c.limiter.Allow(endpoint); err != nil {
			c.metrics.ObserveRateLimited(endpoint)
			log.Warn().Str("endpoint", endpoint).Err(err).Msg("outbound budget exhausted")
			return nil, err
		}

		value, err := c.attempt(ctx, endpoint, path, parse)
		if err == nil {
			return value, nil
		}

		// A dead caller context (cancelled or past its own deadline)
		// makes the remaining variants pointless; abort instead of
		// burning budget on attempts that cannot succeed.
		if ctx.Err() != nil {
			return nil, err
		}

		var timeoutErr *TimeoutError
		var upstreamErr *UpstreamError
		switch {
		case errors.As(err, &timeoutErr):
			lastErr = err
			continue
		case errors.As(err, &upstreamErr):
			if isNotFoundStatus(upstreamErr.StatusCode) {
				lastErr = err
				continue
			}
			return nil, err
		case isTransportError(err):
			lastErr = err
			continue
		default:
			// FormatError and anything else with meaning is fatal.
			return nil, err
		}
	}

	return nil, &UnavailableError{Endpoint: endpoint, Attempts: len(variants), Last: lastErr}
}

// attempt performs one network call against one variant, records its
// outcome, and classifies the result.
func (c *Client) attempt(ctx context.Context, endpoint, path string, parse func([]byte) (any, error)) (any, error) {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	outcome := callmetrics.Outcome{
		Endpoint: endpoint,
		Method:   http.MethodGet,
	}

	start := time.Now()
	value, statusCode, err := c.doRequest(attemptCtx, endpoint, path, parse)
	outcome.Latency = time.Since(start)
	outcome.StatusCode = statusCode

	if err != nil {
		// A fired per-attempt deadline with a live parent context is a
		// variant timeout, not a caller cancellation.
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = &TimeoutError{Endpoint: endpoint, Path: path, Timeout: c.cfg.RequestTimeout}
		}
		outcome.Error = err.Error()
		c.recorder.Record(outcome)
		c.metrics.ObserveRequest(endpoint, false, outcome.Latency)

		log.Debug().
			Str("request_id", requestID).
			Str("endpoint", endpoint).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", outcome.Latency).
			Err(err).
			Msg("upstream attempt failed")
		return nil, err
	}

	outcome.Success = true
	c.recorder.Record(outcome)
	c.metrics.ObserveRequest(endpoint, true, outcome.Latency)

	log.Debug().
		Str("request_id", requestID).
		Str("endpoint", endpoint).
		Str("path", path).
		Dur("latency", outcome.Latency).
		Msg("upstream attempt succeeded")
	return value, nil
}

// doRequest issues the HTTP call and parses a 2xx body.
func (c *Client) doRequest(ctx context.Context, endpoint, path string, parse func([]byte) (any, error)) (any, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &UpstreamError{
			Endpoint:   endpoint,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 256),
		}
	}

	value, err := parse(body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return value, resp.StatusCode, nil
}

// isNotFoundStatus reports whether a status means "no data at this
// path form" rather than a meaningful failure.
func isNotFoundStatus(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

// isTransportError reports whether the error came from the transport
// with no meaningful upstream status. Such attempts skip to the next
// variant like timeouts do.
func isTransportError(err error) bool {
	var upstreamErr *UpstreamError
	var formatErr *FormatError
	return !errors.As(err, &upstreamErr) && !errors.As(err, &formatErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
