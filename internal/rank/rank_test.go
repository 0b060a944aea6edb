package rank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantglass/marketintel/internal/domain"
	"github.com/quantglass/marketintel/internal/engine"
)

type stubFetcher struct {
	markets []domain.MarketDescriptor
	trades  map[string][]domain.Trade
	errs    map[string]error
}

func (s *stubFetcher) ListMarkets(ctx context.Context) ([]domain.MarketDescriptor, error) {
	return s.markets, nil
}

func (s *stubFetcher) GetRecentTrades(ctx context.Context, id string, limit int) ([]domain.Trade, error) {
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	return s.trades[id], nil
}

func makeTrades(n int, price float64) []domain.Trade {
	trades := make([]domain.Trade, n)
	for i := range trades {
		trades[i] = domain.Trade{Price: price, Size: 10, Timestamp: time.Now()}
	}
	return trades
}

func TestByActivity_OrdersByScoreDescending(t *testing.T) {
	fetcher := &stubFetcher{
		markets: []domain.MarketDescriptor{
			{ID: "quiet", Symbol: "Q/USD"},
			{ID: "busy", Symbol: "B/USD"},
		},
		trades: map[string][]domain.Trade{
			"quiet": makeTrades(5, 10),
			"busy":  makeTrades(500, 1000),
		},
	}

	results, err := ByActivity(context.Background(), fetcher, 100, engine.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "busy", results[0].Market.ID)
	assert.Greater(t, results[0].Activity.Score, results[1].Activity.Score)
}

func TestByActivity_IsolatesPerMarketFailures(t *testing.T) {
	bad := errors.New("upstream unavailable")
	fetcher := &stubFetcher{
		markets: []domain.MarketDescriptor{
			{ID: "ok"},
			{ID: "broken"},
			{ID: "also-ok"},
		},
		trades: map[string][]domain.Trade{
			"ok":      makeTrades(50, 100),
			"also-ok": makeTrades(10, 100),
		},
		errs: map[string]error{"broken": bad},
	}

	results, err := ByActivity(context.Background(), fetcher, 100, engine.DefaultConfig())
	require.NoError(t, err, "a single market's failure must not abort the fan-out")
	require.Len(t, results, 3)

	// Failed market sorts last with its error preserved.
	assert.Equal(t, "broken", results[2].Market.ID)
	assert.ErrorIs(t, results[2].Err, bad)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}
