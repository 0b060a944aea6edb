// Package rank fans out trade retrieval across markets and orders
// them by recent trading activity.
package rank

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/quantglass/marketintel/internal/domain"
	"github.com/quantglass/marketintel/internal/engine"
)

// Fetcher is the slice of the upstream client the ranker needs.
type Fetcher interface {
	ListMarkets(ctx context.Context) ([]domain.MarketDescriptor, error)
	GetRecentTrades(ctx context.Context, id string, limit int) ([]domain.Trade, error)
}

// Result is one market's ranking row. Err is set when that market's
// trade retrieval failed; the failure never aborts the other markets.
type Result struct {
	Market   domain.MarketDescriptor `json:"market"`
	Activity engine.ActivityMetrics  `json:"activity"`
	Err      error                   `json:"-"`
}

// ByActivity ranks all listed markets by activity score, descending.
// One retrieval runs per market concurrently; failed markets sort to
// the end with Err populated so callers can apply their own policy.
func ByActivity(ctx context.Context, fetcher Fetcher, tradeLimit int, cfg engine.Config) ([]Result, error) {
	markets, err := fetcher.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(markets))
	var wg sync.WaitGroup
	for i, market := range markets {
		wg.Add(1)
		go func(i int, market domain.MarketDescriptor) {
			defer wg.Done()

			trades, err := fetcher.GetRecentTrades(ctx, market.ID, tradeLimit)
			if err != nil {
				log.Warn().Str("market", market.ID).Err(err).Msg("excluding market from ranking")
				results[i] = Result{Market: market, Err: err}
				return
			}
			results[i] = Result{Market: market, Activity: engine.ComputeActivity(trades, cfg)}
		}(i, market)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Err == nil) != (results[j].Err == nil) {
			return results[i].Err == nil
		}
		return results[i].Activity.Score > results[j].Activity.Score
	})
	return results, nil
}
