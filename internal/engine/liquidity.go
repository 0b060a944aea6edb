package engine

import (
	"math"

	"github.com/quantglass/marketintel/internal/domain"
)

// LiquidityMetrics bundles the liquidity score with its raw components.
type LiquidityMetrics struct {
	Score     int     `json:"score"`      // 0-100
	SpreadBps float64 `json:"spread_bps"` // Top-of-book spread
	Depth     float64 `json:"depth"`      // Size within the band, both sides
	BidDepth  float64 `json:"bid_depth"`
	AskDepth  float64 `json:"ask_depth"`
	Turnover  float64 `json:"turnover"`  // Traded volume / depth
	Imbalance float64 `json:"imbalance"` // -1 (ask heavy) to +1 (bid heavy)
}

// SpreadBps returns the top-of-book spread in basis points relative to
// mid, or 0 when either side is empty. A crossed book yields a
// negative spread rather than an error; scoring degrades gracefully.
func SpreadBps(ob *domain.OrderBookSnapshot) float64 {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0
	}

	mid := (bid.Price + ask.Price) / 2.0
	if mid <= 0 {
		return 0
	}
	return (ask.Price - bid.Price) / mid * 10000.0
}

// DepthWithinBps sums resting size within ±bandBps of mid, per side.
// Both totals are 0 when there is no top of book.
func DepthWithinBps(ob *domain.OrderBookSnapshot, bandBps float64) (bidDepth, askDepth float64) {
	mid, ok := ob.MidPrice()
	if !ok {
		return 0, 0
	}

	lowerBound := mid * (1.0 - bandBps/10000.0)
	upperBound := mid * (1.0 + bandBps/10000.0)

	for _, bid := range ob.Bids {
		if bid.Price >= lowerBound {
			bidDepth += bid.Size
		}
	}
	for _, ask := range ob.Asks {
		if ask.Price <= upperBound {
			askDepth += ask.Size
		}
	}
	return bidDepth, askDepth
}

// Imbalance returns (bidDepth-askDepth)/(bidDepth+askDepth) within the
// band, or 0 when both sides are empty.
func Imbalance(ob *domain.OrderBookSnapshot, bandBps float64) float64 {
	bidDepth, askDepth := DepthWithinBps(ob, bandBps)
	total := bidDepth + askDepth
	if total == 0 {
		return 0
	}
	return (bidDepth - askDepth) / total
}

// ComputeLiquidity blends spread, depth, turnover and imbalance into a
// 0-100 liquidity score.
func ComputeLiquidity(ob *domain.OrderBookSnapshot, trades []domain.Trade, cfg Config) LiquidityMetrics {
	spreadBps := SpreadBps(ob)
	bidDepth, askDepth := DepthWithinBps(ob, cfg.DepthBandBps)
	depth := bidDepth + askDepth
	imbalance := Imbalance(ob, cfg.DepthBandBps)

	baseVolume := 0.0
	for _, trade := range trades {
		baseVolume += trade.Size
	}
	turnover := 0.0
	if depth > 0 {
		turnover = baseVolume / depth
	}

	// Narrow spread is good, so the spread sub-score is inverted.
	spreadScore := 1.0 - Normalize(spreadBps, cfg.SpreadNormMin, cfg.SpreadNormMax)
	depthScore := Normalize(depth, cfg.DepthNormMin, cfg.DepthNormMax)
	turnoverScore := Normalize(turnover, cfg.TurnoverMin, cfg.TurnoverMax)
	balanceScore := 1.0 - math.Abs(imbalance)

	blend := cfg.WeightSpread*spreadScore +
		cfg.WeightDepth*depthScore +
		cfg.WeightTurnover*turnoverScore +
		cfg.WeightImbalance*balanceScore

	return LiquidityMetrics{
		Score:     scoreFromUnit(blend),
		SpreadBps: spreadBps,
		Depth:     depth,
		BidDepth:  bidDepth,
		AskDepth:  askDepth,
		Turnover:  turnover,
		Imbalance: imbalance,
	}
}
