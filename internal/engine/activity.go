package engine

import (
	"math"

	"github.com/quantglass/marketintel/internal/domain"
)

// ActivityMetrics bundles the activity score with raw trading volume
// components. Volume is quote-denominated.
type ActivityMetrics struct {
	Score        int     `json:"score"`        // 0-100
	QuoteVolume  float64 `json:"quote_volume"` // Sum of price*size
	TradeCount   int     `json:"trade_count"`
	AvgTradeSize float64 `json:"avg_trade_size"` // Base units per trade
}

// HealthMetrics is the weighted composite of the other three bundles.
type HealthMetrics struct {
	Score           int `json:"score"` // 0-100
	LiquidityScore  int `json:"liquidity_score"`
	VolatilityScore int `json:"volatility_score"`
	ActivityScore   int `json:"activity_score"`
}

// ComputeActivity derives trading activity metrics from a trade
// sequence.
func ComputeActivity(trades []domain.Trade, cfg Config) ActivityMetrics {
	quoteVolume := 0.0
	baseVolume := 0.0
	for _, trade := range trades {
		quoteVolume += trade.Price * trade.Size
		baseVolume += trade.Size
	}

	avgSize := 0.0
	if len(trades) > 0 {
		avgSize = baseVolume / float64(len(trades))
	}

	blend := cfg.WeightVolume*Normalize(quoteVolume, cfg.VolumeNormMin, cfg.VolumeNormMax) +
		cfg.WeightCount*Normalize(float64(len(trades)), cfg.CountNormMin, cfg.CountNormMax)

	return ActivityMetrics{
		Score:        scoreFromUnit(blend),
		QuoteVolume:  quoteVolume,
		TradeCount:   len(trades),
		AvgTradeSize: avgSize,
	}
}

// ComputeHealth composes the liquidity, volatility and activity scores
// into a single health score. Inputs are already 0-100, so no further
// normalization is applied.
func ComputeHealth(liquidity LiquidityMetrics, volatility VolatilityMetrics, activity ActivityMetrics, cfg Config) HealthMetrics {
	composite := cfg.HealthWeightLiquidity*float64(liquidity.Score) +
		cfg.HealthWeightVolatility*float64(volatility.Score) +
		cfg.HealthWeightActivity*float64(activity.Score)

	return HealthMetrics{
		Score:           int(math.Round(composite)),
		LiquidityScore:  liquidity.Score,
		VolatilityScore: volatility.Score,
		ActivityScore:   activity.Score,
	}
}
