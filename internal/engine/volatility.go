package engine

import (
	"math"

	"github.com/quantglass/marketintel/internal/domain"
)

// VolatilityMetrics bundles the volatility score with realized and
// smoothed measures plus the trend ratio against baseline.
type VolatilityMetrics struct {
	Score      int     `json:"score"`       // 0-100, higher trend lowers it
	Realized   float64 `json:"realized"`    // Std dev of log-returns
	EWMA       float64 `json:"ewma"`        // Sqrt of EWMA of squared returns
	Trend      float64 `json:"trend"`       // realized / baseline
	Baseline   float64 `json:"baseline"`    // Supplied or derived
	SampleSize int     `json:"sample_size"` // Usable log-returns
}

// logReturns computes consecutive log-returns, skipping any adjacent
// pair where either price is non-positive.
func logReturns(prices []float64) []float64 {
	var returns []float64
	for i := 1; i < len(prices); i++ {
		if prices[i] > 0 && prices[i-1] > 0 {
			returns = append(returns, math.Log(prices[i]/prices[i-1]))
		}
	}
	return returns
}

// RealizedVolatility returns the standard deviation of consecutive
// log-returns of the price sequence. Fewer than 2 usable prices
// yields 0; a constant sequence yields exactly 0.
func RealizedVolatility(prices []float64) float64 {
	returns := logReturns(prices)
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	sumSquares := 0.0
	for _, r := range returns {
		diff := r - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(returns)))
}

// EWMAVolatility returns the square root of the exponentially-weighted
// moving average of squared log-returns, seeded with the first squared
// return. lambda is the decay factor (0.94 default calibration).
func EWMAVolatility(prices []float64, lambda float64) float64 {
	returns := logReturns(prices)
	if len(returns) == 0 {
		return 0
	}

	ewma := returns[0] * returns[0]
	for _, r := range returns[1:] {
		ewma = lambda*ewma + (1.0-lambda)*r*r
	}
	return math.Sqrt(ewma)
}

// ComputeVolatility derives volatility metrics from a trade sequence.
// baseline is a longer-window realized volatility; pass 0 when none is
// available and a default of 0.8x the short-window realized value is
// used. A zero baseline (flat market) yields trend = 1, not a division
// fault or a spurious trending-up reading.
func ComputeVolatility(trades []domain.Trade, baseline float64, cfg Config) VolatilityMetrics {
	prices := make([]float64, len(trades))
	for i, trade := range trades {
		prices[i] = trade.Price
	}

	realized := RealizedVolatility(prices)
	ewma := EWMAVolatility(prices, cfg.EWMALambda)

	if baseline <= 0 {
		baseline = 0.8 * realized
	}

	trend := 1.0
	if baseline > 0 {
		trend = realized / baseline
	}

	score := scoreFromUnit(1.0 - Normalize(trend, cfg.TrendNormMin, cfg.TrendNormMax))

	return VolatilityMetrics{
		Score:      score,
		Realized:   realized,
		EWMA:       ewma,
		Trend:      trend,
		Baseline:   baseline,
		SampleSize: len(logReturns(prices)),
	}
}
