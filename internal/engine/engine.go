// Package engine converts raw order-book and trade data into bounded,
// comparable market quality scores and threshold-driven alert signals.
// All computations are pure and deterministic: no I/O, no shared state.
package engine

import "math"

// Config holds normalization ranges, blend weights and signal
// thresholds. DefaultConfig values are calibrated for mid-cap spot
// markets; callers may override per venue.
type Config struct {
	DepthBandBps float64 `yaml:"depth_band_bps"` // Band around mid for depth/imbalance

	SpreadNormMin float64 `yaml:"spread_norm_min"` // bps, narrow end
	SpreadNormMax float64 `yaml:"spread_norm_max"` // bps, wide end
	DepthNormMin  float64 `yaml:"depth_norm_min"`  // base units
	DepthNormMax  float64 `yaml:"depth_norm_max"`
	TurnoverMin   float64 `yaml:"turnover_min"`
	TurnoverMax   float64 `yaml:"turnover_max"`

	WeightSpread    float64 `yaml:"weight_spread"`
	WeightDepth     float64 `yaml:"weight_depth"`
	WeightTurnover  float64 `yaml:"weight_turnover"`
	WeightImbalance float64 `yaml:"weight_imbalance"`

	EWMALambda   float64 `yaml:"ewma_lambda"`
	TrendNormMin float64 `yaml:"trend_norm_min"`
	TrendNormMax float64 `yaml:"trend_norm_max"`

	VolumeNormMin float64 `yaml:"volume_norm_min"` // quote units
	VolumeNormMax float64 `yaml:"volume_norm_max"`
	CountNormMin  float64 `yaml:"count_norm_min"`
	CountNormMax  float64 `yaml:"count_norm_max"`
	WeightVolume  float64 `yaml:"weight_volume"`
	WeightCount   float64 `yaml:"weight_count"`

	HealthWeightLiquidity  float64 `yaml:"health_weight_liquidity"`
	HealthWeightVolatility float64 `yaml:"health_weight_volatility"`
	HealthWeightActivity   float64 `yaml:"health_weight_activity"`

	SpreadWarnBps     float64 `yaml:"spread_warn_bps"`
	DepthWarnMin      float64 `yaml:"depth_warn_min"`
	TrendWarnRatio    float64 `yaml:"trend_warn_ratio"`
	ActivityWarnScore int     `yaml:"activity_warn_score"`
	HealthCriticalMin int     `yaml:"health_critical_min"`
}

// DefaultConfig returns the standard calibration.
func DefaultConfig() Config {
	return Config{
		DepthBandBps: 25,

		SpreadNormMin: 5,
		SpreadNormMax: 50,
		DepthNormMin:  5000,
		DepthNormMax:  200000,
		TurnoverMin:   0.05,
		TurnoverMax:   1.2,

		WeightSpread:    0.35,
		WeightDepth:     0.35,
		WeightTurnover:  0.20,
		WeightImbalance: 0.10,

		EWMALambda:   0.94,
		TrendNormMin: 1,
		TrendNormMax: 3,

		VolumeNormMin: 10000,
		VolumeNormMax: 5000000,
		CountNormMin:  10,
		CountNormMax:  2000,
		WeightVolume:  0.6,
		WeightCount:   0.4,

		HealthWeightLiquidity:  0.45,
		HealthWeightVolatility: 0.35,
		HealthWeightActivity:   0.20,

		SpreadWarnBps:     25,
		DepthWarnMin:      20000,
		TrendWarnRatio:    1.8,
		ActivityWarnScore: 30,
		HealthCriticalMin: 40,
	}
}

// Normalize maps value onto [0,1] across the [min,max] range, clamped
// at both ends. A degenerate range (max <= min) yields 0 so that a
// misconfigured calibration cannot produce out-of-band scores.
func Normalize(value, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return clamp01((value - min) / (max - min))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scoreFromUnit converts a [0,1] blend into an integer 0-100 score.
func scoreFromUnit(v float64) int {
	return int(math.Round(clamp01(v) * 100))
}
