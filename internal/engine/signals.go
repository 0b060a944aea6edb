package engine

import "fmt"

// Severity grades a signal.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Signal is a discrete, threshold-triggered alert derived from metric
// values.
type Signal struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// BuildSignals evaluates the threshold rules against the four metric
// bundles. Rules fire independently and in a fixed order so output
// ordering is deterministic. The result is never empty: when nothing
// fires, a single all-clear info signal is emitted.
func BuildSignals(liquidity LiquidityMetrics, volatility VolatilityMetrics, activity ActivityMetrics, health HealthMetrics, cfg Config) []Signal {
	var signals []Signal

	if liquidity.SpreadBps > cfg.SpreadWarnBps {
		signals = append(signals, Signal{
			Code:     "SPREAD_WIDE",
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("spread %.1f bps exceeds %.1f bps threshold", liquidity.SpreadBps, cfg.SpreadWarnBps),
		})
	}

	if liquidity.Depth < cfg.DepthWarnMin {
		signals = append(signals, Signal{
			Code:     "DEPTH_THIN",
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("depth %.0f within band below %.0f threshold", liquidity.Depth, cfg.DepthWarnMin),
		})
	}

	if volatility.Trend > cfg.TrendWarnRatio {
		signals = append(signals, Signal{
			Code:     "VOLATILITY_RISING",
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("volatility trend %.2fx exceeds %.2fx threshold", volatility.Trend, cfg.TrendWarnRatio),
		})
	}

	if activity.Score < cfg.ActivityWarnScore {
		signals = append(signals, Signal{
			Code:     "ACTIVITY_LOW",
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("activity score %d below %d threshold", activity.Score, cfg.ActivityWarnScore),
		})
	}

	if health.Score < cfg.HealthCriticalMin {
		signals = append(signals, Signal{
			Code:     "HEALTH_DEGRADED",
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("health score %d below %d threshold", health.Score, cfg.HealthCriticalMin),
		})
	}

	if len(signals) == 0 {
		signals = append(signals, Signal{
			Code:     "ALL_CLEAR",
			Severity: SeverityInfo,
			Message:  "no material degradation detected",
		})
	}

	return signals
}
