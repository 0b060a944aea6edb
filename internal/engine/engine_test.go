package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantglass/marketintel/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		min, max float64
		want     float64
	}{
		{"below_range_clamps_to_zero", 1, 5, 50, 0},
		{"at_min", 5, 5, 50, 0},
		{"midpoint", 27.5, 5, 50, 0.5},
		{"at_max", 50, 5, 50, 1},
		{"above_range_clamps_to_one", 100, 5, 50, 1},
		{"degenerate_range", 10, 50, 5, 0},
		{"equal_bounds", 10, 5, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Normalize(tt.value, tt.min, tt.max), 1e-9)
		})
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	prev := -1.0
	for v := -10.0; v <= 110.0; v += 0.5 {
		got := Normalize(v, 0, 100)
		assert.GreaterOrEqual(t, got, prev, "normalize must be non-decreasing")
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
}

func book(bids, asks []domain.PriceLevel) *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{MarketID: "1", Bids: bids, Asks: asks}
}

func levels(pairs ...float64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: pairs[i], Size: pairs[i+1]})
	}
	return out
}

func TestSpreadBps(t *testing.T) {
	// Worked example: bids [[100,5]], asks [[101,5]] -> mid 100.5,
	// spread (101-100)/100.5*10000 = 99.50...
	ob := book(levels(100, 5), levels(101, 5))
	assert.InDelta(t, 99.502, SpreadBps(ob), 0.01)

	// Equal best bid and ask: zero spread.
	assert.InDelta(t, 0, SpreadBps(book(levels(100, 5), levels(100, 5))), 1e-9)

	// Missing side: no top of book, spread is 0.
	assert.Equal(t, 0.0, SpreadBps(book(nil, levels(101, 5))))
	assert.Equal(t, 0.0, SpreadBps(book(levels(100, 5), nil)))
}

func TestDepthWithinBps(t *testing.T) {
	// mid = 100; ±25 bps band is [99.75, 100.25].
	ob := book(
		levels(99.9, 10, 99.8, 20, 99.0, 500),
		levels(100.1, 5, 100.2, 15, 101.0, 500),
	)
	bidDepth, askDepth := DepthWithinBps(ob, 25)
	assert.InDelta(t, 30, bidDepth, 1e-9)
	assert.InDelta(t, 20, askDepth, 1e-9)

	// Empty book yields zero depth.
	bidDepth, askDepth = DepthWithinBps(book(nil, nil), 25)
	assert.Zero(t, bidDepth)
	assert.Zero(t, askDepth)
}

func TestImbalance(t *testing.T) {
	ob := book(levels(99.9, 30), levels(100.1, 10))
	// (30-10)/(30+10) = 0.5
	assert.InDelta(t, 0.5, Imbalance(ob, 25), 1e-9)

	assert.Equal(t, 0.0, Imbalance(book(nil, nil), 25))
}

func TestRealizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, RealizedVolatility(nil))
	assert.Equal(t, 0.0, RealizedVolatility([]float64{100}))
	assert.Equal(t, 0.0, RealizedVolatility([]float64{100, 100, 100, 100}), "constant prices must yield exactly zero")
	assert.Equal(t, 0.0, RealizedVolatility([]float64{100, -5, 100}), "non-positive prices are skipped")

	vol := RealizedVolatility([]float64{100, 105, 95, 102, 98})
	assert.Greater(t, vol, 0.0)
}

func TestEWMAVolatility(t *testing.T) {
	assert.Equal(t, 0.0, EWMAVolatility([]float64{100}, 0.94))
	assert.Equal(t, 0.0, EWMAVolatility([]float64{100, 100, 100}, 0.94))

	vol := EWMAVolatility([]float64{100, 110, 100, 110}, 0.94)
	assert.Greater(t, vol, 0.0)
}

func trades(prices ...float64) []domain.Trade {
	out := make([]domain.Trade, len(prices))
	for i, p := range prices {
		out[i] = domain.Trade{Price: p, Size: 1}
	}
	return out
}

func TestComputeVolatility_DefaultBaseline(t *testing.T) {
	cfg := DefaultConfig()

	// With realized > 0 and no external baseline, baseline defaults to
	// 0.8x realized, so trend is exactly 1.25.
	m := ComputeVolatility(trades(100, 105, 95, 102), 0, cfg)
	assert.InDelta(t, 1.25, m.Trend, 1e-9)
	// score = 100 * (1 - normalize(1.25, 1, 3)) = 100 * 0.875
	assert.Equal(t, 88, m.Score)
}

func TestComputeVolatility_ZeroBaselineIsFlat(t *testing.T) {
	cfg := DefaultConfig()

	// Constant prices: realized = 0, derived baseline = 0. Trend must
	// be 1 (flat), not a division fault or a 1.25 phantom trend.
	m := ComputeVolatility(trades(100, 100, 100, 100), 0, cfg)
	assert.Equal(t, 0.0, m.Realized)
	assert.InDelta(t, 1.0, m.Trend, 1e-9)
	assert.Equal(t, 100, m.Score)
}

func TestComputeVolatility_ExternalBaseline(t *testing.T) {
	cfg := DefaultConfig()

	m := ComputeVolatility(trades(100, 105, 95, 102), 0, cfg)
	withBaseline := ComputeVolatility(trades(100, 105, 95, 102), m.Realized, cfg)
	assert.InDelta(t, 1.0, withBaseline.Trend, 1e-9, "realized equal to baseline means flat trend")
}

func TestComputeActivity(t *testing.T) {
	cfg := DefaultConfig()

	ts := []domain.Trade{
		{Price: 100, Size: 2},
		{Price: 101, Size: 4},
	}
	m := ComputeActivity(ts, cfg)
	assert.InDelta(t, 604, m.QuoteVolume, 1e-9)
	assert.Equal(t, 2, m.TradeCount)
	assert.InDelta(t, 3, m.AvgTradeSize, 1e-9)

	empty := ComputeActivity(nil, cfg)
	assert.Equal(t, 0, empty.Score)
	assert.Equal(t, 0, empty.TradeCount)
	assert.Equal(t, 0.0, empty.AvgTradeSize)
}

func TestScoresBounded(t *testing.T) {
	cfg := DefaultConfig()

	books := []*domain.OrderBookSnapshot{
		book(nil, nil),
		book(levels(100, 5), levels(101, 5)),
		book(levels(100, 1e9), levels(100.01, 1e9)),
		book(levels(101, 5), levels(100, 5)), // crossed
	}
	tradeSets := [][]domain.Trade{
		nil,
		trades(100, 100, 100),
		trades(100, 200, 50, 400, 25),
	}

	for _, ob := range books {
		for _, ts := range tradeSets {
			liquidity := ComputeLiquidity(ob, ts, cfg)
			volatility := ComputeVolatility(ts, 0, cfg)
			activity := ComputeActivity(ts, cfg)
			health := ComputeHealth(liquidity, volatility, activity, cfg)

			for _, score := range []int{liquidity.Score, volatility.Score, activity.Score, health.Score} {
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 100)
			}
		}
	}
}

func TestComputeHealth_Composite(t *testing.T) {
	cfg := DefaultConfig()

	h := ComputeHealth(
		LiquidityMetrics{Score: 80},
		VolatilityMetrics{Score: 60},
		ActivityMetrics{Score: 40},
		cfg,
	)
	// 0.45*80 + 0.35*60 + 0.20*40 = 36 + 21 + 8 = 65
	assert.Equal(t, 65, h.Score)
	assert.Equal(t, 80, h.LiquidityScore)
}

func TestBuildSignals_AllClear(t *testing.T) {
	cfg := DefaultConfig()

	signals := BuildSignals(
		LiquidityMetrics{Score: 90, SpreadBps: 5, Depth: 100000},
		VolatilityMetrics{Score: 85, Trend: 1.1},
		ActivityMetrics{Score: 70},
		HealthMetrics{Score: 85},
		cfg,
	)

	assert.Len(t, signals, 1)
	assert.Equal(t, "ALL_CLEAR", signals[0].Code)
	assert.Equal(t, SeverityInfo, signals[0].Severity)
}

func TestBuildSignals_FixedOrder(t *testing.T) {
	cfg := DefaultConfig()

	// Everything degraded at once: all five rules fire, in rule order.
	signals := BuildSignals(
		LiquidityMetrics{Score: 10, SpreadBps: 80, Depth: 500},
		VolatilityMetrics{Score: 10, Trend: 2.5},
		ActivityMetrics{Score: 5},
		HealthMetrics{Score: 9},
		cfg,
	)

	codes := make([]string, len(signals))
	for i, s := range signals {
		codes[i] = s.Code
	}
	assert.Equal(t, []string{"SPREAD_WIDE", "DEPTH_THIN", "VOLATILITY_RISING", "ACTIVITY_LOW", "HEALTH_DEGRADED"}, codes)
	assert.Equal(t, SeverityCritical, signals[4].Severity)
}

func TestBuildSignals_NeverEmpty(t *testing.T) {
	cfg := DefaultConfig()

	for _, health := range []int{0, 39, 40, 100} {
		signals := BuildSignals(
			LiquidityMetrics{SpreadBps: 10, Depth: 50000},
			VolatilityMetrics{Trend: 1},
			ActivityMetrics{Score: 50},
			HealthMetrics{Score: health},
			cfg,
		)
		assert.NotEmpty(t, signals)
	}
}
