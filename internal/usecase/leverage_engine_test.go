package usecase_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/testutils"
	"github.com/vitos/level_leverage_guard/internal/usecase"
)

func validLeverageInput(t *testing.T) usecase.LeverageInput {
	current := 100.0
	support := testutils.Level(domain.LevelSupport, 95, 0.8, current)
	resistance := testutils.Level(domain.LevelResistance, 108, 0.6, current)
	market := domain.MarketContext{CurrentPrice: current, Volatility: 0.02, TrendDirection: domain.TrendUp, MarketPhase: domain.PhaseMarkup}

	sltp, err := (&usecase.DefaultSLTPStrategy{}).CalculateLevels(current, 5, []domain.PriceLevel{support}, []domain.PriceLevel{resistance}, market, domain.DirectionLong)
	require.NoError(t, err)

	return usecase.LeverageInput{
		CurrentPrice: current,
		Direction:    domain.DirectionLong,
		Levels: domain.CriticalLevels{
			CurrentPrice: current,
			Supports:     []domain.RankedLevel{{Level: support}},
			Resistances:  []domain.RankedLevel{{Level: resistance}},
		},
		SLTP:       sltp,
		Prediction: &domain.BreakoutPrediction{BreakoutProbability: 0.3, BounceProbability: 0.7, PredictionConfidence: 0.8},
		BTCRisk: &domain.BTCCorrelationRisk{
			ReferenceSymbol:     "BTCUSDT",
			CorrelationStrength: 0.5,
			RiskLevel:           domain.RiskLow,
			PredictedDropPct:    map[string]float64{"1h": 1, "24h": 3},
			LiquidationRisk:     map[string]float64{"1h": 0.1, "24h": 0.3},
		},
		Market: market,
	}
}

func TestLeverageEngine_CombineScenario(t *testing.T) {
	engine := usecase.NewLeverageEngine(config.Default().Leverage)

	b := engine.Combine([5]float64{3, 8, 4, 6, 10}, 1.1)

	assert.Equal(t, 3.0, b.MinConstraintLeverage)
	assert.Equal(t, 2.97, b.FinalLeverage)
	assert.InDelta(t, 10.0, b.SafetyMarginPct, 1e-9)
	assert.Equal(t, []float64{3, 8, 4, 6, 10}, b.Constraints())
}

func TestLeverageEngine_CombineClamps(t *testing.T) {
	engine := usecase.NewLeverageEngine(config.Default().Leverage)

	assert.Equal(t, 1.0, engine.Combine([5]float64{0.4, 8, 4, 6, 10}, 1.1).FinalLeverage)
	assert.Equal(t, 20.0, engine.Combine([5]float64{40, 40, 40, 40, 40}, 1.0).FinalLeverage)
	// Trend bonus never lifts leverage above the tightest constraint.
	cfg := config.Default().Leverage
	cfg.SafetyMargin = 0
	assert.Equal(t, 3.0, usecase.NewLeverageEngine(cfg).Combine([5]float64{3, 8, 4, 6, 10}, 1.1).FinalLeverage)
}

func TestLeverageEngine_Decide(t *testing.T) {
	engine := usecase.NewLeverageEngine(config.Default().Leverage)

	rec, err := engine.Decide(validLeverageInput(t))
	require.NoError(t, err)

	b := rec.Breakdown
	assert.InDelta(t, 2.0, b.SupportDistanceLeverage, 1e-9)
	assert.InDelta(t, 20.0, b.RiskRewardLeverage, 1e-9)
	assert.InDelta(t, 20*(0.8+0.7+0.8)/3, b.ConfidenceLeverage, 1e-9)
	assert.InDelta(t, 0.10/0.015, b.BTCCorrelationLeverage, 1e-9)
	assert.InDelta(t, 5.0, b.VolatilityLeverage, 1e-9)
	assert.Equal(t, 1.05, b.TrendMultiplier)
	assert.Equal(t, 1.89, rec.RecommendedLeverage)
	assert.Equal(t, 2.0, rec.MaxSafeLeverage)
	assert.Equal(t, usecase.StrategyDefault, rec.Strategy)
	assert.Equal(t, 98.0, rec.StopLossPrice)
	assert.InDelta(t, 0.75, rec.ConfidenceLevel, 1e-9)
	assert.Greater(t, len(rec.Reasoning), 5)
}

// A stop buffered past a close support must bound leverage, not the support itself.
func TestLeverageEngine_StopDistanceBoundsLoss(t *testing.T) {
	engine := usecase.NewLeverageEngine(config.Default().Leverage)
	current := 100.0
	support := testutils.Level(domain.LevelSupport, 99, 0.8, current)
	resistance := testutils.Level(domain.LevelResistance, 106, 0.6, current)
	market := domain.MarketContext{CurrentPrice: current, Volatility: 0.002, TrendDirection: domain.TrendSideways, MarketPhase: domain.PhaseAccumulation}

	sltp, err := (&usecase.DefaultSLTPStrategy{}).CalculateLevels(current, 5, []domain.PriceLevel{support}, []domain.PriceLevel{resistance}, market, domain.DirectionLong)
	require.NoError(t, err)
	require.InDelta(t, 1.7, sltp.StopLossDistancePct, 1e-9)

	in := validLeverageInput(t)
	in.Levels.Supports = []domain.RankedLevel{{Level: support}}
	in.Levels.Resistances = []domain.RankedLevel{{Level: resistance}}
	in.SLTP = sltp
	in.Market = market
	in.Prediction = &domain.BreakoutPrediction{BreakoutProbability: 0.1, BounceProbability: 0.9, PredictionConfidence: 0.9}

	rec, err := engine.Decide(in)
	require.NoError(t, err)

	assert.InDelta(t, 0.10/0.017, rec.Breakdown.SupportDistanceLeverage, 1e-9)
	assert.InDelta(t, 0.10/0.017, rec.Breakdown.MinConstraintLeverage, 1e-9)
	assert.LessOrEqual(t, rec.RecommendedLeverage*sltp.StopLossDistancePct, 10+1e-6)
	assert.LessOrEqual(t, rec.MaxSafeLeverage*sltp.StopLossDistancePct, 10+1e-6)
}

func TestLeverageEngine_RejectsOutOfRange(t *testing.T) {
	engine := usecase.NewLeverageEngine(config.Default().Leverage)

	tests := []struct {
		name   string
		mutate func(in *usecase.LeverageInput)
		field  string
	}{
		{"corrupted support strength", func(in *usecase.LeverageInput) { in.Levels.Supports[0].Level.Strength = 153.87 }, "support.strength"},
		{"corrupted resistance strength", func(in *usecase.LeverageInput) { in.Levels.Resistances[0].Level.Strength = 153.87 }, "resistance.strength"},
		{"confidence above one", func(in *usecase.LeverageInput) { in.Prediction.PredictionConfidence = 1.2 }, "prediction.confidence"},
		{"probabilities do not sum", func(in *usecase.LeverageInput) { in.Prediction.BreakoutProbability = 0.1 }, "prediction.probability_sum"},
		{"correlation above one", func(in *usecase.LeverageInput) { in.BTCRisk.CorrelationStrength = 1.5 }, "btc.correlation_strength"},
		{"liquidation risk above one", func(in *usecase.LeverageInput) { in.BTCRisk.LiquidationRisk["24h"] = 3 }, "btc.liquidation_risk.24h"},
		{"negative volatility", func(in *usecase.LeverageInput) { in.Market.Volatility = -0.1 }, "market.volatility"},
		{"sltp confidence", func(in *usecase.LeverageInput) { in.SLTP.ConfidenceLevel = 80 }, "sltp.confidence"},
		{"negative stop distance", func(in *usecase.LeverageInput) { in.SLTP.StopLossDistancePct = -2 }, "sltp.stop_loss_distance_pct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validLeverageInput(t)
			tt.mutate(&in)

			rec, err := engine.Decide(in)
			assert.Nil(t, rec)
			var rangeErr *domain.OutOfRangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.field, rangeErr.Field)
			assert.Equal(t, domain.FailureOutOfRange, domain.Classify(err))
		})
	}
}

func TestLeverageEngine_MissingInputsAreInsufficient(t *testing.T) {
	engine := usecase.NewLeverageEngine(config.Default().Leverage)

	tests := []struct {
		name   string
		mutate func(in *usecase.LeverageInput)
	}{
		{"no prediction", func(in *usecase.LeverageInput) { in.Prediction = nil }},
		{"no btc risk", func(in *usecase.LeverageInput) { in.BTCRisk = nil }},
		{"no sltp", func(in *usecase.LeverageInput) { in.SLTP = nil }},
		{"no supports", func(in *usecase.LeverageInput) { in.Levels.Supports = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validLeverageInput(t)
			tt.mutate(&in)
			_, err := engine.Decide(in)
			assert.True(t, errors.Is(err, domain.ErrInsufficientData), "got %v", err)
		})
	}
}

func TestLeverageEngine_ZeroVolatilityIsUnconstrained(t *testing.T) {
	engine := usecase.NewLeverageEngine(config.Default().Leverage)
	in := validLeverageInput(t)
	in.Market.Volatility = 0

	rec, err := engine.Decide(in)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rec.Breakdown.VolatilityLeverage)
}

// 1 <= recommended <= max safe <= configured ceiling for any valid input, and
// a stop-out above the 1x floor never loses more than the loss budget.
func TestLeverageEngine_BoundsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))
	engine := usecase.NewLeverageEngine(config.Default().Leverage)
	trends := []domain.TrendDirection{domain.TrendStrongUp, domain.TrendUp, domain.TrendSideways, domain.TrendChoppy, domain.TrendDown, domain.TrendStrongDown}
	risks := []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical}

	for iter := 0; iter < 300; iter++ {
		in := validLeverageInput(t)
		in.Levels.Supports[0].Level = testutils.Level(domain.LevelSupport, 100*(0.5+rng.Float64()*0.49), rng.Float64(), 100)
		in.SLTP.RiskRewardRatio = 0.1 + rng.Float64()*10
		in.SLTP.StopLossDistancePct = 0.5 + rng.Float64()*15
		bounce := rng.Float64()
		in.Prediction = &domain.BreakoutPrediction{BreakoutProbability: 1 - bounce, BounceProbability: bounce, PredictionConfidence: rng.Float64()}
		in.BTCRisk.CorrelationStrength = rng.Float64()
		in.BTCRisk.RiskLevel = risks[rng.Intn(len(risks))]
		in.BTCRisk.PredictedDropPct["24h"] = rng.Float64() * 60
		in.Market.Volatility = rng.Float64() * 0.2
		in.Market.TrendDirection = trends[rng.Intn(len(trends))]
		if rng.Intn(2) == 0 {
			in.Direction = domain.DirectionShort
			in.Levels.Resistances[0].Level = testutils.Level(domain.LevelResistance, 100*(1.01+rng.Float64()), rng.Float64(), 100)
		}

		rec, err := engine.Decide(in)
		require.NoError(t, err)
		require.GreaterOrEqual(t, rec.RecommendedLeverage, 1.0)
		require.LessOrEqual(t, rec.RecommendedLeverage, rec.MaxSafeLeverage)
		require.LessOrEqual(t, rec.MaxSafeLeverage, 20.0)
		if rec.MaxSafeLeverage > 1 {
			require.LessOrEqual(t, rec.RecommendedLeverage*in.SLTP.StopLossDistancePct, 10+1e-6)
		}
	}
}

func TestTrendMultiplier(t *testing.T) {
	tests := []struct {
		trend     domain.TrendDirection
		direction domain.PositionDirection
		want      float64
	}{
		{domain.TrendStrongUp, domain.DirectionLong, 1.1},
		{domain.TrendChoppy, domain.DirectionLong, 0.9},
		{domain.TrendStrongDown, domain.DirectionLong, 0.8},
		{domain.TrendStrongDown, domain.DirectionShort, 1.1},
		{domain.TrendUp, domain.DirectionShort, 0.85},
		{domain.TrendChoppy, domain.DirectionShort, 0.9},
		{"unknown", domain.DirectionLong, 1.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usecase.TrendMultiplier(tt.trend, tt.direction), "%s/%s", tt.trend, tt.direction)
	}
}
