package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/testutils"
)

func leveredWalk(n int, seed int64, beta float64) (reference, symbol []domain.Candle) {
	rng := rand.New(rand.NewSource(seed))
	refCloses := make([]float64, n)
	symCloses := make([]float64, n)
	refCloses[0], symCloses[0] = 40000, 2000
	for i := 1; i < n; i++ {
		r := rng.NormFloat64() * 0.01
		refCloses[i] = refCloses[i-1] * math.Exp(r)
		symCloses[i] = symCloses[i-1] * math.Exp(beta*r)
	}
	return testutils.CandlesFromCloses(refCloses), testutils.CandlesFromCloses(symCloses)
}

func TestReturnCorrelationModel_LeveredSymbol(t *testing.T) {
	reference, symbol := leveredWalk(150, 3, 2)
	provider := &testutils.MockCandleProvider{Candles: map[string][]domain.Candle{"BTCUSDT": reference}}
	model := NewReturnCorrelationModel(provider, config.Default().Correlation)

	risk, err := model.Assess(context.Background(), "ETHUSDT", "60", symbol)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, risk.CorrelationStrength, 1e-9)
	assert.InDelta(t, 2.0, risk.Beta, 1e-9)
	assert.InDelta(t, 6.0, risk.PredictedDropPct["1h"], 1e-6)
	assert.InDelta(t, 24.0, risk.PredictedDropPct["24h"], 1e-6)
	assert.Equal(t, 1.0, risk.LiquidationRisk["24h"])
	assert.Equal(t, domain.RiskCritical, risk.RiskLevel)
}

func TestReturnCorrelationModel_ReferenceSymbol(t *testing.T) {
	model := NewReturnCorrelationModel(&testutils.MockCandleProvider{}, config.Default().Correlation)

	risk, err := model.Assess(context.Background(), "BTCUSDT", "60", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, risk.CorrelationStrength)
	assert.Equal(t, 12.0, risk.WorstDropPct())
	assert.Equal(t, domain.RiskHigh, risk.RiskLevel)
}

func TestReturnCorrelationModel_Failures(t *testing.T) {
	reference, symbol := leveredWalk(150, 5, 1)
	shifted := make([]domain.Candle, len(reference))
	copy(shifted, reference)
	for i := range shifted {
		shifted[i].Time += 1800
	}

	t.Run("no overlap", func(t *testing.T) {
		provider := &testutils.MockCandleProvider{Candles: map[string][]domain.Candle{"BTCUSDT": shifted}}
		_, err := NewReturnCorrelationModel(provider, config.Default().Correlation).Assess(context.Background(), "SOLUSDT", "60", symbol)
		assert.True(t, errors.Is(err, domain.ErrInsufficientData))
	})

	t.Run("provider down", func(t *testing.T) {
		provider := &testutils.MockCandleProvider{Err: map[string]error{"BTCUSDT": errors.New("503")}}
		_, err := NewReturnCorrelationModel(provider, config.Default().Correlation).Assess(context.Background(), "SOLUSDT", "60", symbol)
		assert.Equal(t, domain.FailureProvider, domain.Classify(err))
	})
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, domain.RiskLow, riskLevelFor(4.9))
	assert.Equal(t, domain.RiskMedium, riskLevelFor(5))
	assert.Equal(t, domain.RiskHigh, riskLevelFor(19.9))
	assert.Equal(t, domain.RiskCritical, riskLevelFor(20))
}
