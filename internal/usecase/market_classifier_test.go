package usecase_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/testutils"
	"github.com/vitos/level_leverage_guard/internal/usecase"
)

func TestCandleMarketClassifier(t *testing.T) {
	classifier := usecase.NewCandleMarketClassifier(config.Default().Market)

	alternating := make([]float64, 40)
	for i := range alternating {
		alternating[i] = 100 + 2*float64(i%2)
	}

	tests := []struct {
		name   string
		closes []float64
		trend  domain.TrendDirection
		phase  domain.MarketPhase
	}{
		{"steady rally", testutils.GeometricCloses(60, 100, 1.01), domain.TrendStrongUp, domain.PhaseMarkup},
		{"steady decline", testutils.GeometricCloses(60, 100, 0.99), domain.TrendStrongDown, domain.PhaseMarkdown},
		{"whipsaw", alternating, domain.TrendChoppy, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := classifier.Classify(testutils.CandlesFromCloses(tt.closes))
			require.NoError(t, err)

			assert.Equal(t, tt.trend, ctx.TrendDirection)
			if tt.phase != "" {
				assert.Equal(t, tt.phase, ctx.MarketPhase)
			} else {
				assert.Contains(t, []domain.MarketPhase{domain.PhaseAccumulation, domain.PhaseDistribution}, ctx.MarketPhase)
			}
			assert.Equal(t, tt.closes[len(tt.closes)-1], ctx.CurrentPrice)
			assert.GreaterOrEqual(t, ctx.Volatility, 0.0)
			assert.GreaterOrEqual(t, ctx.TrendStrength, 0.0)
			assert.LessOrEqual(t, ctx.TrendStrength, 1.0)
		})
	}
}

func TestCandleMarketClassifier_Volatility(t *testing.T) {
	classifier := usecase.NewCandleMarketClassifier(config.Default().Market)

	steady, err := classifier.Classify(testutils.CandlesFromCloses(testutils.GeometricCloses(60, 100, 1.01)))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, steady.Volatility, 1e-9)

	wave, err := classifier.Classify(testutils.SineCandles(97, 24, 100, 6))
	require.NoError(t, err)
	assert.Greater(t, wave.Volatility, 0.005)
}

func TestCandleMarketClassifier_InsufficientBars(t *testing.T) {
	_, err := usecase.NewCandleMarketClassifier(config.Default().Market).Classify(testutils.SineCandles(15, 24, 100, 6))
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}
