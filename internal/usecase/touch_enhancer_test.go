package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/testutils"
)

func TestTouchStatisticsEnhancer_SineSupport(t *testing.T) {
	history := testutils.SineCandles(97, 24, 100, 6)
	support := testutils.Level(domain.LevelSupport, 94*0.998, 0.3, 100)
	enhancer := NewTouchStatisticsEnhancer(config.Default().Enhancement)

	interactions, err := enhancer.DetectInteractions(history, support)
	require.NoError(t, err)
	require.Len(t, interactions, 4)
	for _, in := range interactions {
		assert.True(t, in.Bounced)
	}

	p, err := enhancer.PredictBounceProbability(support, interactions)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6.0, p, 1e-9)
}

func TestTouchStatisticsEnhancer_Breakout(t *testing.T) {
	// Price touches 100 and keeps falling.
	closes := []float64{105, 104, 103, 102, 101, 100, 98, 96, 94, 92, 90}
	support := testutils.Level(domain.LevelSupport, 100, 0.5, 105)
	enhancer := NewTouchStatisticsEnhancer(config.EnhancementConfig{Tolerance: 0.003, Lookahead: 3})

	interactions, err := enhancer.DetectInteractions(testutils.CandlesFromCloses(closes), support)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.False(t, interactions[0].Bounced)

	p, err := enhancer.PredictBounceProbability(support, interactions)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, p, 1e-9)
}

func TestTouchStatisticsEnhancer_NoInteractions(t *testing.T) {
	enhancer := NewTouchStatisticsEnhancer(config.Default().Enhancement)
	_, err := enhancer.PredictBounceProbability(testutils.Level(domain.LevelSupport, 50, 0.5, 100), nil)
	assert.ErrorIs(t, err, errNoInteractions)
}

func TestInteractionPredictor(t *testing.T) {
	history := testutils.SineCandles(97, 24, 100, 6)
	support := testutils.Level(domain.LevelSupport, 94*0.998, 0.3, 100)
	enhancer := NewTouchStatisticsEnhancer(config.Default().Enhancement)

	p, err := NewInteractionPredictor(enhancer, 3).Predict(context.Background(), "ETHUSDT", history, support)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, support.ID, p.LevelID)
	assert.Equal(t, 4, p.Samples)
	assert.InDelta(t, 1.0, p.BounceProbability+p.BreakoutProbability, 1e-9)
	assert.InDelta(t, 4.0/7.0, p.PredictionConfidence, 1e-9)
}

func TestInteractionPredictor_AbsentWithoutSamples(t *testing.T) {
	history := testutils.SineCandles(97, 24, 100, 6)
	far := testutils.Level(domain.LevelSupport, 50, 0.3, 100)

	p, err := NewInteractionPredictor(NewTouchStatisticsEnhancer(config.Default().Enhancement), 3).
		Predict(context.Background(), "ETHUSDT", history, far)
	require.NoError(t, err)
	assert.Nil(t, p)
}
