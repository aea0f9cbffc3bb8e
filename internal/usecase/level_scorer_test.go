package usecase

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/testutils"
)

func TestLevelScorer_SingleTouchHasNoStrength(t *testing.T) {
	history := testutils.SineCandles(97, 24, 100, 6)
	scorer := NewLevelScorer(config.Default().Detection.Weights, 5, 20)

	score := scorer.Score(history, LevelCluster{Points: []FractalPoint{{Index: 18, Time: history[18].Timestamp(), Price: history[18].Low}}})

	assert.True(t, math.IsInf(score.RecencyHours, 1))
	assert.Equal(t, 0.0, score.Strength)
}

func TestLevelScorer_SineLows(t *testing.T) {
	history := testutils.SineCandles(97, 24, 100, 6)
	_, lows := NewFractalDetector(5).Detect(history)
	clusters := NewLevelClusterer(0.01).Cluster(lows)
	require.Len(t, clusters, 1)

	score := NewLevelScorer(config.Default().Detection.Weights, 5, 20).Score(history, clusters[0])

	assert.Equal(t, 4, score.TouchCount)
	assert.InDelta(t, 72.0, score.TimeSpanHours, 1e-9)
	assert.InDelta(t, 6.0, score.RecencyHours, 1e-9)
	assert.InDelta(t, 1.0, score.AvgVolumeSpike, 1e-9)
	assert.Greater(t, score.Strength, 0.0)
	assert.Less(t, score.Strength, 1.0)
	assert.InDelta(t, score.Raw/200, score.Strength, 1e-12)
}

// Strength stays in [0, 1] for extreme touch counts, bounces and volume spikes.
func TestLevelScorer_StrengthBoundedProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scorer := NewLevelScorer(config.Default().Detection.Weights, 5, 20)

	for iter := 0; iter < 500; iter++ {
		n := 30 + rng.Intn(200)
		history := make([]domain.Candle, n)
		for i := range history {
			base := 1 + rng.Float64()*1e5
			spread := rng.Float64() * base * 0.9
			volume := rng.Float64() * 10
			if rng.Intn(10) == 0 {
				volume = rng.Float64() * 1e12
			}
			history[i] = domain.Candle{
				Time:   testutils.Start + int64(i)*int64(rng.Intn(86400)+1),
				Open:   base,
				High:   base + spread,
				Low:    base - spread,
				Close:  base,
				Volume: volume,
			}
		}

		touches := 1 + rng.Intn(n)
		points := make([]FractalPoint, touches)
		for i := range points {
			idx := rng.Intn(n)
			points[i] = FractalPoint{Index: idx, Time: history[idx].Timestamp(), Price: history[idx].Low}
		}

		score := scorer.Score(history, LevelCluster{Points: points})
		require.GreaterOrEqual(t, score.Strength, 0.0, "iteration %d", iter)
		require.LessOrEqual(t, score.Strength, 1.0, "iteration %d", iter)
	}
}

func TestLevelScorer_VolumeSpike(t *testing.T) {
	history := testutils.SineCandles(40, 24, 100, 6)
	history[30].Volume = 5000

	scorer := NewLevelScorer(config.Default().Detection.Weights, 5, 20)
	assert.InDelta(t, 5.0, scorer.volumeSpike(history, 30), 1e-9)
	assert.Equal(t, 1.0, scorer.volumeSpike(history, 0))

	history[29].Volume = 0
	for i := 10; i < 30; i++ {
		history[i].Volume = 0
	}
	assert.Equal(t, 1.0, scorer.volumeSpike(history, 30))
}

func TestLevelScorer_ZeroRecencyWeightIgnoresSingleTouch(t *testing.T) {
	w := config.Default().Detection.Weights
	w.Recency = 0
	history := testutils.SineCandles(97, 24, 100, 6)
	score := NewLevelScorer(w, 5, 20).Score(history, LevelCluster{Points: []FractalPoint{{Index: 18, Time: time.Unix(history[18].Time, 0), Price: history[18].Low}}})

	assert.False(t, math.IsNaN(score.Raw))
	assert.Greater(t, score.Strength, 0.0)
}
