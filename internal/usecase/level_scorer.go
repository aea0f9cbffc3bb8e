package usecase

import (
	"math"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

// ClusterScore keeps the intermediate statistics behind a strength value.
type ClusterScore struct {
	TouchCount     int
	MeanPrice      float64
	AvgBounce      float64
	AvgVolumeSpike float64
	TimeSpanHours  float64
	RecencyHours   float64
	Raw            float64
	Strength       float64
}

// LevelScorer turns cluster statistics into a strength bounded to [0, 1].
type LevelScorer struct {
	weights        config.StrengthWeights
	window         int
	volumeLookback int
}

func NewLevelScorer(weights config.StrengthWeights, window, volumeLookback int) *LevelScorer {
	if window <= 0 {
		window = DefaultFractalWindow
	}
	if volumeLookback <= 0 {
		volumeLookback = 20
	}
	if weights.Divisor <= 0 {
		weights = config.Default().Detection.Weights
	}
	return &LevelScorer{weights: weights, window: window, volumeLookback: volumeLookback}
}

func (s *LevelScorer) Score(history []domain.Candle, cluster LevelCluster) ClusterScore {
	score := ClusterScore{
		TouchCount: len(cluster.Points),
		MeanPrice:  cluster.Mean(),
	}
	if score.TouchCount == 0 || score.MeanPrice <= 0 || len(history) == 0 {
		return score
	}

	var bounceSum, spikeSum float64
	for _, p := range cluster.Points {
		bounceSum += s.excursion(history, p.Index) / score.MeanPrice
		spikeSum += s.volumeSpike(history, p.Index)
	}
	score.AvgBounce = bounceSum / float64(score.TouchCount)
	score.AvgVolumeSpike = spikeSum / float64(score.TouchCount)

	first, last := cluster.Span()
	score.TimeSpanHours = last.Sub(first).Hours()
	if score.TouchCount == 1 {
		score.RecencyHours = math.Inf(1)
	} else {
		score.RecencyHours = history[len(history)-1].Timestamp().Sub(last).Hours()
	}

	w := s.weights
	recencyPenalty := w.Recency * score.RecencyHours
	if math.IsNaN(recencyPenalty) {
		recencyPenalty = 0
	}
	score.Raw = float64(score.TouchCount)*w.Touch +
		score.AvgBounce*w.Bounce +
		score.TimeSpanHours*w.TimeSpan -
		recencyPenalty +
		score.AvgVolumeSpike*w.VolumeSpike

	score.Strength = domain.ClampUnit(score.Raw / w.Divisor)
	return score
}

// excursion is the high-low range of the bars within ±window of idx.
func (s *LevelScorer) excursion(history []domain.Candle, idx int) float64 {
	if idx < 0 || idx >= len(history) {
		return 0
	}
	lo := max(0, idx-s.window)
	hi := min(len(history)-1, idx+s.window)
	highest, lowest := history[lo].High, history[lo].Low
	for i := lo + 1; i <= hi; i++ {
		highest = math.Max(highest, history[i].High)
		lowest = math.Min(lowest, history[i].Low)
	}
	return highest - lowest
}

// volumeSpike is the touch bar volume over the trailing average; 1.0 when unavailable.
func (s *LevelScorer) volumeSpike(history []domain.Candle, idx int) float64 {
	if idx <= 0 || idx >= len(history) {
		return 1.0
	}
	start := max(0, idx-s.volumeLookback)
	var sum float64
	for i := start; i < idx; i++ {
		sum += history[i].Volume
	}
	avg := sum / float64(idx-start)
	if avg <= 0 {
		return 1.0
	}
	return history[idx].Volume / avg
}
