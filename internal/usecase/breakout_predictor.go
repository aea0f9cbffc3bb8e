package usecase

import (
	"context"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

// InteractionPredictor derives breakout/bounce odds from the level's own
// interaction history. Below minSamples it returns no prediction rather than
// a neutral guess.
type InteractionPredictor struct {
	enhancer   EnhancementProvider
	minSamples int
}

func NewInteractionPredictor(enhancer EnhancementProvider, minSamples int) *InteractionPredictor {
	if minSamples <= 0 {
		minSamples = 3
	}
	return &InteractionPredictor{enhancer: enhancer, minSamples: minSamples}
}

func (p *InteractionPredictor) Predict(ctx context.Context, symbol string, history []domain.Candle, level domain.PriceLevel) (*domain.BreakoutPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	interactions, err := p.enhancer.DetectInteractions(history, level)
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.enhancer.EnhancementName(), Err: err}
	}
	if len(interactions) < p.minSamples {
		return nil, nil
	}

	bounce, err := p.enhancer.PredictBounceProbability(level, interactions)
	if err != nil {
		return nil, &domain.ProviderError{Provider: p.enhancer.EnhancementName(), Err: err}
	}
	if err := domain.CheckRange("prediction.bounce_probability", bounce, 0, 1); err != nil {
		return nil, err
	}
	n := len(interactions)

	return &domain.BreakoutPrediction{
		LevelID:              level.ID,
		BreakoutProbability:  1 - bounce,
		BounceProbability:    bounce,
		PredictionConfidence: float64(n) / float64(n+p.minSamples),
		Samples:              n,
	}, nil
}
