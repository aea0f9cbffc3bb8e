package domain

import "context"

// CandleProvider supplies OHLCV history ordered oldest first.
type CandleProvider interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// BreakoutPredictor returns a nil prediction when it lacks enough real data.
type BreakoutPredictor interface {
	Predict(ctx context.Context, symbol string, history []Candle, level PriceLevel) (*BreakoutPrediction, error)
}

type CorrelationModel interface {
	Assess(ctx context.Context, symbol, interval string, history []Candle) (*BTCCorrelationRisk, error)
}

type MarketClassifier interface {
	Classify(history []Candle) (MarketContext, error)
}

// RecommendationRepository persists the leverage audit trail and skipped evaluations.
type RecommendationRepository interface {
	SaveRecommendation(ctx context.Context, rec *LeverageRecommendation) error
	ListRecommendations(ctx context.Context, symbol string, limit int) ([]*LeverageRecommendation, error)

	SaveSkipped(ctx context.Context, skipped *SkippedEvaluation) error
	ListSkipped(ctx context.Context, limit int) ([]*SkippedEvaluation, error)
}
