package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

// BuildRecommendationService wires the default collaborators from cfg around
// the given candle source and audit repository.
func BuildRecommendationService(cfg config.Config, candles domain.CandleProvider, repo domain.RecommendationRepository, metrics Metrics, logger *zap.Logger) (*RecommendationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	enhancer := NewTouchStatisticsEnhancer(cfg.Enhancement)
	detectors, err := NewDetectorCache(cfg.Cache.Size, func(symbol, interval string) *LevelDetector {
		return NewLevelDetector(
			NewFractalLevelProvider(cfg.Detection),
			enhancer,
			cfg.Detection,
			cfg.Enhancement,
			logger.With(zap.String("symbol", symbol), zap.String("interval", interval)),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create detector cache: %w", err)
	}

	sltp, err := NewStopLossTakeProfitCalculator(cfg.SLTP.Strategy)
	if err != nil {
		return nil, err
	}

	return NewRecommendationService(ServiceDeps{
		Candles:     candles,
		Classifier:  NewCandleMarketClassifier(cfg.Market),
		Predictor:   NewInteractionPredictor(enhancer, cfg.Enhancement.MinSamples),
		Correlation: NewReturnCorrelationModel(candles, cfg.Correlation),
		Repository:  repo,
		Detectors:   detectors,
		Selector:    NewLevelSelector(cfg.Selection),
		SLTP:        sltp,
		Engine:      NewLeverageEngine(cfg.Leverage),
		Metrics:     metrics,
	}, ServiceConfig{
		Interval:         cfg.Interval,
		CandleLimit:      cfg.CandleLimit,
		Direction:        domain.PositionDirection(cfg.Direction),
		Workers:          cfg.Scheduler.Workers,
		PlanningLeverage: cfg.Leverage.PlanningLeverage,
		Enhancement:      cfg.Enhancement.Enabled,
	}, logger), nil
}
