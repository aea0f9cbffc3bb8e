package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

// Metrics receives evaluation outcomes. The prometheus recorder lives in
// infrastructure/metrics.
type Metrics interface {
	ObserveRecommendation(rec *domain.LeverageRecommendation, duration time.Duration)
	ObserveSkipped(kind domain.FailureKind)
	ObserveEnhancementFailures(enhancement string, count int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRecommendation(*domain.LeverageRecommendation, time.Duration) {}
func (noopMetrics) ObserveSkipped(domain.FailureKind)                                   {}
func (noopMetrics) ObserveEnhancementFailures(string, int)                              {}

// ServiceDeps are the collaborators of RecommendationService.
type ServiceDeps struct {
	Candles     domain.CandleProvider
	Classifier  domain.MarketClassifier
	Predictor   domain.BreakoutPredictor
	Correlation domain.CorrelationModel
	Repository  domain.RecommendationRepository
	Detectors   *DetectorCache
	Selector    *LevelSelector
	SLTP        StopLossTakeProfitCalculator
	Engine      *LeverageEngine
	Metrics     Metrics
}

type ServiceConfig struct {
	Interval         string
	CandleLimit      int
	Direction        domain.PositionDirection
	Workers          int
	PlanningLeverage float64
	Enhancement      bool
}

// RecommendationService runs the full pipeline for a symbol: candles, market
// context, levels, exits, prediction, correlation, leverage and audit.
type RecommendationService struct {
	deps        ServiceDeps
	cfg         ServiceConfig
	logger      *zap.Logger
	enhancement atomic.Bool
	timeNow     func() time.Time
}

func NewRecommendationService(deps ServiceDeps, cfg ServiceConfig, logger *zap.Logger) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if cfg.Direction == "" {
		cfg.Direction = domain.DirectionLong
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PlanningLeverage < 1 {
		cfg.PlanningLeverage = 1
	}
	s := &RecommendationService{
		deps:    deps,
		cfg:     cfg,
		logger:  logger,
		timeNow: func() time.Time { return time.Now().UTC() },
	}
	s.enhancement.Store(cfg.Enhancement)
	return s
}

// SetEnhancementEnabled flips enhancement on cached detectors and on every detector fetched later.
func (s *RecommendationService) SetEnhancementEnabled(enabled bool) {
	s.enhancement.Store(enabled)
	s.deps.Detectors.ForEach(func(d *LevelDetector) {
		d.SetEnhancementEnabled(enabled)
	})
	s.logger.Info("Level enhancement toggled", zap.Bool("enabled", enabled))
}

func (s *RecommendationService) EnhancementEnabled() bool {
	return s.enhancement.Load()
}

// LevelReport is the level view of one symbol without a leverage decision.
type LevelReport struct {
	Symbol      string                `json:"symbol"`
	Interval    string                `json:"interval"`
	Market      domain.MarketContext  `json:"market"`
	Levels      domain.CriticalLevels `json:"levels"`
	Provider    string                `json:"provider"`
	Enhancement string                `json:"enhancement,omitempty"`
}

func (s *RecommendationService) DetectLevels(ctx context.Context, symbol string) (*LevelReport, error) {
	report, _, err := s.levels(ctx, symbol)
	return report, err
}

func (s *RecommendationService) levels(ctx context.Context, symbol string, required ...domain.LevelType) (*LevelReport, []domain.Candle, error) {
	candles, err := s.deps.Candles.GetCandles(ctx, symbol, s.cfg.Interval, s.cfg.CandleLimit)
	if err != nil {
		return nil, nil, &domain.ProviderError{Provider: "candles", Err: err}
	}

	market, err := s.deps.Classifier.Classify(candles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to classify market: %w", err)
	}

	detector := s.deps.Detectors.Get(symbol, s.cfg.Interval)
	detector.SetEnhancementEnabled(s.enhancement.Load())

	detection, err := detector.Detect(candles, market.CurrentPrice)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect levels: %w", err)
	}
	if detection.EnhancementErr != nil {
		s.deps.Metrics.ObserveEnhancementFailures(detection.Enhancement, len(multierr.Errors(detection.EnhancementErr)))
	}

	critical, err := s.deps.Selector.Select(detection.Levels, market.CurrentPrice, detection.Enrichments, required...)
	if err != nil {
		return nil, nil, err
	}

	return &LevelReport{
		Symbol:      symbol,
		Interval:    s.cfg.Interval,
		Market:      market,
		Levels:      critical,
		Provider:    detection.Provider,
		Enhancement: detection.Enhancement,
	}, candles, nil
}

func (s *RecommendationService) Evaluate(ctx context.Context, symbol string) (*domain.LeverageRecommendation, error) {
	start := time.Now()

	report, candles, err := s.levels(ctx, symbol, domain.LevelSupport, domain.LevelResistance)
	if err != nil {
		return nil, err
	}
	price := report.Market.CurrentPrice

	sltp, err := s.deps.SLTP.CalculateLevels(price, s.cfg.PlanningLeverage,
		report.Levels.SupportLevels(), report.Levels.ResistanceLevels(), report.Market, s.cfg.Direction)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate exits: %w", err)
	}

	anchor, ok := nearestLevel(stopSideLevels(report.Levels, s.cfg.Direction), price)
	if !ok {
		return nil, domain.NewInsufficientData("evaluate", "no %s level for prediction", stopSideName(s.cfg.Direction))
	}
	prediction, err := s.deps.Predictor.Predict(ctx, symbol, candles, anchor)
	if err != nil {
		return nil, fmt.Errorf("failed to predict breakout: %w", err)
	}

	btcRisk, err := s.deps.Correlation.Assess(ctx, symbol, s.cfg.Interval, candles)
	if err != nil {
		return nil, fmt.Errorf("failed to assess BTC correlation: %w", err)
	}

	rec, err := s.deps.Engine.Decide(LeverageInput{
		CurrentPrice: price,
		Direction:    s.cfg.Direction,
		Levels:       report.Levels,
		SLTP:         sltp,
		Prediction:   prediction,
		BTCRisk:      btcRisk,
		Market:       report.Market,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decide leverage: %w", err)
	}
	rec.ID = uuid.NewString()
	rec.Symbol = symbol
	rec.Interval = s.cfg.Interval
	rec.CreatedAt = s.timeNow()

	if err := s.deps.Repository.SaveRecommendation(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save recommendation: %w", err)
	}
	s.deps.Metrics.ObserveRecommendation(rec, time.Since(start))

	s.logger.Info("Leverage recommendation",
		zap.String("symbol", symbol),
		zap.String("strategy", rec.Strategy),
		zap.Float64("leverage", rec.RecommendedLeverage),
		zap.Float64("max_safe", rec.MaxSafeLeverage),
		zap.Float64("stop_loss", rec.StopLossPrice),
		zap.Float64("take_profit", rec.TakeProfitPrice))
	return rec, nil
}

// EvaluateBatch evaluates symbols concurrently. A failing symbol is recorded
// as skipped and never affects the others; results keep the input order.
func (s *RecommendationService) EvaluateBatch(ctx context.Context, symbols []string) domain.BatchResult {
	recs := make([]*domain.LeverageRecommendation, len(symbols))
	skipped := make([]*domain.SkippedEvaluation, len(symbols))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, symbol := range symbols {
		g.Go(func() error {
			var err error
			if err = ctx.Err(); err == nil {
				recs[i], err = s.Evaluate(ctx, symbol)
			}
			if err != nil {
				skipped[i] = s.skip(ctx, symbol, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var result domain.BatchResult
	for i := range symbols {
		if recs[i] != nil {
			result.Recommendations = append(result.Recommendations, recs[i])
		}
		if skipped[i] != nil {
			result.Skipped = append(result.Skipped, *skipped[i])
		}
	}
	return result
}

func (s *RecommendationService) skip(ctx context.Context, symbol string, cause error) *domain.SkippedEvaluation {
	sk := &domain.SkippedEvaluation{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Kind:      domain.Classify(cause),
		Reason:    cause.Error(),
		CreatedAt: s.timeNow(),
	}
	s.deps.Metrics.ObserveSkipped(sk.Kind)
	s.logger.Warn("Evaluation skipped",
		zap.String("symbol", symbol),
		zap.String("kind", string(sk.Kind)),
		zap.Error(cause))

	if err := s.deps.Repository.SaveSkipped(context.WithoutCancel(ctx), sk); err != nil {
		s.logger.Error("Failed to save skipped evaluation", zap.String("symbol", symbol), zap.Error(err))
	}
	return sk
}

func (s *RecommendationService) Recommendations(ctx context.Context, symbol string, limit int) ([]*domain.LeverageRecommendation, error) {
	return s.deps.Repository.ListRecommendations(ctx, symbol, limit)
}

func (s *RecommendationService) Skipped(ctx context.Context, limit int) ([]*domain.SkippedEvaluation, error) {
	return s.deps.Repository.ListSkipped(ctx, limit)
}
