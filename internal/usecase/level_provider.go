package usecase

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

// RawLevel is what a base provider hands back before the detector turns it
// into a PriceLevel relative to the current price.
type RawLevel struct {
	Type          domain.LevelType
	Price         float64
	Strength      float64
	TouchCount    int
	FirstTouch    time.Time
	LastTouch     time.Time
	VolumeAtLevel float64
}

// BaseLevelProvider finds support and resistance from bar history alone.
type BaseLevelProvider interface {
	DetectBasicLevels(history []domain.Candle, minTouches int) ([]RawLevel, error)
	ProviderName() string
	ProviderVersion() string
}

// EnhancementProvider adds interaction history and a bounce probability to
// already detected levels.
type EnhancementProvider interface {
	DetectInteractions(history []domain.Candle, level domain.PriceLevel) ([]domain.LevelInteraction, error)
	PredictBounceProbability(level domain.PriceLevel, interactions []domain.LevelInteraction) (float64, error)
	EnhancementName() string
}

// FractalLevelProvider is the default base provider: fractal extrema,
// clustered by price and scored.
type FractalLevelProvider struct {
	detector  *FractalDetector
	clusterer *LevelClusterer
	scorer    *LevelScorer
}

func NewFractalLevelProvider(cfg config.DetectionConfig) *FractalLevelProvider {
	return &FractalLevelProvider{
		detector:  NewFractalDetector(cfg.Window),
		clusterer: NewLevelClusterer(cfg.ClusterTolerance),
		scorer:    NewLevelScorer(cfg.Weights, cfg.Window, cfg.VolumeLookback),
	}
}

func (p *FractalLevelProvider) ProviderName() string    { return "fractal" }
func (p *FractalLevelProvider) ProviderVersion() string { return "1.0" }

func (p *FractalLevelProvider) DetectBasicLevels(history []domain.Candle, minTouches int) ([]RawLevel, error) {
	if minTouches < 1 {
		minTouches = 1
	}
	highs, lows := p.detector.Detect(history)

	var levels []RawLevel
	levels = append(levels, p.fromClusters(history, lows, domain.LevelSupport, minTouches)...)
	levels = append(levels, p.fromClusters(history, highs, domain.LevelResistance, minTouches)...)
	return levels, nil
}

func (p *FractalLevelProvider) fromClusters(history []domain.Candle, points []FractalPoint, levelType domain.LevelType, minTouches int) []RawLevel {
	var out []RawLevel
	for _, cluster := range p.clusterer.Cluster(points) {
		if len(cluster.Points) < minTouches {
			continue
		}
		score := p.scorer.Score(history, cluster)
		first, last := cluster.Span()

		var volume float64
		for _, pt := range cluster.Points {
			volume += history[pt.Index].Volume
		}

		out = append(out, RawLevel{
			Type:          levelType,
			Price:         score.MeanPrice,
			Strength:      score.Strength,
			TouchCount:    score.TouchCount,
			FirstTouch:    first,
			LastTouch:     last,
			VolumeAtLevel: volume,
		})
	}
	return out
}

// DetectionResult is one detector run. EnhancementErr collects per-level
// enhancement failures; affected levels keep their base values.
type DetectionResult struct {
	Levels         []domain.PriceLevel
	Enrichments    map[string]domain.LevelEnrichment
	Provider       string
	Enhancement    string
	EnhancementErr error
}

// LevelDetector wraps exactly one base provider and at most one enhancement
// provider. Enhancement can be toggled at runtime and is safe to flip while
// Detect runs on other goroutines.
type LevelDetector struct {
	base       BaseLevelProvider
	enhancer   EnhancementProvider
	enabled    atomic.Bool
	minBars    int
	minTouches int
	blend      float64
	logger     *zap.Logger
}

func NewLevelDetector(base BaseLevelProvider, enhancer EnhancementProvider, detection config.DetectionConfig, enhancement config.EnhancementConfig, logger *zap.Logger) *LevelDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &LevelDetector{
		base:       base,
		enhancer:   enhancer,
		minBars:    detection.MinBars,
		minTouches: detection.MinTouches,
		blend:      domain.ClampUnit(enhancement.StrengthBlend),
		logger:     logger,
	}
	if d.minBars <= 0 {
		d.minBars = config.Default().Detection.MinBars
	}
	d.enabled.Store(enhancement.Enabled && enhancer != nil)
	return d
}

// SetEnhancementEnabled has no effect without a registered enhancement provider.
func (d *LevelDetector) SetEnhancementEnabled(enabled bool) {
	d.enabled.Store(enabled && d.enhancer != nil)
}

func (d *LevelDetector) EnhancementEnabled() bool {
	return d.enabled.Load()
}

func (d *LevelDetector) Detect(history []domain.Candle, currentPrice float64) (*DetectionResult, error) {
	if len(history) < d.minBars {
		return nil, domain.NewInsufficientData("detection", "need %d bars, got %d", d.minBars, len(history))
	}

	raw, err := d.base.DetectBasicLevels(history, d.minTouches)
	if err != nil {
		return nil, &domain.ProviderError{Provider: d.base.ProviderName(), Err: err}
	}

	result := &DetectionResult{
		Levels:      make([]domain.PriceLevel, 0, len(raw)),
		Enrichments: make(map[string]domain.LevelEnrichment),
		Provider:    fmt.Sprintf("%s/%s", d.base.ProviderName(), d.base.ProviderVersion()),
	}
	for _, r := range raw {
		result.Levels = append(result.Levels, domain.NewPriceLevel(r.Type, r.Price, r.Strength, r.TouchCount, r.FirstTouch, r.LastTouch, r.VolumeAtLevel, currentPrice))
	}

	if !d.enabled.Load() {
		return result, nil
	}

	result.Enhancement = d.enhancer.EnhancementName()
	for i, level := range result.Levels {
		enriched, enrichment, err := d.enhance(history, level)
		if err != nil {
			result.EnhancementErr = multierr.Append(result.EnhancementErr, err)
			continue
		}
		result.Levels[i] = enriched
		result.Enrichments[enriched.ID] = enrichment
	}

	if result.EnhancementErr != nil {
		d.logger.Debug("Level enhancement partially failed",
			zap.String("provider", result.Enhancement),
			zap.Int("failures", len(multierr.Errors(result.EnhancementErr))),
			zap.Error(result.EnhancementErr))
	}
	return result, nil
}

func (d *LevelDetector) enhance(history []domain.Candle, level domain.PriceLevel) (domain.PriceLevel, domain.LevelEnrichment, error) {
	name := d.enhancer.EnhancementName()

	interactions, err := d.enhancer.DetectInteractions(history, level)
	if err != nil {
		return level, domain.LevelEnrichment{}, fmt.Errorf("level %s: %w", level.ID, &domain.ProviderError{Provider: name, Err: err})
	}
	probability, err := d.enhancer.PredictBounceProbability(level, interactions)
	if err != nil {
		return level, domain.LevelEnrichment{}, fmt.Errorf("level %s: %w", level.ID, &domain.ProviderError{Provider: name, Err: err})
	}
	if err := domain.CheckRange("enhancement.bounce_probability", probability, 0, 1); err != nil {
		return level, domain.LevelEnrichment{}, fmt.Errorf("level %s: %w", level.ID, &domain.ProviderError{Provider: name, Err: err})
	}

	enriched := level.WithStrength((1-d.blend)*level.Strength + d.blend*probability)
	return enriched, domain.LevelEnrichment{
		LevelID:             enriched.ID,
		MLBounceProbability: probability,
		Enhanced:            true,
		Interactions:        len(interactions),
	}, nil
}
