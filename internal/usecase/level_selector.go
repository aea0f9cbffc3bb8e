package usecase

import (
	"math"
	"sort"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

// LevelSelector ranks filtered levels by importance and keeps the top
// PerSide on each side of price.
type LevelSelector struct {
	cfg       config.SelectionConfig
	evaluator *LevelEvaluator
}

func NewLevelSelector(cfg config.SelectionConfig) *LevelSelector {
	def := config.Default().Selection
	if cfg.PerSide <= 0 {
		cfg.PerSide = def.PerSide
	}
	if cfg.ProximityCap <= 0 {
		cfg.ProximityCap = def.ProximityCap
	}
	if cfg.StrengthWeight+cfg.ProximityWeight+cfg.MLWeight <= 0 {
		cfg.StrengthWeight, cfg.ProximityWeight, cfg.MLWeight = def.StrengthWeight, def.ProximityWeight, def.MLWeight
	}
	return &LevelSelector{cfg: cfg, evaluator: NewLevelEvaluator(cfg.MinDistance)}
}

// Importance combines strength, proximity and the ML bounce score. Without
// an enhanced enrichment the neutral default score is used.
func (s *LevelSelector) Importance(level domain.PriceLevel, currentPrice float64, enrichment *domain.LevelEnrichment) float64 {
	proximity := 1 - math.Min(level.DistanceFraction(currentPrice), s.cfg.ProximityCap)/s.cfg.ProximityCap

	ml := s.cfg.DefaultMLScore
	if enrichment != nil && enrichment.Enhanced {
		ml = enrichment.MLBounceProbability
	}

	return s.cfg.StrengthWeight*level.Strength +
		s.cfg.ProximityWeight*proximity +
		s.cfg.MLWeight*ml
}

// Select filters levels against currentPrice and returns the most important
// ones per side. A side listed in required that ends up empty is reported
// as insufficient data; an enhanced score outside [0,1] is rejected.
func (s *LevelSelector) Select(levels []domain.PriceLevel, currentPrice float64, enrichments map[string]domain.LevelEnrichment, required ...domain.LevelType) (domain.CriticalLevels, error) {
	result := domain.CriticalLevels{CurrentPrice: currentPrice}
	if currentPrice <= 0 {
		return result, domain.NewInsufficientData("selection", "current price %g is not positive", currentPrice)
	}

	var supports, resistances []domain.RankedLevel
	for _, l := range s.evaluator.Filter(levels, currentPrice) {
		var enrichment domain.LevelEnrichment
		if e, ok := enrichments[l.ID]; ok {
			enrichment = e
		}
		if enrichment.Enhanced {
			if err := domain.CheckRange("enrichment.ml_bounce_probability", enrichment.MLBounceProbability, 0, 1); err != nil {
				return result, err
			}
		}
		enrichment.LevelID = l.ID
		enrichment.ImportanceScore = s.Importance(l, currentPrice, &enrichment)

		ranked := domain.RankedLevel{Level: l, Enrichment: enrichment}
		if l.Type == domain.LevelSupport {
			supports = append(supports, ranked)
		} else {
			resistances = append(resistances, ranked)
		}
	}

	result.Supports = s.top(supports, currentPrice)
	result.Resistances = s.top(resistances, currentPrice)

	for _, side := range required {
		if side == domain.LevelSupport && len(result.Supports) == 0 {
			return result, domain.NewInsufficientData("selection", "no support below %g", currentPrice)
		}
		if side == domain.LevelResistance && len(result.Resistances) == 0 {
			return result, domain.NewInsufficientData("selection", "no resistance above %g", currentPrice)
		}
	}
	return result, nil
}

func (s *LevelSelector) top(ranked []domain.RankedLevel, currentPrice float64) []domain.RankedLevel {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Enrichment.ImportanceScore != b.Enrichment.ImportanceScore {
			return a.Enrichment.ImportanceScore > b.Enrichment.ImportanceScore
		}
		return a.Level.DistanceFraction(currentPrice) < b.Level.DistanceFraction(currentPrice)
	})
	if len(ranked) > s.cfg.PerSide {
		ranked = ranked[:s.cfg.PerSide]
	}
	return ranked
}
