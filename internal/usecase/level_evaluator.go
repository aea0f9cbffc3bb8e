package usecase

import "github.com/vitos/level_leverage_guard/internal/domain"

const DefaultMinDistance = 0.005

// LevelEvaluator decides which side of the market a level guards and drops
// levels that are on the wrong side of price or too close to act on.
type LevelEvaluator struct {
	minDistance float64
}

func NewLevelEvaluator(minDistance float64) *LevelEvaluator {
	if minDistance < 0 {
		minDistance = DefaultMinDistance
	}
	return &LevelEvaluator{minDistance: minDistance}
}

// DetermineSide returns LevelSupport when price is above the level and
// LevelResistance when below. Exact match has no side.
func (e *LevelEvaluator) DetermineSide(levelPrice, currentPrice float64) domain.LevelType {
	if currentPrice > levelPrice {
		return domain.LevelSupport
	}
	if currentPrice < levelPrice {
		return domain.LevelResistance
	}
	return ""
}

// Filter keeps supports strictly below and resistances strictly above price,
// at least minDistance (fraction) away. Input order is preserved.
func (e *LevelEvaluator) Filter(levels []domain.PriceLevel, currentPrice float64) []domain.PriceLevel {
	if currentPrice <= 0 {
		return nil
	}
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, l := range levels {
		if e.DetermineSide(l.Price, currentPrice) != l.Type {
			continue
		}
		if l.DistanceFraction(currentPrice) < e.minDistance {
			continue
		}
		out = append(out, l)
	}
	return out
}
