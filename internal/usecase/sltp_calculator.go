package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

const (
	StrategyDefault      = "default"
	StrategyConservative = "conservative"
	StrategyAggressive   = "aggressive"
)

// StopLossTakeProfitCalculator converts levels into exit prices. Every
// implementation fails with insufficient data when there is no level on
// either side of price; none of them substitutes a fixed distance.
type StopLossTakeProfitCalculator interface {
	CalculateLevels(currentPrice, leverage float64, supports, resistances []domain.PriceLevel, market domain.MarketContext, direction domain.PositionDirection) (*domain.StopLossTakeProfitResult, error)
	Name() string
}

func NewStopLossTakeProfitCalculator(name string) (StopLossTakeProfitCalculator, error) {
	switch name {
	case "", StrategyDefault:
		return &DefaultSLTPStrategy{}, nil
	case StrategyConservative:
		return &ConservativeSLTPStrategy{}, nil
	case StrategyAggressive:
		return &AggressiveSLTPStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown sltp strategy %q", name)
	}
}

// exitAnchors holds the position-relative levels: stop anchors sit on the
// adverse side of price, targets on the favourable side, both nearest first.
type exitAnchors struct {
	price     float64
	leverage  float64
	direction domain.PositionDirection
	stops     []domain.PriceLevel
	targets   []domain.PriceLevel
	reasoning []string
}

func (a *exitAnchors) note(format string, args ...any) {
	a.reasoning = append(a.reasoning, fmt.Sprintf(format, args...))
}

func (a *exitAnchors) stopSide() string {
	if a.direction == domain.DirectionShort {
		return "resistance"
	}
	return "support"
}

func (a *exitAnchors) targetSide() string {
	if a.direction == domain.DirectionShort {
		return "support"
	}
	return "resistance"
}

func prepareAnchors(currentPrice, leverage float64, supports, resistances []domain.PriceLevel, direction domain.PositionDirection) (*exitAnchors, error) {
	if currentPrice <= 0 || math.IsNaN(currentPrice) {
		return nil, domain.NewInsufficientData("sltp", "current price %g is not positive", currentPrice)
	}
	if leverage < 1 || math.IsNaN(leverage) {
		return nil, &domain.OutOfRangeError{Field: "leverage", Value: leverage, Min: 1, Max: math.Inf(1)}
	}
	if direction == "" {
		direction = domain.DirectionLong
	}
	if direction != domain.DirectionLong && direction != domain.DirectionShort {
		return nil, fmt.Errorf("unknown position direction %q", direction)
	}

	var below, above []domain.PriceLevel
	for _, l := range supports {
		if err := domain.CheckRange("support.strength", l.Strength, 0, 1); err != nil {
			return nil, err
		}
		if l.Price > 0 && l.Price < currentPrice {
			below = append(below, l)
		}
	}
	for _, l := range resistances {
		if err := domain.CheckRange("resistance.strength", l.Strength, 0, 1); err != nil {
			return nil, err
		}
		if l.Price > currentPrice {
			above = append(above, l)
		}
	}
	if len(below) == 0 {
		return nil, domain.NewInsufficientData("sltp", "no support level below %g", currentPrice)
	}
	if len(above) == 0 {
		return nil, domain.NewInsufficientData("sltp", "no resistance level above %g", currentPrice)
	}
	sort.SliceStable(below, func(i, j int) bool { return below[i].Price > below[j].Price })
	sort.SliceStable(above, func(i, j int) bool { return above[i].Price < above[j].Price })

	a := &exitAnchors{price: currentPrice, leverage: leverage, direction: direction}
	if direction == domain.DirectionShort {
		a.stops, a.targets = above, below
	} else {
		a.stops, a.targets = below, above
	}
	return a, nil
}

// finish turns stop/target distances (fractions) into prices and the result record.
func (a *exitAnchors) finish(method string, stopDist, targetDist, confidence float64) (*domain.StopLossTakeProfitResult, error) {
	if a.direction == domain.DirectionShort && targetDist >= 1 {
		targetDist = a.targets[len(a.targets)-1].DistanceFraction(a.price)
		a.note("target capped at furthest support %.2f%%", targetDist*100)
	}
	if stopDist <= 0 || targetDist <= 0 {
		return nil, fmt.Errorf("%s strategy produced non-positive distance (stop %g, target %g)", method, stopDist, targetDist)
	}

	sl, tp := a.price*(1-stopDist), a.price*(1+targetDist)
	if a.direction == domain.DirectionShort {
		sl, tp = a.price*(1+stopDist), a.price*(1-targetDist)
	}

	slPct, tpPct := stopDist*100, targetDist*100
	rr := 1.0
	if slPct > 0 {
		rr = tpPct / slPct
	}
	a.note("risk/reward %.2f (%.2f%% / %.2f%%)", rr, tpPct, slPct)

	return &domain.StopLossTakeProfitResult{
		EntryPrice:            a.price,
		Direction:             a.direction,
		StopLossPrice:         roundPrice(sl, a.price),
		TakeProfitPrice:       roundPrice(tp, a.price),
		RiskRewardRatio:       rr,
		StopLossDistancePct:   slPct,
		TakeProfitDistancePct: tpPct,
		CalculationMethod:     method,
		ConfidenceLevel:       domain.ClampUnit(confidence),
		Reasoning:             a.reasoning,
	}, nil
}

// clampStop applies the strategy bounds and then the leverage loss cap.
func (a *exitAnchors) clampStop(dist, lo, hi, lossBudget float64) float64 {
	clamped := math.Min(math.Max(dist, lo), hi)
	if clamped != dist {
		a.note("stop clamped to [%.2f%%, %.2f%%]: %.2f%%", lo*100, hi*100, clamped*100)
	}
	limit := lossBudget / a.leverage
	if clamped > limit {
		a.note("stop capped by %.0f%% loss budget at %.2fx: %.2f%%", lossBudget*100, a.leverage, limit*100)
		clamped = limit
	}
	return clamped
}

// roundPrice keeps eight decimals, plus one more per order of magnitude the
// entry sits below 1, and never rounds an exit onto the entry itself.
func roundPrice(p, entry float64) float64 {
	places := int32(8)
	if entry > 0 {
		if exp := int32(math.Floor(math.Log10(entry))); exp < 0 {
			places -= exp
		}
	}
	rounded := decimal.NewFromFloat(p).Round(places).InexactFloat64()
	if (p < entry) != (rounded < entry) || rounded == entry {
		return p
	}
	return rounded
}

type DefaultSLTPStrategy struct{}

func (s *DefaultSLTPStrategy) Name() string { return StrategyDefault }

func (s *DefaultSLTPStrategy) CalculateLevels(currentPrice, leverage float64, supports, resistances []domain.PriceLevel, market domain.MarketContext, direction domain.PositionDirection) (*domain.StopLossTakeProfitResult, error) {
	a, err := prepareAnchors(currentPrice, leverage, supports, resistances, direction)
	if err != nil {
		return nil, err
	}
	stop, target := a.stops[0], a.targets[0]

	stopDist := stop.DistanceFraction(currentPrice)
	buffer := 0.005 + 0.01*(1-stop.Strength)
	a.note("nearest %s %.8g at %.2f%% (strength %.2f), buffer %.2f%%", a.stopSide(), stop.Price, stopDist*100, stop.Strength, buffer*100)
	stopDist = a.clampStop(stopDist+buffer, 0.01, 0.15, 0.10)

	targetDist := target.DistanceFraction(currentPrice)
	if market.Volatility > 0.03 {
		targetDist *= 1.1
		a.note("nearest %s %.8g, widened 10%% for volatility %.2f%%", a.targetSide(), target.Price, market.Volatility*100)
	} else {
		targetDist *= 0.9
		a.note("nearest %s %.8g, narrowed 10%% for volatility %.2f%%", a.targetSide(), target.Price, market.Volatility*100)
	}

	return a.finish(s.Name(), stopDist, targetDist, (stop.Strength+target.Strength)/2)
}

type ConservativeSLTPStrategy struct{}

func (s *ConservativeSLTPStrategy) Name() string { return StrategyConservative }

func (s *ConservativeSLTPStrategy) CalculateLevels(currentPrice, leverage float64, supports, resistances []domain.PriceLevel, market domain.MarketContext, direction domain.PositionDirection) (*domain.StopLossTakeProfitResult, error) {
	a, err := prepareAnchors(currentPrice, leverage, supports, resistances, direction)
	if err != nil {
		return nil, err
	}
	stop, target := a.stops[0], a.targets[0]

	stopDist := 0.5 * stop.DistanceFraction(currentPrice)
	a.note("stop at half the distance to %s %.8g: %.2f%%", a.stopSide(), stop.Price, stopDist*100)
	stopDist = a.clampStop(stopDist, 0.015, 0.08, 0.05)

	targetDist := 0.7 * target.DistanceFraction(currentPrice)
	a.note("target at 70%% of the distance to %s %.8g: %.2f%%", a.targetSide(), target.Price, targetDist*100)

	return a.finish(s.Name(), stopDist, targetDist, (stop.Strength+target.Strength)/2)
}

type AggressiveSLTPStrategy struct{}

func (s *AggressiveSLTPStrategy) Name() string { return StrategyAggressive }

func (s *AggressiveSLTPStrategy) CalculateLevels(currentPrice, leverage float64, supports, resistances []domain.PriceLevel, market domain.MarketContext, direction domain.PositionDirection) (*domain.StopLossTakeProfitResult, error) {
	a, err := prepareAnchors(currentPrice, leverage, supports, resistances, direction)
	if err != nil {
		return nil, err
	}

	anchor, strong := strongestAbove(a.stops, 0.6)
	var stopDist float64
	if strong {
		stopDist = anchor.DistanceFraction(currentPrice) + 0.03
		a.note("stop beyond strongest %s %.8g (strength %.2f) + 3%%", a.stopSide(), anchor.Price, anchor.Strength)
	} else {
		anchor = a.stops[0]
		stopDist = anchor.DistanceFraction(currentPrice) + 0.05
		a.note("no %s above 0.60 strength, nearest %.8g + 5%%", a.stopSide(), anchor.Price)
	}
	stopDist = a.clampStop(stopDist, 0.005, 0.25, 0.20)

	targetDist, target := s.target(a)
	if market.Volatility > 0.05 {
		targetDist *= 1.2
		a.note("target widened 20%% for volatility %.2f%%", market.Volatility*100)
	}

	return a.finish(s.Name(), stopDist, targetDist, (anchor.Strength+target.Strength)/2)
}

func (s *AggressiveSLTPStrategy) target(a *exitAnchors) (float64, domain.PriceLevel) {
	switch len(a.targets) {
	case 0:
		// Unreachable through CalculateLevels: prepareAnchors rejects an empty target side.
		a.note("no %s, flat 15%% target", a.targetSide())
		return 0.15, domain.PriceLevel{}
	case 1:
		t := a.targets[0]
		a.note("single %s %.8g, target 130%% of its distance", a.targetSide(), t.Price)
		return 1.3 * t.DistanceFraction(a.price), t
	default:
		t := a.targets[1]
		a.note("second %s %.8g as target", a.targetSide(), t.Price)
		return t.DistanceFraction(a.price), t
	}
}

// strongestAbove returns the highest-strength level above threshold; ties go to the nearer one.
func strongestAbove(levels []domain.PriceLevel, threshold float64) (domain.PriceLevel, bool) {
	var best domain.PriceLevel
	found := false
	for _, l := range levels {
		if l.Strength <= threshold {
			continue
		}
		if !found || l.Strength > best.Strength {
			best, found = l, true
		}
	}
	return best, found
}
