package usecase

import (
	"math"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

// CandleMarketClassifier derives volatility, trend and phase from closes.
type CandleMarketClassifier struct {
	volWindow int
	fast      int
	slow      int
}

func NewCandleMarketClassifier(cfg config.MarketConfig) *CandleMarketClassifier {
	def := config.Default().Market
	if cfg.VolatilityWindow < 2 {
		cfg.VolatilityWindow = def.VolatilityWindow
	}
	if cfg.FastEMA <= 0 || cfg.SlowEMA <= cfg.FastEMA {
		cfg.FastEMA, cfg.SlowEMA = def.FastEMA, def.SlowEMA
	}
	return &CandleMarketClassifier{volWindow: cfg.VolatilityWindow, fast: cfg.FastEMA, slow: cfg.SlowEMA}
}

func (c *CandleMarketClassifier) Classify(history []domain.Candle) (domain.MarketContext, error) {
	need := max(c.slow, c.volWindow) + 1
	if len(history) < need {
		return domain.MarketContext{}, domain.NewInsufficientData("market", "need %d bars, got %d", need, len(history))
	}

	closes := make([]float64, len(history))
	for i, bar := range history {
		if bar.Close <= 0 {
			return domain.MarketContext{}, domain.NewInsufficientData("market", "non-positive close at bar %d", i)
		}
		closes[i] = bar.Close
	}
	price := closes[len(closes)-1]

	fast := ema(closes, c.fast)
	slow := ema(closes, c.slow)
	spread := (fast - slow) / slow
	er := efficiencyRatio(closes[len(closes)-c.slow-1:])

	trend := classifyTrend(spread, er)
	return domain.MarketContext{
		CurrentPrice:   price,
		Volatility:     stdev(logReturns(closes[len(closes)-c.volWindow-1:])),
		TrendDirection: trend,
		TrendStrength:  domain.ClampUnit(er),
		MarketPhase:    classifyPhase(trend, price, slow),
	}, nil
}

func classifyTrend(spread, er float64) domain.TrendDirection {
	switch {
	case er < 0.2:
		return domain.TrendChoppy
	case math.Abs(spread) < 0.002:
		return domain.TrendSideways
	case spread > 0.02 && er > 0.5:
		return domain.TrendStrongUp
	case spread > 0:
		return domain.TrendUp
	case spread < -0.02 && er > 0.5:
		return domain.TrendStrongDown
	default:
		return domain.TrendDown
	}
}

func classifyPhase(trend domain.TrendDirection, price, slow float64) domain.MarketPhase {
	switch trend {
	case domain.TrendStrongUp, domain.TrendUp:
		return domain.PhaseMarkup
	case domain.TrendStrongDown, domain.TrendDown:
		return domain.PhaseMarkdown
	}
	if price >= slow {
		return domain.PhaseDistribution
	}
	return domain.PhaseAccumulation
}

func ema(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	k := 2.0 / float64(period+1)
	out := values[0]
	for _, v := range values[1:] {
		out = v*k + out*(1-k)
	}
	return out
}

// efficiencyRatio is net move over path length; 1 is a straight line.
func efficiencyRatio(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var path float64
	for i := 1; i < len(values); i++ {
		path += math.Abs(values[i] - values[i-1])
	}
	if path == 0 {
		return 0
	}
	return math.Abs(values[len(values)-1]-values[0]) / path
}

func logReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || values[i] <= 0 {
			continue
		}
		out = append(out, math.Log(values[i]/values[i-1]))
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
