package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

const minCorrelationSamples = 10

// ReturnCorrelationModel measures how a symbol moves with the reference
// (BTC) and projects the configured crash scenarios onto it.
type ReturnCorrelationModel struct {
	candles domain.CandleProvider
	cfg     config.CorrelationConfig
}

func NewReturnCorrelationModel(candles domain.CandleProvider, cfg config.CorrelationConfig) *ReturnCorrelationModel {
	def := config.Default().Correlation
	if cfg.ReferenceSymbol == "" {
		cfg.ReferenceSymbol = def.ReferenceSymbol
	}
	if cfg.Window < minCorrelationSamples {
		cfg.Window = def.Window
	}
	if len(cfg.CrashScenariosPct) == 0 {
		cfg.CrashScenariosPct = def.CrashScenariosPct
	}
	if cfg.ReferenceLeverage < 1 {
		cfg.ReferenceLeverage = def.ReferenceLeverage
	}
	return &ReturnCorrelationModel{candles: candles, cfg: cfg}
}

func (m *ReturnCorrelationModel) Assess(ctx context.Context, symbol, interval string, history []domain.Candle) (*domain.BTCCorrelationRisk, error) {
	if strings.EqualFold(symbol, m.cfg.ReferenceSymbol) {
		return m.risk(1, 1), nil
	}

	reference, err := m.candles.GetCandles(ctx, m.cfg.ReferenceSymbol, interval, len(history))
	if err != nil {
		return nil, &domain.ProviderError{Provider: "correlation", Err: fmt.Errorf("failed to fetch %s candles: %w", m.cfg.ReferenceSymbol, err)}
	}

	xs, ys := alignedReturns(history, reference)
	if len(xs) > m.cfg.Window {
		xs, ys = xs[len(xs)-m.cfg.Window:], ys[len(ys)-m.cfg.Window:]
	}
	if len(xs) < minCorrelationSamples {
		return nil, domain.NewInsufficientData("correlation", "only %d aligned returns with %s", len(xs), m.cfg.ReferenceSymbol)
	}

	corr, beta := pearson(ys, xs)
	return m.risk(math.Abs(corr), beta), nil
}

func (m *ReturnCorrelationModel) risk(strength, beta float64) *domain.BTCCorrelationRisk {
	strength = domain.ClampUnit(strength)
	liquidationDistancePct := 100 / m.cfg.ReferenceLeverage

	r := &domain.BTCCorrelationRisk{
		ReferenceSymbol:     m.cfg.ReferenceSymbol,
		CorrelationStrength: strength,
		Beta:                beta,
		PredictedDropPct:    make(map[string]float64, len(m.cfg.CrashScenariosPct)),
		LiquidationRisk:     make(map[string]float64, len(m.cfg.CrashScenariosPct)),
	}
	for horizon, crash := range m.cfg.CrashScenariosPct {
		drop := math.Min(crash*math.Max(beta, 0), 100)
		r.PredictedDropPct[horizon] = drop
		r.LiquidationRisk[horizon] = domain.ClampUnit(drop / liquidationDistancePct)
	}
	r.RiskLevel = riskLevelFor(r.WorstDropPct())
	return r
}

func riskLevelFor(worstDropPct float64) domain.RiskLevel {
	switch {
	case worstDropPct < 5:
		return domain.RiskLow
	case worstDropPct < 10:
		return domain.RiskMedium
	case worstDropPct < 20:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// alignedReturns pairs log returns of both series on identical bar times.
// Returned as (reference, symbol).
func alignedReturns(symbol, reference []domain.Candle) ([]float64, []float64) {
	refClose := make(map[int64]float64, len(reference))
	for _, c := range reference {
		refClose[c.Time] = c.Close
	}

	var xs, ys []float64
	var prevRef, prevSym float64
	havePrev := false
	for _, c := range symbol {
		rc, ok := refClose[c.Time]
		if !ok || rc <= 0 || c.Close <= 0 {
			havePrev = false
			continue
		}
		if havePrev {
			xs = append(xs, math.Log(rc/prevRef))
			ys = append(ys, math.Log(c.Close/prevSym))
		}
		prevRef, prevSym, havePrev = rc, c.Close, true
	}
	return xs, ys
}

// pearson returns the correlation of ys with xs and the beta of ys on xs.
func pearson(ys, xs []float64) (corr, beta float64) {
	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, 0
	}
	return cov / math.Sqrt(vx*vy), cov / vx
}
