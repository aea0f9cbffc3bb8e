package usecase

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

var trendMultipliers = map[domain.TrendDirection]float64{
	domain.TrendStrongUp:   1.1,
	domain.TrendUp:         1.05,
	domain.TrendSideways:   1.0,
	domain.TrendChoppy:     0.9,
	domain.TrendDown:       0.85,
	domain.TrendStrongDown: 0.8,
}

var mirroredTrend = map[domain.TrendDirection]domain.TrendDirection{
	domain.TrendStrongUp:   domain.TrendStrongDown,
	domain.TrendUp:         domain.TrendDown,
	domain.TrendDown:       domain.TrendUp,
	domain.TrendStrongDown: domain.TrendStrongUp,
}

var riskLevelFactors = map[domain.RiskLevel]float64{
	domain.RiskLow:      1.0,
	domain.RiskMedium:   0.8,
	domain.RiskHigh:     0.6,
	domain.RiskCritical: 0.4,
}

// LeverageInput carries everything one leverage decision depends on.
type LeverageInput struct {
	CurrentPrice float64
	Direction    domain.PositionDirection
	Levels       domain.CriticalLevels
	SLTP         *domain.StopLossTakeProfitResult
	Prediction   *domain.BreakoutPrediction
	BTCRisk      *domain.BTCCorrelationRisk
	Market       domain.MarketContext
}

// LeverageEngine takes the minimum of five independent leverage constraints,
// adjusts it for trend and applies the safety margin. Out-of-range inputs
// are rejected before any constraint is computed.
type LeverageEngine struct {
	cfg config.LeverageConfig
}

func NewLeverageEngine(cfg config.LeverageConfig) *LeverageEngine {
	def := config.Default().Leverage
	if cfg.MaxLeverage < 1 {
		cfg.MaxLeverage = def.MaxLeverage
	}
	if cfg.MinRiskReward <= 0 {
		cfg.MinRiskReward = def.MinRiskReward
	}
	if cfg.ProbabilityTolerance <= 0 {
		cfg.ProbabilityTolerance = def.ProbabilityTolerance
	}
	return &LeverageEngine{cfg: cfg}
}

func (e *LeverageEngine) Decide(in LeverageInput) (*domain.LeverageRecommendation, error) {
	if in.Direction == "" {
		in.Direction = domain.DirectionLong
	}
	if err := e.validate(in); err != nil {
		return nil, err
	}

	anchor, ok := nearestLevel(stopSideLevels(in.Levels, in.Direction), in.CurrentPrice)
	if !ok {
		return nil, domain.NewInsufficientData("leverage", "no %s level to anchor the stop", stopSideName(in.Direction))
	}

	var reasoning []string
	note := func(format string, args ...any) {
		reasoning = append(reasoning, fmt.Sprintf(format, args...))
	}

	// The published stop may sit beyond the anchor; size against whichever
	// is further so a stop-out never loses more than MaxLossFraction.
	distance := anchor.DistanceFraction(in.CurrentPrice)
	stopDistance := in.SLTP.StopLossDistancePct / 100
	supportLev := e.ratio(e.cfg.MaxLossFraction, math.Max(distance, stopDistance))
	note("support distance %.2f%%, stop distance %.2f%% -> %.2fx", distance*100, stopDistance*100, supportLev)

	rrLev := e.cap(e.cfg.RiskRewardBase * in.SLTP.RiskRewardRatio / e.cfg.MinRiskReward)
	note("risk/reward %.2f (min %.2f) -> %.2fx", in.SLTP.RiskRewardRatio, e.cfg.MinRiskReward, rrLev)

	confidence := (in.Prediction.PredictionConfidence + in.Prediction.BounceProbability + anchor.Strength) / 3
	confidenceLev := e.cap(e.cfg.MaxLeverage * confidence)
	note("confidence %.2f (prediction %.2f, bounce %.2f, strength %.2f) -> %.2fx",
		confidence, in.Prediction.PredictionConfidence, in.Prediction.BounceProbability, anchor.Strength, confidenceLev)

	effectiveDrop := in.BTCRisk.WorstDropPct() / 100 * in.BTCRisk.CorrelationStrength
	btcLev := e.cap(e.ratio(e.cfg.MaxLossFraction, effectiveDrop) * riskLevelFactors[in.BTCRisk.RiskLevel])
	note("BTC crash drop %.2f%% at correlation %.2f, risk %s -> %.2fx",
		in.BTCRisk.WorstDropPct(), in.BTCRisk.CorrelationStrength, in.BTCRisk.RiskLevel, btcLev)

	volLev := e.ratio(e.cfg.VolatilityBudget, in.Market.Volatility)
	note("volatility %.2f%% -> %.2fx", in.Market.Volatility*100, volLev)

	trend := TrendMultiplier(in.Market.TrendDirection, in.Direction)
	breakdown := e.Combine([5]float64{supportLev, rrLev, confidenceLev, btcLev, volLev}, trend)
	note("min constraint %.2fx, trend %s x%.2f, safety margin %.0f%% -> %.2fx",
		breakdown.MinConstraintLeverage, in.Market.TrendDirection, trend, breakdown.SafetyMarginPct, breakdown.FinalLeverage)

	rec := &domain.LeverageRecommendation{
		Direction:           in.Direction,
		RecommendedLeverage: breakdown.FinalLeverage,
		MaxSafeLeverage:     e.roundFinal(e.clampLeverage(breakdown.MinConstraintLeverage), breakdown.MinConstraintLeverage),
		RiskRewardRatio:     in.SLTP.RiskRewardRatio,
		StopLossPrice:       in.SLTP.StopLossPrice,
		TakeProfitPrice:     in.SLTP.TakeProfitPrice,
		ConfidenceLevel:     domain.ClampUnit((in.SLTP.ConfidenceLevel + in.Prediction.PredictionConfidence) / 2),
		Strategy:            in.SLTP.CalculationMethod,
		Reasoning:           append(append([]string{}, in.SLTP.Reasoning...), reasoning...),
		MarketConditions:    in.Market,
		Breakdown:           breakdown,
	}
	return rec, nil
}

// Combine reduces the five constraints to the final leverage:
// min × trend × (1 − safety margin), never above the min constraint itself,
// clamped to [1, MaxLeverage] and rounded to two decimals.
func (e *LeverageEngine) Combine(constraints [5]float64, trendMultiplier float64) domain.LeverageConstraintBreakdown {
	minLev := constraints[0]
	for _, c := range constraints[1:] {
		minLev = math.Min(minLev, c)
	}

	final := minLev * trendMultiplier * (1 - e.cfg.SafetyMargin)
	final = math.Min(final, minLev)

	return domain.LeverageConstraintBreakdown{
		SupportDistanceLeverage: constraints[0],
		RiskRewardLeverage:      constraints[1],
		ConfidenceLeverage:      constraints[2],
		BTCCorrelationLeverage:  constraints[3],
		VolatilityLeverage:      constraints[4],
		TrendMultiplier:         trendMultiplier,
		MinConstraintLeverage:   minLev,
		SafetyMarginPct:         e.cfg.SafetyMargin * 100,
		FinalLeverage:           e.roundFinal(e.clampLeverage(final), minLev),
	}
}

// roundFinal rounds to two decimals without crossing above the min
// constraint when that constraint is itself at least the floor.
func (e *LeverageEngine) roundFinal(v, minLev float64) float64 {
	rounded := decimal.NewFromFloat(v).Round(2)
	if minLev >= 1 && rounded.InexactFloat64() > minLev+1e-9 {
		rounded = decimal.NewFromFloat(v).RoundFloor(2)
	}
	return rounded.InexactFloat64()
}

// TrendMultiplier rewards trading with the trend and punishes trading against it.
func TrendMultiplier(trend domain.TrendDirection, direction domain.PositionDirection) float64 {
	if direction == domain.DirectionShort {
		if m, ok := mirroredTrend[trend]; ok {
			trend = m
		}
	}
	if m, ok := trendMultipliers[trend]; ok {
		return m
	}
	return 1.0
}

func (e *LeverageEngine) validate(in LeverageInput) error {
	if in.CurrentPrice <= 0 || math.IsNaN(in.CurrentPrice) {
		return domain.NewInsufficientData("leverage", "current price %g is not positive", in.CurrentPrice)
	}
	for _, l := range in.Levels.SupportLevels() {
		if err := domain.CheckRange("support.strength", l.Strength, 0, 1); err != nil {
			return err
		}
	}
	for _, l := range in.Levels.ResistanceLevels() {
		if err := domain.CheckRange("resistance.strength", l.Strength, 0, 1); err != nil {
			return err
		}
	}

	if in.SLTP == nil {
		return domain.NewInsufficientData("leverage", "no stop-loss/take-profit result")
	}
	if err := domain.CheckRange("sltp.confidence", in.SLTP.ConfidenceLevel, 0, 1); err != nil {
		return err
	}
	if err := domain.CheckRange("sltp.stop_loss_distance_pct", in.SLTP.StopLossDistancePct, 0, 100); err != nil {
		return err
	}
	if err := domain.CheckRange("sltp.risk_reward", in.SLTP.RiskRewardRatio, math.SmallestNonzeroFloat64, math.MaxFloat64); err != nil {
		return err
	}

	p := in.Prediction
	if p == nil {
		return domain.NewInsufficientData("leverage", "no breakout prediction for the stop level")
	}
	if err := domain.CheckRange("prediction.breakout_probability", p.BreakoutProbability, 0, 1); err != nil {
		return err
	}
	if err := domain.CheckRange("prediction.bounce_probability", p.BounceProbability, 0, 1); err != nil {
		return err
	}
	if err := domain.CheckRange("prediction.confidence", p.PredictionConfidence, 0, 1); err != nil {
		return err
	}
	sum := p.BreakoutProbability + p.BounceProbability
	if err := domain.CheckRange("prediction.probability_sum", sum, 1-e.cfg.ProbabilityTolerance, 1+e.cfg.ProbabilityTolerance); err != nil {
		return err
	}

	r := in.BTCRisk
	if r == nil {
		return domain.NewInsufficientData("leverage", "no BTC correlation risk")
	}
	if err := domain.CheckRange("btc.correlation_strength", r.CorrelationStrength, 0, 1); err != nil {
		return err
	}
	if _, ok := riskLevelFactors[r.RiskLevel]; !ok {
		return fmt.Errorf("unknown BTC risk level %q", r.RiskLevel)
	}
	for _, horizon := range slices.Sorted(maps.Keys(r.PredictedDropPct)) {
		if err := domain.CheckRange("btc.predicted_drop_pct."+horizon, r.PredictedDropPct[horizon], 0, 100); err != nil {
			return err
		}
	}
	for _, horizon := range slices.Sorted(maps.Keys(r.LiquidationRisk)) {
		if err := domain.CheckRange("btc.liquidation_risk."+horizon, r.LiquidationRisk[horizon], 0, 1); err != nil {
			return err
		}
	}

	return domain.CheckRange("market.volatility", in.Market.Volatility, 0, math.MaxFloat64)
}

// ratio is budget/exposure capped at MaxLeverage; no exposure means no constraint.
func (e *LeverageEngine) ratio(budget, exposure float64) float64 {
	if exposure <= 0 {
		return e.cfg.MaxLeverage
	}
	return e.cap(budget / exposure)
}

func (e *LeverageEngine) cap(v float64) float64 {
	return math.Max(0, math.Min(v, e.cfg.MaxLeverage))
}

func (e *LeverageEngine) clampLeverage(v float64) float64 {
	return math.Min(math.Max(v, 1), e.cfg.MaxLeverage)
}

func stopSideLevels(levels domain.CriticalLevels, direction domain.PositionDirection) []domain.PriceLevel {
	if direction == domain.DirectionShort {
		return levels.ResistanceLevels()
	}
	return levels.SupportLevels()
}

func stopSideName(direction domain.PositionDirection) string {
	if direction == domain.DirectionShort {
		return "resistance"
	}
	return "support"
}

// nearestLevel returns the level closest to price.
func nearestLevel(levels []domain.PriceLevel, currentPrice float64) (domain.PriceLevel, bool) {
	var best domain.PriceLevel
	found := false
	for _, l := range levels {
		if !found || l.DistanceFraction(currentPrice) < best.DistanceFraction(currentPrice) {
			best, found = l, true
		}
	}
	return best, found
}
