package domain

import "time"

// StopLossTakeProfitResult is produced by one SL/TP strategy call. Reasoning is append-only.
type StopLossTakeProfitResult struct {
	EntryPrice            float64           `json:"entry_price"`
	Direction             PositionDirection `json:"direction"`
	StopLossPrice         float64           `json:"stop_loss_price"`
	TakeProfitPrice       float64           `json:"take_profit_price"`
	RiskRewardRatio       float64           `json:"risk_reward_ratio"`
	StopLossDistancePct   float64           `json:"stop_loss_distance_pct"`
	TakeProfitDistancePct float64           `json:"take_profit_distance_pct"`
	CalculationMethod     string            `json:"calculation_method"`
	ConfidenceLevel       float64           `json:"confidence_level"`
	Reasoning             []string          `json:"reasoning"`
}

// LeverageConstraintBreakdown is the audit trail of one leverage decision.
type LeverageConstraintBreakdown struct {
	SupportDistanceLeverage float64 `json:"support_distance_leverage"`
	RiskRewardLeverage      float64 `json:"risk_reward_leverage"`
	ConfidenceLeverage      float64 `json:"confidence_leverage"`
	BTCCorrelationLeverage  float64 `json:"btc_correlation_leverage"`
	VolatilityLeverage      float64 `json:"volatility_leverage"`
	TrendMultiplier         float64 `json:"trend_multiplier"`
	MinConstraintLeverage   float64 `json:"min_constraint_leverage"`
	SafetyMarginPct         float64 `json:"safety_margin_pct"`
	FinalLeverage           float64 `json:"final_leverage"`
}

// Constraints returns the five constraint values in a fixed order.
func (b LeverageConstraintBreakdown) Constraints() []float64 {
	return []float64{
		b.SupportDistanceLeverage,
		b.RiskRewardLeverage,
		b.ConfidenceLeverage,
		b.BTCCorrelationLeverage,
		b.VolatilityLeverage,
	}
}

type LeverageRecommendation struct {
	ID                  string                      `json:"id"`
	Symbol              string                      `json:"symbol"`
	Interval            string                      `json:"interval"`
	Direction           PositionDirection           `json:"direction"`
	RecommendedLeverage float64                     `json:"recommended_leverage"`
	MaxSafeLeverage     float64                     `json:"max_safe_leverage"`
	RiskRewardRatio     float64                     `json:"risk_reward_ratio"`
	StopLossPrice       float64                     `json:"stop_loss_price"`
	TakeProfitPrice     float64                     `json:"take_profit_price"`
	ConfidenceLevel     float64                     `json:"confidence_level"`
	Strategy            string                      `json:"strategy"`
	Reasoning           []string                    `json:"reasoning"`
	MarketConditions    MarketContext               `json:"market_conditions"`
	Breakdown           LeverageConstraintBreakdown `json:"breakdown"`
	CreatedAt           time.Time                   `json:"created_at"`
}

// SkippedEvaluation records a symbol whose evaluation failed inside a batch.
type SkippedEvaluation struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Kind      FailureKind `json:"kind"`
	Reason    string      `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
}

type BatchResult struct {
	Recommendations []*LeverageRecommendation `json:"recommendations"`
	Skipped         []SkippedEvaluation       `json:"skipped"`
}
