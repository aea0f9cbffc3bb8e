package domain

// BreakoutPrediction is the predictor output for a single level.
// Breakout and bounce probabilities must sum to 1 within 0.05.
type BreakoutPrediction struct {
	LevelID              string  `json:"level_id"`
	BreakoutProbability  float64 `json:"breakout_probability"`
	BounceProbability    float64 `json:"bounce_probability"`
	PredictionConfidence float64 `json:"prediction_confidence"`
	Samples              int     `json:"samples"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// BTCCorrelationRisk describes how a symbol is expected to behave under a BTC crash.
// PredictedDropPct is keyed by time horizon ("1h", "4h", "24h") and holds percent values.
type BTCCorrelationRisk struct {
	ReferenceSymbol     string             `json:"reference_symbol"`
	CorrelationStrength float64            `json:"correlation_strength"`
	Beta                float64            `json:"beta"`
	RiskLevel           RiskLevel          `json:"risk_level"`
	PredictedDropPct    map[string]float64 `json:"predicted_drop_pct"`
	LiquidationRisk     map[string]float64 `json:"liquidation_risk"`
}

// WorstDropPct returns the largest predicted drop across horizons.
func (r BTCCorrelationRisk) WorstDropPct() float64 {
	var worst float64
	for _, d := range r.PredictedDropPct {
		if d > worst {
			worst = d
		}
	}
	return worst
}
