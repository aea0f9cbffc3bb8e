package domain

type TrendDirection string

const (
	TrendStrongUp   TrendDirection = "strong_uptrend"
	TrendUp         TrendDirection = "uptrend"
	TrendSideways   TrendDirection = "sideways"
	TrendChoppy     TrendDirection = "choppy"
	TrendDown       TrendDirection = "downtrend"
	TrendStrongDown TrendDirection = "strong_downtrend"
)

type MarketPhase string

const (
	PhaseAccumulation MarketPhase = "accumulation"
	PhaseMarkup       MarketPhase = "markup"
	PhaseDistribution MarketPhase = "distribution"
	PhaseMarkdown     MarketPhase = "markdown"
)

// MarketContext is the classifier output consumed by SL/TP strategies and the leverage engine.
type MarketContext struct {
	CurrentPrice   float64        `json:"current_price"`
	Volatility     float64        `json:"volatility"` // stdev of log returns, fraction of price
	TrendDirection TrendDirection `json:"trend_direction"`
	TrendStrength  float64        `json:"trend_strength"`
	MarketPhase    MarketPhase    `json:"market_phase"`
}

type PositionDirection string

const (
	DirectionLong  PositionDirection = "long"
	DirectionShort PositionDirection = "short"
)
