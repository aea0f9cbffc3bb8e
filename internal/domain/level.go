package domain

import (
	"fmt"
	"math"
	"time"
)

type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

// PriceLevel is a detected support or resistance level. Values are passed by
// copy and never mutated after detection; per-level extras live in LevelEnrichment.
type PriceLevel struct {
	ID                     string    `json:"id"`
	Price                  float64   `json:"price"`
	Strength               float64   `json:"strength"`
	TouchCount             int       `json:"touch_count"`
	Type                   LevelType `json:"type"`
	FirstTouch             time.Time `json:"first_touch"`
	LastTouch              time.Time `json:"last_touch"`
	VolumeAtLevel          float64   `json:"volume_at_level"`
	DistanceFromCurrentPct float64   `json:"distance_from_current_pct"`
}

// NewPriceLevel builds a level and clamps strength into [0, 1].
func NewPriceLevel(levelType LevelType, price, strength float64, touches int, first, last time.Time, volume, currentPrice float64) PriceLevel {
	if touches < 1 {
		touches = 1
	}
	if last.Before(first) {
		first, last = last, first
	}
	if volume < 0 || math.IsNaN(volume) {
		volume = 0
	}
	var distance float64
	if currentPrice > 0 {
		distance = (price - currentPrice) / currentPrice * 100
	}
	return PriceLevel{
		ID:                     LevelID(levelType, price),
		Price:                  price,
		Strength:               ClampUnit(strength),
		TouchCount:             touches,
		Type:                   levelType,
		FirstTouch:             first,
		LastTouch:              last,
		VolumeAtLevel:          volume,
		DistanceFromCurrentPct: distance,
	}
}

// WithStrength returns a copy carrying a new (clamped) strength.
func (l PriceLevel) WithStrength(strength float64) PriceLevel {
	l.Strength = ClampUnit(strength)
	return l
}

// DistanceFraction is the unsigned distance between the level and price as a fraction of price.
func (l PriceLevel) DistanceFraction(currentPrice float64) float64 {
	if currentPrice <= 0 {
		return 0
	}
	return math.Abs(l.Price-currentPrice) / currentPrice
}

func LevelID(levelType LevelType, price float64) string {
	return fmt.Sprintf("%s@%.8f", levelType, price)
}

// ClampUnit clamps v into [0, 1]; NaN maps to 0.
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LevelEnrichment holds optional per-level data produced by an enhancement
// provider and the selector, joined to a PriceLevel by ID.
type LevelEnrichment struct {
	LevelID             string  `json:"level_id"`
	MLBounceProbability float64 `json:"ml_bounce_probability"`
	Enhanced            bool    `json:"enhanced"`
	Interactions        int     `json:"interactions"`
	ImportanceScore     float64 `json:"importance_score"`
}

// LevelInteraction is one historical approach of price to a level.
type LevelInteraction struct {
	Time    time.Time `json:"time"`
	Price   float64   `json:"price"`
	Bounced bool      `json:"bounced"`
}

// RankedLevel pairs a level with its enrichment after selection.
type RankedLevel struct {
	Level      PriceLevel      `json:"level"`
	Enrichment LevelEnrichment `json:"enrichment"`
}

// CriticalLevels is the selector output, each side sorted by importance descending.
type CriticalLevels struct {
	CurrentPrice float64       `json:"current_price"`
	Supports     []RankedLevel `json:"supports"`
	Resistances  []RankedLevel `json:"resistances"`
}

func (c CriticalLevels) SupportLevels() []PriceLevel {
	return levelsOf(c.Supports)
}

func (c CriticalLevels) ResistanceLevels() []PriceLevel {
	return levelsOf(c.Resistances)
}

func levelsOf(ranked []RankedLevel) []PriceLevel {
	out := make([]PriceLevel, len(ranked))
	for i, r := range ranked {
		out[i] = r.Level
	}
	return out
}
