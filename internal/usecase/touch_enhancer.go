package usecase

import (
	"errors"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
)

var errNoInteractions = errors.New("no completed interactions with level")

// TouchStatisticsEnhancer replays history against a level. An interaction is
// a bar whose wick comes within tolerance of the level after a bar that did
// not; it bounced when the close lookahead bars later is still on the level's side.
type TouchStatisticsEnhancer struct {
	tolerance float64
	lookahead int
}

func NewTouchStatisticsEnhancer(cfg config.EnhancementConfig) *TouchStatisticsEnhancer {
	def := config.Default().Enhancement
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = def.Lookahead
	}
	return &TouchStatisticsEnhancer{tolerance: cfg.Tolerance, lookahead: cfg.Lookahead}
}

func (e *TouchStatisticsEnhancer) EnhancementName() string { return "touch_statistics" }

func (e *TouchStatisticsEnhancer) DetectInteractions(history []domain.Candle, level domain.PriceLevel) ([]domain.LevelInteraction, error) {
	if level.Price <= 0 {
		return nil, domain.NewInsufficientData("enhancement", "level price %g is not positive", level.Price)
	}

	var out []domain.LevelInteraction
	prevTouched := false
	for i := 0; i+e.lookahead < len(history); i++ {
		bar := history[i]
		touched := e.touches(bar, level)
		if !touched || prevTouched {
			prevTouched = touched
			continue
		}
		prevTouched = true

		later := history[i+e.lookahead].Close
		bounced := later >= level.Price
		if level.Type == domain.LevelResistance {
			bounced = later <= level.Price
		}
		out = append(out, domain.LevelInteraction{
			Time:    bar.Timestamp(),
			Price:   bar.Close,
			Bounced: bounced,
		})
	}
	return out, nil
}

// PredictBounceProbability returns the Laplace-smoothed bounce rate.
func (e *TouchStatisticsEnhancer) PredictBounceProbability(level domain.PriceLevel, interactions []domain.LevelInteraction) (float64, error) {
	if len(interactions) == 0 {
		return 0, errNoInteractions
	}
	bounces := 0
	for _, in := range interactions {
		if in.Bounced {
			bounces++
		}
	}
	return float64(bounces+1) / float64(len(interactions)+2), nil
}

func (e *TouchStatisticsEnhancer) touches(bar domain.Candle, level domain.PriceLevel) bool {
	band := level.Price * e.tolerance
	return bar.Low <= level.Price+band && bar.High >= level.Price-band
}
