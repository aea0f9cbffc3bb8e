package usecase

import (
	"time"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

const DefaultFractalWindow = 5

// FractalPoint is a local extremum candidate. Index points back into the bar history.
type FractalPoint struct {
	Index int
	Time  time.Time
	Price float64
}

type FractalDetector struct {
	window int
}

func NewFractalDetector(window int) *FractalDetector {
	if window <= 0 {
		window = DefaultFractalWindow
	}
	return &FractalDetector{window: window}
}

func (d *FractalDetector) Window() int {
	return d.window
}

// Detect returns local maxima of High and local minima of Low. A bar qualifies
// only when it is strictly greater (or lower) than every other bar within
// ±window. Short input yields empty slices; callers enforce minimum history.
func (d *FractalDetector) Detect(history []domain.Candle) (highs, lows []FractalPoint) {
	w := d.window
	for i := w; i < len(history)-w; i++ {
		isHigh, isLow := true, true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if history[j].High >= history[i].High {
				isHigh = false
			}
			if history[j].Low <= history[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, FractalPoint{Index: i, Time: history[i].Timestamp(), Price: history[i].High})
		}
		if isLow {
			lows = append(lows, FractalPoint{Index: i, Time: history[i].Timestamp(), Price: history[i].Low})
		}
	}
	return highs, lows
}
