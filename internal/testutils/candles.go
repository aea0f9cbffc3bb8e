// Package testutils holds fixtures and in-memory fakes shared by package tests.
package testutils

import (
	"math"
	"time"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

// Start is the open time of the first fixture bar.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

// SineCandles builds hourly bars whose closes follow base + amp*sin(2πi/period).
// With n = k*period+1 the last close is exactly base and rising.
func SineCandles(n, period int, base, amp float64) []domain.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = base + amp*math.Sin(2*math.Pi*float64(i)/float64(period))
	}
	return CandlesFromCloses(closes)
}

// CandlesFromCloses builds hourly bars with a ±0.2% wick around each close.
func CandlesFromCloses(closes []float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			Time:   Start + int64(i)*3600,
			Open:   c,
			High:   c * 1.002,
			Low:    c * 0.998,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func GeometricCloses(n int, start, growth float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start * math.Pow(growth, float64(i))
	}
	return closes
}

// Level is a three-touch level spanning 48h from Start.
func Level(t domain.LevelType, price, strength, current float64) domain.PriceLevel {
	ts := time.Unix(Start, 0).UTC()
	return domain.NewPriceLevel(t, price, strength, 3, ts, ts.Add(48*time.Hour), 100, current)
}
