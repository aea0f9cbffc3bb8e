package testutils

import (
	"context"
	"errors"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

// MockCandleProvider serves fixed candles per symbol.
type MockCandleProvider struct {
	Candles map[string][]domain.Candle
	Err     map[string]error
}

func (m *MockCandleProvider) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if err := m.Err[symbol]; err != nil {
		return nil, err
	}
	candles, ok := m.Candles[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}
