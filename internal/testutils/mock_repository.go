package testutils

import (
	"context"
	"sync"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

// MockRepository keeps the audit trail in memory. Read Recs and Skipped
// only after the code under test has returned.
type MockRepository struct {
	mu      sync.Mutex
	Recs    []*domain.LeverageRecommendation
	Skipped []*domain.SkippedEvaluation
}

func (m *MockRepository) SaveRecommendation(ctx context.Context, rec *domain.LeverageRecommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Recs = append(m.Recs, rec)
	return nil
}

func (m *MockRepository) ListRecommendations(ctx context.Context, symbol string, limit int) ([]*domain.LeverageRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Recs, nil
}

func (m *MockRepository) SaveSkipped(ctx context.Context, skipped *domain.SkippedEvaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Skipped = append(m.Skipped, skipped)
	return nil
}

func (m *MockRepository) ListSkipped(ctx context.Context, limit int) ([]*domain.SkippedEvaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Skipped, nil
}
