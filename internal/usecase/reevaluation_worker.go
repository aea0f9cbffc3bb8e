package usecase

import (
	"context"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

// BatchEvaluator is the part of RecommendationService the worker drives.
type BatchEvaluator interface {
	EvaluateBatch(ctx context.Context, symbols []string) domain.BatchResult
}

// ReevaluationWorker decouples candle-close events from evaluation. Enqueue
// never blocks; symbols queued while a batch runs are coalesced into the next one.
type ReevaluationWorker struct {
	evaluator BatchEvaluator
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	wake    chan struct{}
}

func NewReevaluationWorker(evaluator BatchEvaluator, logger *zap.Logger) *ReevaluationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReevaluationWorker{
		evaluator: evaluator,
		logger:    logger,
		pending:   make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
	}
}

func (w *ReevaluationWorker) Enqueue(symbol string) {
	w.mu.Lock()
	w.pending[symbol] = struct{}{}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending returns the queued symbols in sorted order.
func (w *ReevaluationWorker) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.pending))
}

func (w *ReevaluationWorker) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	symbols := slices.Sorted(maps.Keys(w.pending))
	clear(w.pending)
	return symbols
}

// Run evaluates queued symbols until ctx is cancelled.
func (w *ReevaluationWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		symbols := w.drain()
		if len(symbols) == 0 {
			continue
		}
		result := w.evaluator.EvaluateBatch(ctx, symbols)
		w.logger.Info("Re-evaluated on candle close",
			zap.Strings("symbols", symbols),
			zap.Int("recommendations", len(result.Recommendations)),
			zap.Int("skipped", len(result.Skipped)))
	}
}
