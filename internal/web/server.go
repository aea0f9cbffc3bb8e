package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/metrics"
	"github.com/vitos/level_leverage_guard/internal/usecase"
)

// Guard is the part of usecase.RecommendationService the HTTP layer uses.
type Guard interface {
	Evaluate(ctx context.Context, symbol string) (*domain.LeverageRecommendation, error)
	EvaluateBatch(ctx context.Context, symbols []string) domain.BatchResult
	DetectLevels(ctx context.Context, symbol string) (*usecase.LevelReport, error)
	Recommendations(ctx context.Context, symbol string, limit int) ([]*domain.LeverageRecommendation, error)
	Skipped(ctx context.Context, limit int) ([]*domain.SkippedEvaluation, error)
	SetEnhancementEnabled(enabled bool)
	EnhancementEnabled() bool
}

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	guard   Guard
	symbols []string
	logger  *zap.Logger
}

func NewServer(cfg config.ServerConfig, guard Guard, symbols []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:  http.NewServeMux(),
		guard:   guard,
		symbols: symbols,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Recommendations
	s.router.HandleFunc("GET /api/recommendation", s.handleRecommendation)
	s.router.HandleFunc("POST /api/evaluate", s.handleEvaluateBatch)

	// Levels
	s.router.HandleFunc("GET /api/levels", s.handleLevels)

	// Audit trail
	s.router.HandleFunc("GET /api/audit", s.handleAudit)
	s.router.HandleFunc("GET /api/skipped", s.handleSkipped)

	// Enhancement toggle
	s.router.HandleFunc("POST /api/enhancement", s.handleEnhancement)

	// Prometheus
	s.router.Handle("GET /metrics", metrics.Handler())
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
