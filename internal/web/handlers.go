package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

const maxListLimit = 500

type errorResponse struct {
	Error string             `json:"error"`
	Kind  domain.FailureKind `json:"kind"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps the failure taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := domain.Classify(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.FailureInsufficientData, domain.FailureOutOfRange:
		status = http.StatusUnprocessableEntity
	case domain.FailureProvider:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return min(limit, maxListLimit), nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"symbols":     s.symbols,
		"enhancement": s.guard.EnhancementEnabled(),
	})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		s.badRequest(w, "symbol is required")
		return
	}

	rec, err := s.guard.Evaluate(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type evaluateRequest struct {
	Symbols []string `json:"symbols"`
}

// handleEvaluateBatch evaluates the posted symbols, or the configured ones when the body is empty.
func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, "invalid request body")
		return
	}

	symbols := s.symbols
	if len(req.Symbols) > 0 {
		symbols = make([]string, 0, len(req.Symbols))
		for _, sym := range req.Symbols {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	}
	if len(symbols) == 0 {
		s.badRequest(w, "no symbols to evaluate")
		return
	}

	s.writeJSON(w, http.StatusOK, s.guard.EvaluateBatch(r.Context(), symbols))
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		s.badRequest(w, "symbol is required")
		return
	}

	report, err := s.guard.DetectLevels(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	recs, err := s.guard.Recommendations(r.Context(), symbolParam(r), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*domain.LeverageRecommendation{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSkipped(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	skipped, err := s.guard.Skipped(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if skipped == nil {
		skipped = []*domain.SkippedEvaluation{}
	}
	s.writeJSON(w, http.StatusOK, skipped)
}

func (s *Server) handleEnhancement(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		s.badRequest(w, "enabled must be true or false")
		return
	}

	s.guard.SetEnhancementEnabled(enabled)
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.guard.EnhancementEnabled()})
}
