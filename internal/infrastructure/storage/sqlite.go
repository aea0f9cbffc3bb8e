package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vitos/level_leverage_guard/internal/domain"
)

const defaultListLimit = 50

// SQLiteStore keeps the leverage audit trail: one row per decision with every
// constraint value, plus the skipped evaluations of batch runs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// Batch workers write concurrently; a single connection also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS leverage_audit (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			direction TEXT NOT NULL,
			strategy TEXT NOT NULL,
			current_price REAL NOT NULL,
			volatility REAL NOT NULL,
			trend_direction TEXT NOT NULL,
			trend_strength REAL NOT NULL,
			market_phase TEXT NOT NULL,
			support_leverage REAL NOT NULL,
			risk_reward_leverage REAL NOT NULL,
			confidence_leverage REAL NOT NULL,
			btc_leverage REAL NOT NULL,
			volatility_leverage REAL NOT NULL,
			trend_multiplier REAL NOT NULL,
			min_constraint_leverage REAL NOT NULL,
			safety_margin_pct REAL NOT NULL,
			final_leverage REAL NOT NULL,
			max_safe_leverage REAL NOT NULL,
			stop_loss_price REAL NOT NULL,
			take_profit_price REAL NOT NULL,
			risk_reward_ratio REAL NOT NULL,
			confidence_level REAL NOT NULL,
			reasoning TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leverage_audit_symbol_created ON leverage_audit(symbol, created_at);`,
		`CREATE TABLE IF NOT EXISTS skipped_evaluations (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			kind TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_skipped_created ON skipped_evaluations(created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// RecommendationRepository Implementation

func (s *SQLiteStore) SaveRecommendation(ctx context.Context, rec *domain.LeverageRecommendation) error {
	reasoning, err := json.Marshal(rec.Reasoning)
	if err != nil {
		return fmt.Errorf("failed to encode reasoning: %w", err)
	}

	b, m := rec.Breakdown, rec.MarketConditions
	query := `INSERT INTO leverage_audit (id, symbol, interval, direction, strategy, current_price, volatility, trend_direction, trend_strength, market_phase,
				support_leverage, risk_reward_leverage, confidence_leverage, btc_leverage, volatility_leverage, trend_multiplier, min_constraint_leverage,
				safety_margin_pct, final_leverage, max_safe_leverage, stop_loss_price, take_profit_price, risk_reward_ratio, confidence_level, reasoning, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Symbol, rec.Interval, rec.Direction, rec.Strategy, m.CurrentPrice, m.Volatility, m.TrendDirection, m.TrendStrength, m.MarketPhase,
		b.SupportDistanceLeverage, b.RiskRewardLeverage, b.ConfidenceLeverage, b.BTCCorrelationLeverage, b.VolatilityLeverage, b.TrendMultiplier, b.MinConstraintLeverage,
		b.SafetyMarginPct, b.FinalLeverage, rec.MaxSafeLeverage, rec.StopLossPrice, rec.TakeProfitPrice, rec.RiskRewardRatio, rec.ConfidenceLevel, string(reasoning), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}
	return nil
}

// ListRecommendations returns the newest rows first. An empty symbol lists all symbols.
func (s *SQLiteStore) ListRecommendations(ctx context.Context, symbol string, limit int) ([]*domain.LeverageRecommendation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT id, symbol, interval, direction, strategy, current_price, volatility, trend_direction, trend_strength, market_phase,
				support_leverage, risk_reward_leverage, confidence_leverage, btc_leverage, volatility_leverage, trend_multiplier, min_constraint_leverage,
				safety_margin_pct, final_leverage, max_safe_leverage, stop_loss_price, take_profit_price, risk_reward_ratio, confidence_level, reasoning, created_at
			  FROM leverage_audit WHERE (? = '' OR symbol = ?) ORDER BY created_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.LeverageRecommendation
	for rows.Next() {
		var (
			r         domain.LeverageRecommendation
			reasoning string
		)
		b, m := &r.Breakdown, &r.MarketConditions
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Interval, &r.Direction, &r.Strategy, &m.CurrentPrice, &m.Volatility, &m.TrendDirection, &m.TrendStrength, &m.MarketPhase,
			&b.SupportDistanceLeverage, &b.RiskRewardLeverage, &b.ConfidenceLeverage, &b.BTCCorrelationLeverage, &b.VolatilityLeverage, &b.TrendMultiplier, &b.MinConstraintLeverage,
			&b.SafetyMarginPct, &b.FinalLeverage, &r.MaxSafeLeverage, &r.StopLossPrice, &r.TakeProfitPrice, &r.RiskRewardRatio, &r.ConfidenceLevel, &reasoning, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(reasoning), &r.Reasoning); err != nil {
			return nil, fmt.Errorf("failed to decode reasoning of %s: %w", r.ID, err)
		}
		r.RecommendedLeverage = b.FinalLeverage
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) SaveSkipped(ctx context.Context, skipped *domain.SkippedEvaluation) error {
	query := `INSERT INTO skipped_evaluations (id, symbol, kind, reason, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, skipped.ID, skipped.Symbol, skipped.Kind, skipped.Reason, skipped.CreatedAt)
	return err
}

func (s *SQLiteStore) ListSkipped(ctx context.Context, limit int) ([]*domain.SkippedEvaluation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, symbol, kind, reason, created_at FROM skipped_evaluations ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SkippedEvaluation
	for rows.Next() {
		var sk domain.SkippedEvaluation
		if err := rows.Scan(&sk.ID, &sk.Symbol, &sk.Kind, &sk.Reason, &sk.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &sk)
	}
	return out, rows.Err()
}
