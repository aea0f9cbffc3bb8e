package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vitos/level_leverage_guard/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "leverage_guard.db", "path to the SQLite audit store")
	symbol := flag.String("symbol", "", "only show this symbol")
	limit := flag.Int("limit", 20, "number of rows")
	skipped := flag.Bool("skipped", false, "list skipped evaluations instead")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	if *skipped {
		rows, err := store.ListSkipped(ctx, *limit)
		if err != nil {
			fmt.Printf("Failed to list skipped evaluations: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Found %d skipped evaluations:\n", len(rows))
		for _, s := range rows {
			fmt.Printf("- %s %-12s [%s] %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"), s.Symbol, s.Kind, s.Reason)
		}
		return
	}

	recs, err := store.ListRecommendations(ctx, strings.ToUpper(*symbol), *limit)
	if err != nil {
		fmt.Printf("Failed to list recommendations: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d recommendations:\n", len(recs))
	for _, r := range recs {
		b := r.Breakdown
		fmt.Printf("- %s %-12s %s final=%.2fx max_safe=%.2fx sl=%f tp=%f rr=%.2f\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Symbol, r.Strategy,
			r.RecommendedLeverage, r.MaxSafeLeverage, r.StopLossPrice, r.TakeProfitPrice, r.RiskRewardRatio)
		fmt.Printf("  support=%.2f rr=%.2f confidence=%.2f btc=%.2f volatility=%.2f trend=x%.2f margin=%.0f%%\n",
			b.SupportDistanceLeverage, b.RiskRewardLeverage, b.ConfidenceLeverage,
			b.BTCCorrelationLeverage, b.VolatilityLeverage, b.TrendMultiplier, b.SafetyMarginPct)
	}
}
