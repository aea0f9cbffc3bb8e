package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/exchange"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/logger"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/storage"
	"github.com/vitos/level_leverage_guard/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	symbolsFlag := flag.String("symbols", "", "comma separated symbols (default: config symbols)")
	direction := flag.String("direction", "", "long|short (default: config direction)")
	strategy := flag.String("strategy", "", "default|conservative|aggressive (default: config strategy)")
	noEnhancement := flag.Bool("no-enhancement", false, "disable level enhancement")
	verbose := flag.Bool("v", false, "print the reasoning of every recommendation")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *direction != "" {
		cfg.Direction = *direction
	}
	if *strategy != "" {
		cfg.SLTP.Strategy = *strategy
	}
	if *noEnhancement {
		cfg.Enhancement.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid options: %v\n", err)
		os.Exit(1)
	}

	symbols := cfg.Symbols
	if *symbolsFlag != "" {
		symbols = nil
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
	}

	log, err := logger.NewLogger("error")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	bybitAdapter := exchange.NewBybitAdapter(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)
	svc, err := usecase.BuildRecommendationService(*cfg, bybitAdapter, store, nil, log)
	if err != nil {
		fmt.Printf("Failed to build service: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Evaluating %d symbols (%s, interval %s, strategy %s)\n", len(symbols), cfg.Direction, cfg.Interval, cfg.SLTP.Strategy)
	result := svc.EvaluateBatch(ctx, symbols)

	fmt.Printf("\n%-12s | %-9s | %-9s | %-14s | %-14s | %-6s | %-10s | %s\n",
		"Symbol", "Leverage", "Max Safe", "Stop Loss", "Take Profit", "RR", "Confidence", "Trend")
	fmt.Println("------------------------------------------------------------------------------------------------------------")
	for _, rec := range result.Recommendations {
		fmt.Printf("%-12s | %-9.2f | %-9.2f | %-14.6f | %-14.6f | %-6.2f | %-10.2f | %s\n",
			rec.Symbol,
			rec.RecommendedLeverage,
			rec.MaxSafeLeverage,
			rec.StopLossPrice,
			rec.TakeProfitPrice,
			rec.RiskRewardRatio,
			rec.ConfidenceLevel,
			rec.MarketConditions.TrendDirection,
		)
		if *verbose {
			for _, line := range rec.Reasoning {
				fmt.Printf("    - %s\n", line)
			}
		}
	}

	if len(result.Skipped) > 0 {
		fmt.Printf("\nSkipped %d symbols:\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Printf("- %s [%s]: %s\n", s.Symbol, s.Kind, s.Reason)
		}
	}

	if len(result.Recommendations) == 0 {
		os.Exit(exitCode(result.Skipped))
	}
}

// exitCode is 2 when every symbol lacked data and 1 for any other failure.
func exitCode(skipped []domain.SkippedEvaluation) int {
	for _, s := range skipped {
		if s.Kind != domain.FailureInsufficientData {
			return 1
		}
	}
	return 2
}
