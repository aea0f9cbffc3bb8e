package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/level_leverage_guard/internal/config"
	"github.com/vitos/level_leverage_guard/internal/domain"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/exchange"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/logger"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/metrics"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/scheduler"
	"github.com/vitos/level_leverage_guard/internal/infrastructure/storage"
	"github.com/vitos/level_leverage_guard/internal/usecase"
	"github.com/vitos/level_leverage_guard/internal/web"
)

const reconnectDelay = 5 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange (Bybit)
	bybitAdapter := exchange.NewBybitAdapter(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)
	defer bybitAdapter.Close()

	// 5. Init Service
	svc, err := usecase.BuildRecommendationService(*cfg, bybitAdapter, store, metrics.NewRecorder(), log)
	if err != nil {
		log.Fatal("Failed to build recommendation service", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Scheduled batch
	var runner *scheduler.Runner
	if cfg.Scheduler.Enabled {
		batchLogger := log
		if cfg.Scheduler.LogFile != "" {
			if batchLogger, err = logger.NewFileLogger(cfg.Scheduler.LogFile, cfg.Logging.Level); err != nil {
				log.Error("Failed to init batch logger, using default", zap.Error(err))
				batchLogger = log
			}
		}

		runner = scheduler.New(ctx, log)
		_, err := runner.Add("evaluate_batch", cfg.Scheduler.Spec, func(ctx context.Context) {
			result := svc.EvaluateBatch(ctx, cfg.Symbols)
			batchLogger.Info("Batch evaluated",
				zap.Int("recommendations", len(result.Recommendations)),
				zap.Int("skipped", len(result.Skipped)),
			)
			for _, rec := range result.Recommendations {
				batchLogger.Info("Recommendation",
					zap.String("symbol", rec.Symbol),
					zap.Float64("leverage", rec.RecommendedLeverage),
					zap.Float64("max_safe", rec.MaxSafeLeverage),
					zap.Float64("stop_loss", rec.StopLossPrice),
					zap.Float64("take_profit", rec.TakeProfitPrice),
				)
			}
		})
		if err != nil {
			log.Fatal("Failed to schedule batch", zap.Error(err))
		}
		runner.Start()
	}

	// 7. Candle-close stream
	if cfg.Exchange.StreamKlines {
		worker := usecase.NewReevaluationWorker(svc, log)
		bybitAdapter.OnCandleClose(func(symbol, interval string, candle domain.Candle) {
			log.Debug("Candle closed", zap.String("symbol", symbol), zap.Int64("candle", candle.Time))
			worker.Enqueue(symbol)
		})
		go worker.Run(ctx)
		go streamKlines(ctx, bybitAdapter, cfg.Symbols, cfg.Interval, log)
	}

	// 8. Start Server
	server := web.NewServer(cfg.Server, svc, cfg.Symbols, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if runner != nil {
		runner.Stop()
	}
}

// streamKlines keeps the kline subscription alive until ctx is cancelled,
// redialing after the connection drops.
func streamKlines(ctx context.Context, adapter *exchange.BybitAdapter, symbols []string, interval string, log *zap.Logger) {
	for {
		if err := adapter.SubscribeKlines(symbols, interval); err != nil {
			log.Error("Failed to subscribe to klines", zap.Error(err))
		} else {
			log.Info("Subscribed to klines", zap.Strings("symbols", symbols), zap.String("interval", interval))
			select {
			case <-adapter.Done():
				log.Warn("Kline stream dropped")
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}
