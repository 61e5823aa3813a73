package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/autodms/funnel/internal/db"
	"github.com/autodms/funnel/pkg/config"
	"github.com/autodms/funnel/pkg/logging"
)

// One-shot retention pruning of the dedup and daily send ledgers.
// Intended to run from cron.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger().With(zap.String("component", "prune"))

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database.DB)
	dedupRepo := db.NewDedupRepository(repo)
	dailyRepo := db.NewDailySendRepository(repo)

	retention := cfg.Limits.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)
	cutoffDay := cutoff.Format("2006-01-02")

	logger.Info("Pruning ledgers",
		zap.Int("retention_days", retention),
		zap.Time("cutoff", cutoff))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dedupPruned, err := dedupRepo.Prune(ctx, cutoff)
	if err != nil {
		logger.Fatal("Failed to prune dedup ledger", zap.Error(err))
	}

	dailyPruned, err := dailyRepo.Prune(ctx, cutoffDay)
	if err != nil {
		logger.Fatal("Failed to prune daily send ledger", zap.Error(err))
	}

	logger.Info("Pruning complete",
		zap.Int64("dedup_records", dedupPruned),
		zap.Int64("daily_send_records", dailyPruned))
}
