package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autodms/funnel/internal/api"
	"github.com/autodms/funnel/internal/cache"
	"github.com/autodms/funnel/internal/db"
	"github.com/autodms/funnel/internal/engine"
	"github.com/autodms/funnel/internal/gate"
	"github.com/autodms/funnel/internal/monitor"
	"github.com/autodms/funnel/internal/platform"
	"github.com/autodms/funnel/pkg/config"
	"github.com/autodms/funnel/pkg/logging"
	"github.com/autodms/funnel/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Funnel Engine")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect to database and ensure schema
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis cache (optional)
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	if redisCache != nil {
		defer redisCache.Close()
	}

	// Platform client
	client, err := platform.NewHTTPClient(&cfg.Platform)
	if err != nil {
		logger.Fatal("Failed to create platform client", zap.Error(err))
	}

	// Repositories
	repo := db.NewRepository(database.DB)
	accountRepo := db.NewAccountRepository(repo)
	configRepo := db.NewConfigRepository(repo)
	dedupRepo := db.NewDedupRepository(repo)
	dailyRepo := db.NewDailySendRepository(repo)
	cursorRepo := db.NewCursorRepository(repo)

	// Send gate and decision engine
	sendGate := gate.New(cfg.Limits.SendsPerMinute, cfg.Limits.SendsPerHour)

	eng := engine.New(engine.Options{
		Client:  client,
		Dedup:   dedupRepo,
		Daily:   dailyRepo,
		Cursors: cursorRepo,
		Configs: configRepo,
		Gate:    sendGate,
		Cache:   redisCache,
		Defaults: engine.Defaults{
			DailySendLimit: cfg.Limits.DefaultDaily,
			Cooldown:       cfg.Limits.DefaultCooldown,
		},
		Pacing: cfg.Monitor.SendPacing,
	})

	// Poll monitors
	manager := monitor.NewManager(client, eng, accountRepo, configRepo, cursorRepo, &cfg.Monitor)

	if cfg.Monitor.AutoStart {
		startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := manager.StartAll(startCtx); err != nil {
			logger.Error("Failed to start monitors", zap.Error(err))
		}
		cancel()
	}

	// Control/status HTTP surface
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	apiRouter := api.NewRouter(eng, manager, database, redisCache)
	apiRouter.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	manager.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Engine exited")
}
