package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/danielhkuo/quorum/cache"
	"github.com/danielhkuo/quorum/cliparse"
	"github.com/danielhkuo/quorum/clock"
	"github.com/danielhkuo/quorum/db"
	"github.com/danielhkuo/quorum/handlers"
	"github.com/danielhkuo/quorum/middleware"
	"github.com/danielhkuo/quorum/router"
)

func main() {
	var err error
	ctx := context.Background()

	if err := cliparse.LoadEnvFile(".env"); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the database
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(ctx, dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Results cache
	var backend cache.Backend
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		backend = rc
		slog.Info("Results cache ready", "backend", "redis")
	} else {
		lru, err := cache.NewLRU(cfg.Policy.ResultsCacheSize)
		if err != nil {
			slog.Error("cache setup failed", "error", err)
			os.Exit(1)
		}
		backend = lru
		slog.Info("Results cache ready", "backend", "lru", "size", cfg.Policy.ResultsCacheSize)
	}
	results := cache.NewResults(backend, cfg.Policy.ResultsCacheTTL)

	svc := handlers.NewServices(dbConn, cfg, results, clock.Real())

	// Close out assemblies whose window ran out while the server was down
	n, err := svc.Gate.FinalizeExpired(ctx)
	if err != nil {
		slog.Warn("expired assembly sweep failed", "error", err)
	} else if n > 0 {
		slog.Info("Finalized expired assemblies", "count", n)
	}

	// Create router
	mux := router.NewRouter(svc, cfg)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
