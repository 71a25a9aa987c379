package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shortener/config"
	db "shortener/internal/database"
	route "shortener/internal/routes"
	"shortener/internal/tracing"
)

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	zap.ReplaceGlobals(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("error loading configuration", zap.Error(err))
	}

	if cfg.OTLPEndpoint != "" {
		shutdown, err := tracing.Init(context.Background(), cfg.OTLPEndpoint, "shortener")
		if err != nil {
			logger.Fatal("tracing failed to initialize", zap.Error(err))
		}
		defer shutdown(context.Background())
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	redisClient, err := db.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("redis failed to initialize", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("redis connection established")

	pgClient, err := db.NewPostgresClient(cfg)
	if err != nil {
		logger.Fatal("postgres failed to initialize", zap.Error(err))
	}
	defer pgClient.Close()
	logger.Info("postgres connection established")

	if err := db.Migrate(context.Background(), pgClient); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	r := route.SetupRouter(cfg, pgClient, redisClient)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
