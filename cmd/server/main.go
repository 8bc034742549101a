package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paperchain/core/internal/app"
	"github.com/paperchain/core/internal/config"
	"github.com/paperchain/core/internal/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(logger.ResolveDir(cfg.Paths.Logs), cfg.IsProduction())
	if err != nil {
		zl, _ = zap.NewProduction()
		zl.Warn("file log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	defer zl.Sync()

	application, err := app.New(zl, cfg)
	if err != nil {
		zl.Fatal("failed to initialize app", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              application.Addr(),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("forced shutdown", zap.Error(err))
	}
	application.Shutdown()
	zl.Info("server exited")
}

// loadConfig reads path, falling back to defaults and environment when the
// default config file does not exist.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.FromEnv()
	}
	return nil, err
}
