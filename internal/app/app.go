package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/paperchain/core/internal/config"
	"github.com/paperchain/core/internal/database"
	"github.com/paperchain/core/internal/middleware"
	"github.com/paperchain/core/internal/modules/processing/analysis"
	"github.com/paperchain/core/internal/pkg/ipfs"
	"github.com/paperchain/core/internal/pkg/metrics"
	pkgredis "github.com/paperchain/core/internal/pkg/redis"
	"github.com/paperchain/core/internal/pkg/taskqueue"
	"github.com/paperchain/core/internal/repository"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Repo  repository.Repository
	Store ipfs.Store
	// Model may be nil, in which case analysis is disabled.
	Model analysis.Model
	// TaskRecorder mirrors background task states; optional.
	TaskRecorder taskqueue.Recorder
}

// App holds all application dependencies.
type App struct {
	cfg        *config.AppConfig
	router     *gin.Engine
	logger     *zap.Logger
	metrics    *metrics.Metrics
	dispatcher *taskqueue.Dispatcher
	cancel     context.CancelFunc
	closers    []func() error
}

// New initializes the application: config → storage → content store → AI → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var deps Deps
	var closers []func() error

	switch cfg.Store {
	case config.StoreMySQL:
		db, err := database.Connect(cfg, true)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, sqlDB.Close)
		}
		deps.Repo = repository.NewGorm(db)
	default:
		deps.Repo = repository.NewMemory()
	}

	store, err := ipfs.New(cfg.IPFS, logger)
	if err != nil {
		return nil, fmt.Errorf("ipfs: %w", err)
	}
	deps.Store = store

	model, err := analysis.NewProviderModel(cfg.AI)
	switch {
	case errors.Is(err, analysis.ErrNoProvider):
		logger.Warn("no AI provider configured, paper analysis disabled")
	case err != nil:
		logger.Warn("AI provider unusable, paper analysis disabled", zap.Error(err))
	default:
		deps.Model = model
		logger.Info("AI provider selected", zap.String("provider", model.Name()))
	}

	if cfg.Redis.Enabled {
		rc, err := pkgredis.Connect(context.Background(), cfg.Redis.URLValue())
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, rc.Close)
		deps.TaskRecorder = taskqueue.NewRedisRecorder(rc.Raw())
	}

	a := Build(logger, cfg, deps)
	a.closers = closers
	logger.Info("application initialized",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store),
		zap.String("ipfs", cfg.IPFS.Provider),
		zap.Bool("redis", cfg.Redis.Enabled),
	)
	return a, nil
}

// Build wires the router around already constructed collaborators.
func Build(logger *zap.Logger, cfg *config.AppConfig, deps Deps) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	m := metrics.New()
	router.Use(m.Middleware())
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	opts := []taskqueue.Option{
		taskqueue.WithTimeout(analysisTaskTimeout(cfg)),
	}
	if deps.TaskRecorder != nil {
		opts = append(opts, taskqueue.WithRecorder(deps.TaskRecorder))
	}
	dispatcher := taskqueue.NewDispatcher(ctx, logger, opts...)

	a := &App{
		cfg:        cfg,
		router:     router,
		logger:     logger,
		metrics:    m,
		dispatcher: dispatcher,
		cancel:     cancel,
	}
	a.registerRoutes(deps)
	return a
}

// analysisTaskTimeout bounds one background analysis; a sampled run makes two model calls.
func analysisTaskTimeout(cfg *config.AppConfig) time.Duration {
	return 2*time.Duration(cfg.AI.TimeoutSeconds)*time.Second + 30*time.Second
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.AllowedOrigins) > 0 {
		c.AllowOriginFunc = originAllower(cfg.AllowedOrigins)
	} else {
		c.AllowAllOrigins = true
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background work and releases connections.
// Running analyses are cancelled and awaited.
func (a *App) Shutdown() {
	a.cancel()
	a.dispatcher.Wait()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close resource failed", zap.Error(err))
		}
	}
}
