package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ChartSync/internal/usecase"
	pkgcache "ChartSync/pkg/cache"
	pkgch "ChartSync/pkg/clickhouse"
	"ChartSync/pkg/config"
	xhttp "ChartSync/pkg/http"
	pkgkafka "ChartSync/pkg/kafka"
	applogger "ChartSync/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	engine      *usecase.Engine
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	chClient *pkgch.Client
	redis    *pkgcache.RedisCache
	producer *pkgkafka.Producer
}

// New creates a new App instance with all dependencies. The infrastructure
// clients may be nil when their backends are disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Engine,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	redis *pkgcache.RedisCache,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		engine:      engine,
		httpHandler: handler,
		chClient:    chClient,
		redis:       redis,
		producer:    producer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.engine.Start(ctx); err != nil {
		a.log.Error("engine start error", applogger.Error(err))
		return err
	}
	a.log.Info("engine started",
		applogger.String("instrument", a.cfg.Instrument),
		applogger.String("granularity", a.cfg.Chart.Granularity))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
