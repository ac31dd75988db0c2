package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/scheduler"
	"OptPull/internal/service/spotfeed"
	pkgch "OptPull/pkg/clickhouse"
	"OptPull/pkg/config"
	xhttp "OptPull/pkg/http"
	applogger "OptPull/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	sched       *scheduler.Scheduler
	spots       *spotfeed.Client // nil when the feed is disabled
	events      drepo.EventSink  // nil when kafka is disabled
	persister   drepo.Persister
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	sched *scheduler.Scheduler,
	spots *spotfeed.Client,
	events drepo.EventSink,
	persister drepo.Persister,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		sched:     sched,
		spots:     spots,
		events:    events,
		persister: persister,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject the HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.spots != nil && a.cfg.SpotFeed.Enabled {
		go a.spots.Run(ctx)
		a.log.Info("spot feed started", applogger.String("url", a.cfg.SpotFeed.WebSocketURL))
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		a.sched.Run(ctx)
	}()

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("service started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("indices", len(a.cfg.EnabledIndices())))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	<-schedDone
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.spots != nil {
		if err := a.spots.Close(); err != nil {
			a.log.Warn("spot feed close error", applogger.Error(err))
		}
	}
	// final collector flush goes through the producer, so it runs first
	a.log.RemoveCollector()
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event sink close error", applogger.Error(err))
		}
	}
	if a.persister != nil {
		if err := a.persister.Close(); err != nil {
			a.log.Warn("persister close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
