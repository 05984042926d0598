package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ExFuse/internal/domain/repository"
	"ExFuse/internal/exchange"
	"ExFuse/internal/usecase"
	pkgch "ExFuse/pkg/clickhouse"
	"ExFuse/pkg/config"
	xhttp "ExFuse/pkg/http"
	applogger "ExFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// multiHandler registers every handler's routes on the same Echo instance.
type multiHandler []xhttp.Handler

func (m multiHandler) RegisterRoutes(e *echo.Echo) {
	for _, h := range m {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	handlers   multiHandler
	stream     *exchange.BybitStream
	monitor    *usecase.SignalMonitor
	chClient   *pkgch.Client
	store      repository.SignalStore
	publisher  repository.SignalPublisher
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handlers []xhttp.Handler,
	stream *exchange.BybitStream,
	monitor *usecase.SignalMonitor,
	chClient *pkgch.Client,
	store repository.SignalStore,
	publisher repository.SignalPublisher,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handlers:  multiHandler(handlers),
		stream:    stream,
		monitor:   monitor,
		chClient:  chClient,
		store:     store,
		publisher: publisher,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	a.httpServer.Echo().GET("/healthz", a.healthz)

	if a.stream != nil {
		go func() {
			if err := a.stream.Connect(ctx); err != nil {
				a.log.Warn("bybit stream connect failed, running REST-only", applogger.Error(err))
				return
			}
			if err := a.stream.Subscribe(ctx); err != nil {
				a.log.Warn("bybit stream subscribe failed, running REST-only", applogger.Error(err))
				return
			}
			a.stream.Run(ctx)
		}()
		a.log.Info("bybit stream starting", applogger.Strings("symbols", a.cfg.Exchanges.Bybit.Stream.Symbols))
	}

	if a.monitor != nil {
		go a.monitor.Run(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// healthz reports liveness plus the state of optional infrastructure.
func (a *App) healthz(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if a.chClient != nil {
		if err := a.chClient.Health(c.Request().Context()); err != nil {
			status["status"] = "degraded"
			status["clickhouse"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		status["clickhouse"] = "ok"
	}
	return c.JSON(http.StatusOK, status)
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Warn("bybit stream close error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("signal publisher close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("signal store close error", applogger.Error(err))
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
