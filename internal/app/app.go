package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/livechat-backend/internal/http"
	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Repos    Repos
	Services Services
	Hub      *realtime.Hub
	Metrics  *observability.Metrics
	Server   *http.Server

	clients      Clients
	store        storeHandle
	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	store, err := openStore(log, cfg)
	if err != nil {
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		store.Close()
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	hub := realtime.NewHub(log, metrics, cfg.Chat.QueueSize)

	serviceSet, err := wireServices(ctx, log, cfg, store.repos, clients, hub, metrics)
	if err != nil {
		clients.Close()
		store.Close()
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	handlers := wireHandlers(log, cfg, serviceSet, hub, store)
	middleware := wireMiddleware(log, serviceSet)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Repos:        store.repos,
		Services:     serviceSet,
		Hub:          hub,
		Metrics:      metrics,
		Server:       wireServer(log, cfg, handlers, middleware, metrics),
		clients:      clients,
		store:        store,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves the API, and the metrics listener when one is configured, until ctx
// is cancelled or a listener fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("Serving chat API", "addr", a.Cfg.Addr(), "store", a.Cfg.Store, "vector_provider", a.Cfg.VectorProvider)
		return a.Server.Run(gctx, a.Cfg.Addr(), a.Cfg.ShutdownTimeout)
	})

	if a.Metrics != nil && a.Cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return a.serveMetrics(gctx)
		})
	}
	return g.Wait()
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &nethttp.Server{Addr: a.Cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("Serving metrics", "addr", a.Cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Mode != nil {
		a.Services.Mode.Close()
	}
	a.clients.Close()
	a.store.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
