package commands

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/processors"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// runtime owns the long-lived collaborators of one command invocation.
type runtime struct {
	service  *build.DefaultBuildService
	recorder metrics.Recorder
	deps     build.ContainerDeps
	events   *eventstore.SQLiteStore
	closers  []func()
	logger   *slog.Logger
}

// newRuntime wires metrics, the remote map cache and the event log from cfg.
// Optional collaborators that fail to start are logged and skipped.
func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{recorder: metrics.NoopRecorder{}, logger: logger}

	if cfg.Metrics.Enabled {
		if err := rt.startMetrics(cfg.Metrics.Listen); err != nil {
			rt.Close()
			return nil, err
		}
	}

	if cfg.XRef.Cache.NATSURL != "" {
		cache, err := xref.NewNATSCache(ctx, cfg.XRef.Cache.NATSURL, cfg.XRef.Cache.Bucket, cfg.XRefCacheTTL())
		if err != nil {
			logger.Warn("Reference map cache unavailable, downloading directly", logfields.Error(err))
		} else {
			rt.deps.Cache = cache
			rt.closers = append(rt.closers, func() { _ = cache.Close() })
		}
	}

	if cfg.Events.Database != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Events.Database)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.events = store
		rt.closers = append(rt.closers, func() { _ = store.Close() })
	}

	rt.deps.Logger = logger
	rt.service = build.NewBuildService(processors.Default(markdown.Options{})...).
		WithRecorder(rt.recorder).
		WithContainerDeps(rt.deps).
		WithLogger(logger)
	if rt.events != nil {
		rt.service.WithEventStore(rt.events)
	}
	return rt, nil
}

func (rt *runtime) startMetrics(listen string) error {
	reg := prom.NewRegistry()
	rt.recorder = metrics.NewPrometheusRecorder(reg)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "metrics listener").
			WithContext("listen", listen).Build()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("Metrics server stopped", logfields.Error(err))
		}
	}()
	rt.logger.Info("Serving metrics", slog.String("addr", ln.Addr().String()))
	rt.closers = append(rt.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	return nil
}

// containers builds the configured reference containers with the runtime's
// cache and recorder.
func (rt *runtime) containers(cfg *config.Config) []xref.Container {
	deps := rt.deps
	deps.Recorder = rt.recorder
	return build.ContainersFromConfig(cfg, deps)
}

// Close releases collaborators in reverse start order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
