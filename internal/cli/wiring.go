package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/claimgraph/internal/api"
	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/stream"
	"github.com/ppiankov/claimgraph/internal/telemetry"
	"github.com/ppiankov/claimgraph/internal/util"
)

// newTransport picks the event transport named in the config
func newTransport(cfg *model.Config) (stream.Transport, error) {
	if cfg.Server.Transport == "nats" {
		return &stream.NATSTransport{
			URL:     cfg.Server.NATSURL,
			Options: []nats.Option{nats.Timeout(cfg.HTTP.Timeout)},
		}, nil
	}
	proxy, err := util.ProxyFunc(cfg.HTTP.Proxy)
	if err != nil {
		return nil, err
	}
	return &stream.WebSocketTransport{
		Dialer: &websocket.Dialer{
			Proxy:            proxy,
			HandshakeTimeout: cfg.HTTP.Timeout,
		},
	}, nil
}

// newResponseCache returns the tree fallback cache; disabled caching
// yields a no-op cache
func newResponseCache(cfg *model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return cache.Nop{}
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return cache.NewMemoryCache(cfg.Cache.MemoryTTL, 10*time.Minute)
		}
		dir = filepath.Join(base, "claimgraph")
	}
	return cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL)
}

func newClient(cfg *model.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*api.HTTPClient, error) {
	proxy, err := util.ProxyFunc(cfg.HTTP.Proxy)
	if err != nil {
		return nil, err
	}
	return api.NewHTTPClient(cfg.Server.Origin, cfg.Server.WorkspaceID, cfg.HTTP,
		api.WithCache(newResponseCache(cfg), cfg.Cache.DiskTTL),
		api.WithProxy(proxy),
		api.WithLogger(logger),
		api.WithMetrics(metrics),
	), nil
}

// serveMetrics exposes reg on addr until ctx is done
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}
