package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/pkg/impactrpc"
	"github.com/bumpwatch/bumpwatch/server/internal/alerts"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
	"github.com/bumpwatch/bumpwatch/server/internal/auth"
	"github.com/bumpwatch/bumpwatch/server/internal/config"
	"github.com/bumpwatch/bumpwatch/server/internal/events"
	"github.com/bumpwatch/bumpwatch/server/internal/metrics"
	"github.com/bumpwatch/bumpwatch/server/internal/receiver"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
	"github.com/bumpwatch/bumpwatch/server/internal/tracker"
	"github.com/bumpwatch/bumpwatch/server/internal/web"
	"github.com/bumpwatch/bumpwatch/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("bumpwatch-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sc := cfg.Server

	slog.Info("config loaded",
		"grpc_port", sc.GRPCPort,
		"http_port", sc.HTTPPort,
		"auth_mode", sc.Auth.Mode,
		"store", sc.Store.Backend,
		"condition", sc.Store.Condition,
		"refresh", sc.Refresh.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	// Missing credentials are reported but not fatal: the server starts and
	// every store call fails until the environment is fixed.
	for _, p := range sc.Store.Problems() {
		slog.Error("configuration error", "err", p)
	}
	repo, err := store.Open(ctx, sc.Store.StoreOptions())
	if err != nil {
		slog.Error("record store unavailable", "backend", sc.Store.Backend, "err", err)
	}
	defer repo.Close()

	tr := tracker.New(repo, tracker.Options{
		Mode:          sc.Store.Condition,
		FoldCritical:  sc.Store.FoldCritical,
		SpeedLimitKmh: sc.Impact.SpeedLimitKmh,
		Metrics:       m,
	})

	// Alerts engine: evaluates rules on every change, and on a sweep over
	// all records for time-based rules and out-of-band writes.
	alertEngine := alerts.New(sc.Alerts)
	sweep := alerts.NewSweep(alertEngine, tr, sc.Alerts.SweepInterval)
	go sweep.Run(ctx)

	var publisher events.Publisher = events.Nop{}
	if url := sc.Events.URL(); url != "" {
		nc, err := events.Connect(url, sc.Events.Subject)
		if err != nil {
			slog.Error("change events disabled", "err", err)
		} else {
			publisher = nc
			slog.Info("publishing change events", "subject", sc.Events.Subject)
		}
	}
	defer publisher.Close()

	// WebSocket hub: one polling view per connected client.
	hub := ws.New(tr, sc.Refresh.Interval, m)
	go hub.Run(ctx)

	tr.Subscribe(alertEngine.Observe)
	tr.Subscribe(publisher.Publish)
	tr.Subscribe(func(bump.Change) { hub.Invalidate() })

	// Hot-reload alert rules and webhooks.
	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			alertEngine.SetConfig(c.Server.Alerts)
			sweep.Trigger()
			slog.Info("config reloaded", "alert_rules", len(c.Server.Alerts.Rules))
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	// gRPC server with optional API key authentication interceptor.
	interceptor := auth.APIKeyInterceptor(
		sc.Auth.Mode,
		sc.Auth.EffectiveHeader(),
		sc.Auth.Key(),
	)
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	impactrpc.RegisterImpactServiceServer(grpcSrv, receiver.New(tr))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", sc.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port",
			"port", sc.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", sc.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	dashboard, err := web.New(tr, web.Options{
		APIKey:          keyIfEnabled(sc.Auth),
		RefreshInterval: sc.Refresh.Interval,
	})
	if err != nil {
		slog.Error("failed to load dashboard templates", "err", err)
		os.Exit(1)
	}

	// Combined HTTP server: dashboard, REST API, WebSocket hub and metrics.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", auth.RequireAPIKey(
		sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key(),
		api.New(tr, alertEngine),
	))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m.Handler())
	httpMux.Handle("/", dashboard)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("bumpwatch-server shutting down")
	grpcSrv.GracefulStop()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// keyIfEnabled returns the key the dashboard editor must ask for.
func keyIfEnabled(a config.AuthConfig) string {
	if !auth.Enabled(a.Mode, a.Key()) {
		return ""
	}
	return a.Key()
}
