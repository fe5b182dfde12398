package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/api"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/config"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/insight"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/insight/node"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/services/gateway"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/services/ingest"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/services/insights"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/stats"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.Named("insights")

	stats.Init(time.Now())
	metrics := observability.NewMetrics(nil)

	db, err := store.NewSQLite(ctx, cfg.SQLite.Path)
	if err != nil {
		logger.Fatal("sqlite init failed", zap.Error(err))
	}
	defer db.Close()

	deps := map[string]insights.Pinger{"sqlite": db}
	var (
		window insight.WindowSource = db
		mirror ingest.Mirror
	)
	if cfg.Influx.Enabled() {
		influx, err := store.NewInflux(store.InfluxConfig{
			URL: cfg.Influx.URL, Token: cfg.Influx.Token, Org: cfg.Influx.Org, Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			logger.Fatal("influx init failed", zap.Error(err))
		}
		defer influx.Close()
		mirror = influx
		deps["influx"] = influx
		if cfg.Insights.Source == "influx" {
			window = influx
		}
	} else if cfg.Insights.Source == "influx" {
		logger.Warn("INSIGHTS_SOURCE=influx but influx is not configured, reading windows from sqlite")
	}

	prober := gateway.NewProber(gateway.Config{
		Timeout:         cfg.Gateway.ProbeTimeout,
		FallbackIP:      cfg.Gateway.FallbackIP,
		BreakerFailures: cfg.Gateway.BreakerFailures,
		BreakerOpen:     cfg.Gateway.BreakerOpen,
	}, metrics, logger.Named("gateway"))

	insightsAPI := insights.NewAPI(insights.Deps{
		Engine:  insight.NewEngine(window, nil),
		Nodes:   node.NewAnalyzer(db, nil),
		Store:   db,
		Prober:  prober,
		Board:   gateway.NewBoard(),
		Metrics: metrics,
		Logger:  logger,
	})
	ingestor := ingest.NewIngestor(db, mirror, metrics, logger.Named("ingest"))
	health := insights.NewHealth(deps, logger)

	r := chi.NewRouter()
	r.Use(api.Recoverer(logger), api.RequestLogger(logger, "/healthz", "/readyz", "/metrics"))
	r.Get("/healthz", health.Livez)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", metrics.Handler())
	r.Group(func(r chi.Router) {
		r.Use(api.RequireToken(cfg.Auth.Token))
		insightsAPI.Routes(r)
		ingest.Routes(r, ingestor, cfg.HTTP.IngestRatePerMinute, logger.Named("ingest"))
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           metrics.WrapHandler("insights", r),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Serve(gctx, srv, cfg.HTTP.ShutdownTimeout, logger) })
	g.Go(func() error { return health.ServeGRPC(gctx, cfg.GRPC.Addr) })
	g.Go(func() error { return health.Run(gctx, 15*time.Second) })

	if err := g.Wait(); err != nil {
		logger.Error("insights stopped with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
