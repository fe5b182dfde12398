// Command ingest is the broker-side ingestion worker. HTTP ingestion is
// served by the insights API process.
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
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/services/ingest"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/stats"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/store"
	"github.com/LeonardoBeccarini/greenhouse_insights/pkg/rabbitmq"
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
	logger = logger.Named("ingest")

	stats.Init(time.Now())
	metrics := observability.NewMetrics(nil)

	db, err := store.NewSQLite(ctx, cfg.SQLite.Path)
	if err != nil {
		logger.Fatal("sqlite init failed", zap.Error(err))
	}
	defer db.Close()

	var mirror ingest.Mirror
	if cfg.Influx.Enabled() {
		influx, err := store.NewInflux(store.InfluxConfig{
			URL: cfg.Influx.URL, Token: cfg.Influx.Token, Org: cfg.Influx.Org, Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			logger.Fatal("influx init failed", zap.Error(err))
		}
		defer influx.Close()
		mirror = influx
		logger.Info("influx mirror enabled", zap.String("url", cfg.Influx.URL), zap.String("bucket", cfg.Influx.Bucket))
	}

	ingestor := ingest.NewIngestor(db, mirror, metrics, logger)

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "ingest-service"
	}
	mqClient, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host: cfg.MQTT.Host, Port: cfg.MQTT.Port, User: cfg.MQTT.User, Password: cfg.MQTT.Password, ClientID: clientID,
	}, logger)
	if err != nil {
		logger.Fatal("mqtt connect failed", zap.Error(err))
	}
	consumer := rabbitmq.NewConsumer(mqClient, logger, cfg.MQTT.SensorTopic)
	svc := ingest.NewService(consumer, ingestor, logger)

	r := chi.NewRouter()
	r.Use(api.Recoverer(logger), api.RequestLogger(logger, "/healthz", "/readyz", "/metrics"))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil || !mqClient.IsConnectionOpen() {
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
	})
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           metrics.WrapHandler("ingest", r),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Serve(gctx, srv, cfg.HTTP.ShutdownTimeout, logger) })
	g.Go(func() error { return svc.Start(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("ingest stopped with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
