// Command publisher analyses active nodes on a schedule and publishes the
// results that carry risk on the broker.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/api"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/config"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/insight"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/services/publisher"
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
	logger = logger.Named("publisher")

	metrics := observability.NewMetrics(nil)

	db, err := store.NewSQLite(ctx, cfg.SQLite.Path)
	if err != nil {
		logger.Fatal("sqlite init failed", zap.Error(err))
	}
	defer db.Close()

	var window insight.WindowSource = db
	if cfg.Influx.Enabled() && cfg.Insights.Source == "influx" {
		influx, err := store.NewInflux(store.InfluxConfig{
			URL: cfg.Influx.URL, Token: cfg.Influx.Token, Org: cfg.Influx.Org, Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			logger.Fatal("influx init failed", zap.Error(err))
		}
		defer influx.Close()
		window = influx
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "insight-publisher"
	}
	mqClient, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host: cfg.MQTT.Host, Port: cfg.MQTT.Port, User: cfg.MQTT.User, Password: cfg.MQTT.Password, ClientID: clientID,
	}, logger)
	if err != nil {
		logger.Fatal("mqtt connect failed", zap.Error(err))
	}

	svc := publisher.NewService(publisher.Config{
		Interval:      cfg.Publisher.Interval,
		WindowMinutes: cfg.Publisher.WindowMinutes,
		ActiveWithin:  cfg.Publisher.ActiveWithin,
		RepeatAfter:   cfg.Publisher.RepeatAfter,
		TopicPrefix:   cfg.MQTT.InsightTopic,
	}, db, insight.NewEngine(window, nil), rabbitmq.NewPublisher(mqClient, logger), metrics, logger)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil || !mqClient.IsConnectionOpen() {
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
	})
	r.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r, ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout}

	logger.Info("publisher started",
		zap.Duration("interval", cfg.Publisher.Interval),
		zap.Int("window_minutes", cfg.Publisher.WindowMinutes),
		zap.String("topic_prefix", cfg.MQTT.InsightTopic))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Serve(gctx, srv, cfg.HTTP.ShutdownTimeout, logger) })
	g.Go(func() error { return svc.Start(gctx) })
	if err := g.Wait(); err != nil {
		logger.Error("publisher stopped with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
