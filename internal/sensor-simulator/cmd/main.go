package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/config"
	sensorSimulator "github.com/LeonardoBeccarini/greenhouse_insights/internal/sensor-simulator"
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
	logger = logger.Named("simulator")

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "sensor-simulator"
	}
	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host: cfg.MQTT.Host, Port: cfg.MQTT.Port, User: cfg.MQTT.User, Password: cfg.MQTT.Password, ClientID: clientID,
	}, logger)
	if err != nil {
		logger.Fatal("mqtt connect failed", zap.Error(err))
	}

	sim := sensorSimulator.NewSensorSimulator(rabbitmq.NewPublisher(client, logger),
		cfg.Simulator.Topic, cfg.Simulator.GatewayID, cfg.Simulator.Nodes, cfg.Simulator.Seed, logger)

	logger.Info("simulator started",
		zap.Strings("nodes", cfg.Simulator.Nodes),
		zap.String("topic", cfg.Simulator.Topic),
		zap.Duration("interval", cfg.Simulator.Interval))
	if err := sim.Start(ctx, cfg.Simulator.Interval); err != nil {
		logger.Error("simulator stopped with error", zap.Error(err))
	}
}
