package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// RabbitMQConfig describes the MQTT listener of the broker.
type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

const (
	connectRetries      = 5
	connectMaxElapsed   = 10 * time.Second
	disconnectQuiesceMs = 250
)

// NewRabbitMQConn connects with exponential backoff. The client is
// disconnected when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQConfig, logger *zap.Logger) (mqtt.Client, error) {
	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.String("broker", connAddr), zap.Error(err))
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Warn("failed to connect to mqtt broker", zap.String("broker", connAddr), zap.Error(token.Error()))
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	logger.Info("connected to mqtt broker", zap.String("broker", connAddr), zap.String("client_id", cfg.ClientID))

	go func() {
		<-ctx.Done()
		CloseRabbitMQConn(client, logger)
	}()

	return client, nil
}

func CloseRabbitMQConn(client mqtt.Client, logger *zap.Logger) {
	if client.IsConnected() {
		client.Disconnect(disconnectQuiesceMs)
		logger.Info("mqtt connection closed")
	}
}
