package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// IPublisher publishes a JSON encoded message on a topic.
type IPublisher interface {
	PublishJSON(topic string, message any) error
}

type Publisher struct {
	client  mqtt.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublisher(client mqtt.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, timeout: 5 * time.Second, logger: logger}
}

func (p *Publisher) PublishJSON(topic string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, qosFor(topic), false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}
