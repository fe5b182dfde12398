package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one message received on topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes a handler and blocks until its context ends.
type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// Consumer subscribes one handler to one or more topic filters.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
	logger  *zap.Logger
}

func NewConsumer(client mqtt.Client, logger *zap.Logger, topics ...string) *Consumer {
	return &Consumer{client: client, topics: topics, logger: logger}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// Sensor data and insight events are delivered at least once.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/data") || strings.HasPrefix(t, "insight") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes to every topic and blocks until ctx is done.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("no handler set for topics %v", c.topics)
	}
	for _, topic := range c.topics {
		token := c.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if err := c.handler(msg.Topic(), msg); err != nil {
				c.logger.Warn("error handling message", zap.String("topic", msg.Topic()), zap.Error(err))
			}
		})
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		c.logger.Info("subscribed", zap.String("topic", topic))
	}

	<-ctx.Done()

	c.client.Unsubscribe(c.topics...).Wait()
	return nil
}

// JSONHandler decodes each payload into T before calling fn. Payloads that
// do not decode are reported to onBad and dropped so the stream keeps flowing.
func JSONHandler[T any](fn func(topic string, v T) error, onBad func(topic string, err error)) Handler {
	return func(topic string, message mqtt.Message) error {
		var v T
		if err := json.Unmarshal(message.Payload(), &v); err != nil {
			if onBad != nil {
				onBad(topic, err)
			}
			return nil
		}
		return fn(topic, v)
	}
}
