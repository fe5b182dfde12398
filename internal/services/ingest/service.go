package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse_insights/pkg/dedup"
	"github.com/LeonardoBeccarini/greenhouse_insights/pkg/rabbitmq"
)

// Service feeds sensor payloads received from the broker into the ingestor.
type Service struct {
	consumer rabbitmq.IConsumer
	ingestor *Ingestor
	seen     *dedup.Deduper
	logger   *zap.Logger
	timeout  time.Duration
}

func NewService(consumer rabbitmq.IConsumer, ingestor *Ingestor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		consumer: consumer,
		ingestor: ingestor,
		seen:     dedup.New(10*time.Minute, 10000),
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// Start consumes until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.consumer.SetHandler(rabbitmq.JSONHandler(func(topic string, in messages.SensorDataInput) error {
		return s.handle(ctx, topic, in)
	}, func(topic string, err error) {
		s.ingestor.metrics.ReadingRejected("malformed_json")
		s.logger.Warn("invalid JSON", zap.String("topic", topic), zap.Error(err))
	}))
	return s.consumer.ConsumeMessage(ctx)
}

func (s *Service) handle(ctx context.Context, topic string, in messages.SensorDataInput) error {
	// QoS 1 redeliveries carry the gateway timestamp; skip them before
	// touching the database.
	if in.Timestamp != nil {
		key := dedup.ReadingKey(in.NodeKey(), in.GatewayKey(), time.Unix(*in.Timestamp, 0))
		if !s.seen.ShouldProcess(key) {
			s.ingestor.metrics.ReadingDuplicate()
			s.logger.Debug("redelivered payload skipped", zap.String("topic", topic), zap.String("key", key))
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.ingestor.Ingest(ctx, in, Origin{Transport: "mqtt"}); err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			s.logger.Warn("payload rejected", zap.String("topic", topic), zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}
