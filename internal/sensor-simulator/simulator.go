// Package sensor_simulator publishes synthetic greenhouse readings to the
// broker for development and demos.
package sensor_simulator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/pkg/rabbitmq"
)

type SensorSimulator struct {
	nodes     []*DataGenerator
	publisher rabbitmq.IPublisher
	topic     string
	logger    *zap.Logger
	now       func() time.Time
}

// NewSensorSimulator simulates one generator per node id. Node i is seeded
// with seed+i.
func NewSensorSimulator(publisher rabbitmq.IPublisher, topic, gatewayID string, nodeIDs []string, seed int64, logger *zap.Logger) *SensorSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	gens := make([]*DataGenerator, 0, len(nodeIDs))
	for i, id := range nodeIDs {
		gens = append(gens, NewDataGenerator(id, gatewayID, seed+int64(i)))
	}
	return &SensorSimulator{nodes: gens, publisher: publisher, topic: topic, logger: logger, now: time.Now}
}

// Start publishes one reading per node right away and then every interval.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.PublishAll()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PublishAll sends the next reading of every node to <topic>/<node_id> and
// returns how many were published.
func (s *SensorSimulator) PublishAll() int {
	now := s.now()
	sent := 0
	for _, g := range s.nodes {
		in := g.Next(now)
		topic := s.topic + "/" + in.NodeID
		if err := s.publisher.PublishJSON(topic, in); err != nil {
			s.logger.Warn("publish error", zap.String("topic", topic), zap.Error(err))
			continue
		}
		sent++
		s.logger.Debug("reading published",
			zap.String("node_id", in.NodeID),
			zap.Float64("temperature", *in.Temperature),
			zap.Float64("soil_moisture", *in.SoilMoistureCamel))
	}
	return sent
}
