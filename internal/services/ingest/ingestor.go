// Package ingest accepts sensor payloads from gateways, over MQTT or HTTP,
// and turns them into stored readings.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/stats"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/store"
)

const (
	// Readings of the same node and gateway this close together are one reading.
	DuplicateTolerance = 5 * time.Second
	// Gateway clocks may run this far ahead before the timestamp is replaced.
	FutureSkew = 60 * time.Second
	// Older readings are still stored, with a warning.
	LateAfter = 24 * time.Hour
)

// ErrInvalidPayload wraps every validation failure.
var ErrInvalidPayload = errors.New("invalid sensor payload")

// Store is the persistence needed by the ingestor.
type Store interface {
	InsertReading(ctx context.Context, r entities.Reading) (entities.Reading, error)
	FindDuplicate(ctx context.Context, nodeID, gatewayID string, ts time.Time, tolerance time.Duration) (*entities.Reading, error)
	UpsertGateway(ctx context.Context, g entities.Gateway) error
	UpsertNode(ctx context.Context, n entities.Node) error
}

// Mirror receives a copy of every stored reading. Failures are logged only.
type Mirror interface {
	WriteReading(ctx context.Context, r entities.Reading) error
}

// Origin describes where a payload came from.
type Origin struct {
	Transport string // "mqtt" or "http"
	ClientIP  string
}

type Result struct {
	Reading   entities.Reading
	Duplicate bool
}

type Ingestor struct {
	store   Store
	mirror  Mirror
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestor wires the ingestor. mirror and metrics may be nil.
func NewIngestor(st Store, mirror Mirror, metrics *observability.Metrics, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: st, mirror: mirror, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock replaces the time source; meant for tests.
func (i *Ingestor) WithClock(now func() time.Time) *Ingestor {
	i.now = now
	return i
}

// Ingest validates in, stores it unless it duplicates a stored reading, and
// refreshes the gateway and node registry.
func (i *Ingestor) Ingest(ctx context.Context, in messages.SensorDataInput, origin Origin) (Result, error) {
	if err := in.Validate(); err != nil {
		i.metrics.ReadingRejected(rejectReason(err))
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	now := i.now().UTC()
	nodeID, gatewayID := in.NodeKey(), in.GatewayKey()
	log := i.logger.With(zap.String("node_id", nodeID), zap.String("gateway_id", gatewayID), zap.String("transport", origin.Transport))

	ts := i.timestamp(in, now, log)

	existing, err := i.store.FindDuplicate(ctx, nodeID, gatewayID, ts, DuplicateTolerance)
	switch {
	case err == nil:
		log.Info("duplicate reading, returning the stored one", zap.Int64("id", existing.ID))
		i.metrics.ReadingDuplicate()
		return Result{Reading: *existing, Duplicate: true}, nil
	case !store.IsNotFound(err):
		return Result{}, fmt.Errorf("check duplicate: %w", err)
	}

	reading, err := i.store.InsertReading(ctx, in.ToReading(ts))
	if err != nil {
		return Result{}, err
	}
	stats.IncMessages()
	i.metrics.ReadingIngested(origin.Transport)

	if err := i.store.UpsertGateway(ctx, entities.Gateway{GatewayID: gatewayID, ClientIP: origin.ClientIP, LastSeen: now}); err != nil {
		log.Warn("gateway registry update failed", zap.Error(err))
	} else if err := i.store.UpsertNode(ctx, entities.Node{
		NodeID:      nodeID,
		GatewayID:   gatewayID,
		IsSimulated: IsSimulated(gatewayID, nodeID),
		LastSeen:    now,
	}); err != nil {
		log.Warn("node registry update failed", zap.Error(err))
	}

	if i.mirror != nil {
		if err := i.mirror.WriteReading(ctx, reading); err != nil {
			log.Warn("influx mirror write failed", zap.Error(err))
		}
	}

	log.Info("sensor data received",
		zap.Int64("id", reading.ID),
		zap.Float64p("temperature", reading.Temperature),
		zap.Float64p("humidity", reading.Humidity),
		zap.Time("timestamp", reading.Timestamp))
	return Result{Reading: reading}, nil
}

// timestamp picks the reading time: the gateway clock unless it is too far
// in the future, otherwise now.
func (i *Ingestor) timestamp(in messages.SensorDataInput, now time.Time, log *zap.Logger) time.Time {
	if in.Timestamp == nil {
		return now
	}
	ts := time.Unix(*in.Timestamp, 0).UTC()
	age := now.Sub(ts)
	switch {
	case age > LateAfter:
		log.Warn("late data received", zap.Float64("hours_old", age.Hours()))
	case age < -FutureSkew:
		log.Warn("future timestamp, using current time", zap.Duration("ahead", -age))
		return now
	}
	return ts
}

// IsSimulated marks the development nodes that report through the default gateway.
func IsSimulated(gatewayID, nodeID string) bool {
	if gatewayID != entities.DefaultGatewayID {
		return false
	}
	id := strings.ToLower(nodeID)
	return strings.Contains(id, "sim") || strings.Contains(id, "test")
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, messages.ErrMissingNodeID):
		return "missing_node_id"
	case errors.Is(err, messages.ErrMissingSoilMoisture):
		return "missing_soil_moisture"
	default:
		return "invalid_field"
	}
}
