package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

// Measurement is the InfluxDB measurement readings are written to.
const Measurement = "sensor_reading"

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxStore mirrors readings into InfluxDB and can serve analysis windows
// back out of it.
type InfluxStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

func NewInflux(cfg InfluxConfig) (*InfluxStore, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}, nil
}

func (s *InfluxStore) Close() { s.client.Close() }

// Ping reports whether the server is reachable.
func (s *InfluxStore) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

// WriteReading stores r as one point tagged by node and gateway.
func (s *InfluxStore) WriteReading(ctx context.Context, r entities.Reading) error {
	p := readingPoint(r)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influx write %s: %w", r.NodeID, err)
	}
	return nil
}

func readingPoint(r entities.Reading) *write.Point {
	tags := map[string]string{
		"node_id":    r.NodeID,
		"gateway_id": r.GatewayID,
	}
	fields := map[string]interface{}{}
	if r.Temperature != nil {
		fields["temperature"] = *r.Temperature
	}
	if r.Humidity != nil {
		fields["humidity"] = *r.Humidity
	}
	if r.SoilMoisture != nil {
		fields["soil_moisture"] = *r.SoilMoisture
	}
	if r.LightLevel != nil {
		fields["light_level"] = *r.LightLevel
	}
	if r.BatteryLevel != nil {
		fields["battery_level"] = int64(*r.BatteryLevel)
	}
	if r.RSSI != nil {
		fields["rssi"] = int64(*r.RSSI)
	}
	return influxdb2.NewPoint(Measurement, tags, fields, r.Timestamp)
}

// ReadingsInWindow rebuilds readings from the mirrored points, oldest first.
func (s *InfluxStore) ReadingsInWindow(ctx context.Context, nodeID string, since time.Time) ([]entities.Reading, error) {
	res, err := s.queryAPI.Query(ctx, buildWindowFlux(s.bucket, nodeID, since))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer res.Close()

	out := []entities.Reading{}
	for res.Next() {
		out = append(out, recordToReading(res.Record().Time(), res.Record().Values()))
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("influx iterate: %w", res.Err())
	}
	return out, nil
}

func buildWindowFlux(bucket, nodeID string, since time.Time) string {
	var nodeFilter string
	if nodeID != "" {
		nodeFilter = fmt.Sprintf("\n  |> filter(fn: (r) => r.node_id == %q)", nodeID)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == %q)%s
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"])
`, bucket, since.UTC().Format(time.RFC3339Nano), Measurement, nodeFilter)
}

func recordToReading(ts time.Time, values map[string]interface{}) entities.Reading {
	r := entities.Reading{
		NodeID:       stringValue(values["node_id"]),
		GatewayID:    stringValue(values["gateway_id"]),
		Temperature:  floatValue(values["temperature"]),
		Humidity:     floatValue(values["humidity"]),
		SoilMoisture: floatValue(values["soil_moisture"]),
		LightLevel:   floatValue(values["light_level"]),
		Timestamp:    ts.UTC(),
	}
	if v := floatValue(values["battery_level"]); v != nil {
		r.BatteryLevel = entities.Int(int(*v))
	}
	if v := floatValue(values["rssi"]); v != nil {
		r.RSSI = entities.Int(int(*v))
	}
	return r
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func floatValue(v interface{}) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case int64:
		f := float64(x)
		return &f
	case uint64:
		f := float64(x)
		return &f
	}
	return nil
}
