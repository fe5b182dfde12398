// Package config loads the process configuration shared by every service.
//
// Values come from the environment, optionally seeded from a .env file in the
// working directory. Existing environment variables always win over .env.
// Each service only reads the sections it needs.
package config

import (
	"time"
)

type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`

	MQTT      MQTTConfig
	SQLite    SQLiteConfig
	Influx    InfluxConfig
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	Auth      AuthConfig
	Insights  InsightsConfig
	Gateway   GatewayConfig
	Publisher PublisherConfig
	Simulator SimulatorConfig
}

// MQTTConfig points at the broker (RabbitMQ with the MQTT plugin in deployment).
type MQTTConfig struct {
	Host        string `envconfig:"MQTT_HOST" default:"localhost" validate:"required"`
	Port        int    `envconfig:"MQTT_PORT" default:"1883" validate:"min=1,max=65535"`
	User        string `envconfig:"MQTT_USER"`
	Password    string `envconfig:"MQTT_PASSWORD"`
	ClientID    string `envconfig:"MQTT_CLIENT_ID"`
	SensorTopic string `envconfig:"MQTT_SENSOR_TOPIC" default:"sensor/data/#" validate:"required"`
	// Insight events go to <InsightTopic>/<node_id>.
	InsightTopic string `envconfig:"MQTT_INSIGHT_TOPIC" default:"insight" validate:"required"`
}

type SQLiteConfig struct {
	Path string `envconfig:"SQLITE_PATH" default:"greenhouse.db" validate:"required"`
}

// InfluxConfig is optional; the mirror is disabled when URL or token is empty.
type InfluxConfig struct {
	URL    string `envconfig:"INFLUX_URL" validate:"omitempty,url"`
	Token  string `envconfig:"INFLUX_TOKEN"`
	Org    string `envconfig:"INFLUX_ORG" default:"greenhouse"`
	Bucket string `envconfig:"INFLUX_BUCKET" default:"sensor-data"`
}

func (c InfluxConfig) Enabled() bool { return c.URL != "" && c.Token != "" }

type HTTPConfig struct {
	Addr                string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadHeaderTimeout   time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout     time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"5s"`
	IngestRatePerMinute int           `envconfig:"INGEST_RATE_PER_MINUTE" default:"100" validate:"min=1"`
}

type GRPCConfig struct {
	Addr string `envconfig:"GRPC_ADDR" default:":9090"`
}

// AuthConfig holds the static API token. An empty token disables auth.
type AuthConfig struct {
	Token string `envconfig:"API_TOKEN"`
}

type InsightsConfig struct {
	// Source selects where analysis windows are read from.
	Source string `envconfig:"INSIGHTS_SOURCE" default:"sqlite" validate:"oneof=sqlite influx"`
}

type GatewayConfig struct {
	ProbeTimeout    time.Duration `envconfig:"GATEWAY_PROBE_TIMEOUT" default:"500ms"`
	FallbackIP      string        `envconfig:"GATEWAY_FALLBACK_IP" default:"192.168.4.1" validate:"omitempty,ip"`
	BreakerFailures uint32        `envconfig:"GATEWAY_BREAKER_FAILURES" default:"3" validate:"min=1"`
	BreakerOpen     time.Duration `envconfig:"GATEWAY_BREAKER_OPEN" default:"30s"`
}

type PublisherConfig struct {
	Interval      time.Duration `envconfig:"PUBLISHER_INTERVAL" default:"5m"`
	WindowMinutes int           `envconfig:"PUBLISHER_WINDOW_MINUTES" default:"60" validate:"min=5,max=1440"`
	ActiveWithin  time.Duration `envconfig:"PUBLISHER_ACTIVE_WITHIN" default:"1h"`
	// An unchanged result for a node is published again only after RepeatAfter.
	RepeatAfter time.Duration `envconfig:"PUBLISHER_REPEAT_AFTER" default:"30m"`
}

type SimulatorConfig struct {
	Nodes     []string      `envconfig:"SIM_NODES" default:"sim-node-1,sim-node-2" validate:"min=1,dive,required"`
	GatewayID string        `envconfig:"SIM_GATEWAY_ID" default:"gateway-01"`
	Interval  time.Duration `envconfig:"SIM_INTERVAL" default:"30s"`
	Topic     string        `envconfig:"SIM_TOPIC" default:"sensor/data"`
	Seed      int64         `envconfig:"SIM_SEED"`
}
