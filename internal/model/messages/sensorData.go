package messages

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

var (
	ErrMissingNodeID       = errors.New("either 'nodeId' or 'sensor_id' must be provided")
	ErrMissingSoilMoisture = errors.New("either 'soilMoisture' or 'soil_moisture' must be provided")
)

// SensorDataInput is the payload published by gateways, over MQTT or HTTP.
// Both the ESP32 camelCase fields and the snake_case fields are accepted.
type SensorDataInput struct {
	NodeID   string `json:"nodeId,omitempty"`
	SensorID string `json:"sensor_id,omitempty"`

	GatewayIDCamel string `json:"gatewayId,omitempty"`
	GatewayID      string `json:"gateway_id,omitempty"`

	Temperature *float64 `json:"temperature" validate:"required,gte=-50,lte=100"`
	Humidity    *float64 `json:"humidity" validate:"required,gte=0,lte=100"`

	SoilMoistureCamel *float64 `json:"soilMoisture,omitempty" validate:"omitempty,gte=0,lte=100"`
	SoilMoisture      *float64 `json:"soil_moisture,omitempty" validate:"omitempty,gte=0,lte=100"`

	BatteryLevel *int     `json:"batteryLevel,omitempty"`
	RSSI         *int     `json:"rssi,omitempty"`
	Timestamp    *int64   `json:"timestamp,omitempty"` // unix seconds from the gateway clock
	LightLevel   *float64 `json:"light_level,omitempty" validate:"omitempty,gte=0"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New(validator.WithRequiredStructEnabled()) })
	return validate
}

// Validate checks ranges and that a node id and a soil moisture value are present.
func (in *SensorDataInput) Validate() error {
	if err := inputValidator().Struct(in); err != nil {
		return fmt.Errorf("field validation: %w", err)
	}
	if in.NodeKey() == "" {
		return ErrMissingNodeID
	}
	if in.Soil() == nil {
		return ErrMissingSoilMoisture
	}
	return nil
}

// NodeKey returns nodeId, falling back to sensor_id.
func (in *SensorDataInput) NodeKey() string {
	if s := strings.TrimSpace(in.NodeID); s != "" {
		return s
	}
	return strings.TrimSpace(in.SensorID)
}

// GatewayKey returns gatewayId, then gateway_id, then the default gateway.
func (in *SensorDataInput) GatewayKey() string {
	if s := strings.TrimSpace(in.GatewayIDCamel); s != "" {
		return s
	}
	if s := strings.TrimSpace(in.GatewayID); s != "" {
		return s
	}
	return entities.DefaultGatewayID
}

// Soil returns soilMoisture, falling back to soil_moisture.
func (in *SensorDataInput) Soil() *float64 {
	if in.SoilMoistureCamel != nil {
		return in.SoilMoistureCamel
	}
	return in.SoilMoisture
}

// ToReading builds the reading stored for this payload at the given timestamp.
func (in *SensorDataInput) ToReading(ts time.Time) entities.Reading {
	return entities.Reading{
		NodeID:       in.NodeKey(),
		GatewayID:    in.GatewayKey(),
		Temperature:  in.Temperature,
		Humidity:     in.Humidity,
		SoilMoisture: in.Soil(),
		LightLevel:   in.LightLevel,
		BatteryLevel: in.BatteryLevel,
		RSSI:         in.RSSI,
		Timestamp:    ts.UTC(),
	}
}
