package entities

import "time"

// Reading is one observation reported by a sensor node and relayed by a gateway.
// Numeric values are optional: a nil pointer means the node did not report it.
type Reading struct {
	ID           int64     `json:"id"`
	NodeID       string    `json:"node_id"`
	GatewayID    string    `json:"gateway_id"`
	Temperature  *float64  `json:"temperature"`   // °C
	Humidity     *float64  `json:"humidity"`      // %
	SoilMoisture *float64  `json:"soil_moisture"` // %
	LightLevel   *float64  `json:"light_level,omitempty"`
	BatteryLevel *int      `json:"battery_level,omitempty"` // 0..100
	RSSI         *int      `json:"rssi,omitempty"`          // dBm
	Timestamp    time.Time `json:"timestamp"`
}

// AgeSeconds returns how old the reading is relative to now.
func (r Reading) AgeSeconds(now time.Time) float64 {
	return now.Sub(r.Timestamp).Seconds()
}

// Float returns a pointer to v, handy for building readings by hand.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
