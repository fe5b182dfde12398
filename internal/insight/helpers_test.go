package insight

import (
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// series builds one reading per value, step apart, starting at t0.
func series(step time.Duration, set func(*entities.Reading, float64), values ...float64) []entities.Reading {
	out := make([]entities.Reading, len(values))
	for i, v := range values {
		out[i] = entities.Reading{NodeID: "node-1", GatewayID: "gateway-01", Timestamp: t0.Add(time.Duration(i) * step)}
		set(&out[i], v)
	}
	return out
}

func setSoil(r *entities.Reading, v float64) { r.SoilMoisture = entities.Float(v) }
func setTemp(r *entities.Reading, v float64) { r.Temperature = entities.Float(v) }

func soilWindow(step time.Duration, values ...float64) []entities.Reading {
	return series(step, setSoil, values...)
}

func tempWindow(step time.Duration, values ...float64) []entities.Reading {
	return series(step, setTemp, values...)
}

func lastTimestamp(readings []entities.Reading) time.Time {
	return readings[len(readings)-1].Timestamp
}
