package node

import (
	"sort"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/insight"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

const (
	ShortHorizon = 24 * time.Hour
	LongHorizon  = 7 * 24 * time.Hour
)

// Metrics are the long-horizon aggregates of one node. A nil field means
// there was not enough data to compute it.
type Metrics struct {
	AvgTemp24h             *float64 `json:"avg_temp_24h,omitempty"`
	AvgTemp7d              *float64 `json:"avg_temp_7d,omitempty"`
	TempRatePerHour        *float64 `json:"temp_rate_per_hour,omitempty"`
	SoilMoistureDropPerDay *float64 `json:"soil_moisture_drop_per_day,omitempty"`
	AvgHumidity24h         *float64 `json:"avg_humidity_24h,omitempty"`
	AvgSoilMoisture24h     *float64 `json:"avg_soil_moisture_24h,omitempty"`
}

func temperature(r entities.Reading) *float64 { return r.Temperature }
func humidity(r entities.Reading) *float64    { return r.Humidity }
func soil(r entities.Reading) *float64        { return r.SoilMoisture }

// ComputeMetrics aggregates a seven day window. The last day of it is used
// for the short-horizon figures.
func ComputeMetrics(week []entities.Reading, now time.Time) Metrics {
	sorted := make([]entities.Reading, len(week))
	copy(sorted, week)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	cutoff := now.Add(-ShortHorizon)
	start := sort.Search(len(sorted), func(i int) bool { return !sorted[i].Timestamp.Before(cutoff) })
	day := sorted[start:]

	var m Metrics
	m.AvgTemp7d = meanOf(sorted, temperature)
	m.AvgTemp24h = meanOf(day, temperature)
	m.AvgHumidity24h = meanOf(day, humidity)
	m.AvgSoilMoisture24h = meanOf(day, soil)

	if temps := insight.SeriesOf(day, temperature); len(temps) >= 2 {
		if rate, ok := temps.RatePerHour(); ok {
			m.TempRatePerHour = &rate
		}
	}
	if moisture := insight.SeriesOf(day, soil); len(moisture) >= 2 {
		if rate, ok := moisture.RatePerHour(); ok {
			drop := -rate * 24
			m.SoilMoistureDropPerDay = &drop
		}
	}
	return m
}

func meanOf(readings []entities.Reading, field func(entities.Reading) *float64) *float64 {
	mean, ok := insight.SeriesOf(readings, field).Mean()
	if !ok {
		return nil
	}
	return &mean
}
