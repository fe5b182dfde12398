package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

func TestMean(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok)

	m, ok := Mean([]float64{1, 2, 3, 6})
	require.True(t, ok)
	assert.InDelta(t, 3.0, m, 1e-9)
}

func TestMinMax(t *testing.T) {
	_, _, ok := MinMax(nil)
	assert.False(t, ok)

	minV, maxV, ok := MinMax([]float64{4, -2, 9, 0})
	require.True(t, ok)
	assert.Equal(t, -2.0, minV)
	assert.Equal(t, 9.0, maxV)
}

func TestRatePerHour(t *testing.T) {
	rate, ok := RatePerHour(50, 35, t0, t0.Add(2*time.Hour))
	require.True(t, ok)
	assert.InDelta(t, -7.5, rate, 1e-9)

	_, ok = RatePerHour(50, 35, t0, t0)
	assert.False(t, ok, "zero span has no rate")

	_, ok = RatePerHour(50, 35, t0, t0.Add(-time.Minute))
	assert.False(t, ok, "negative span has no rate")
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{42}))
	assert.Equal(t, 0.0, StdDev([]float64{25, 25, 25, 25, 25}))
	assert.InDelta(t, 2.1381, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-4)
}

func TestSeriesOfSkipsMissingValues(t *testing.T) {
	readings := []entities.Reading{
		{Timestamp: t0, SoilMoisture: entities.Float(40)},
		{Timestamp: t0.Add(time.Hour)},
		{Timestamp: t0.Add(2 * time.Hour), SoilMoisture: entities.Float(30)},
	}
	s := SeriesOf(readings, soilOf)
	require.Len(t, s, 2)
	assert.Equal(t, []float64{40, 30}, s.Values())

	rate, ok := s.RatePerHour()
	require.True(t, ok)
	assert.InDelta(t, -5.0, rate, 1e-9)
}

func TestSeriesSingleSample(t *testing.T) {
	s := SeriesOf(soilWindow(time.Hour, 33), soilOf)
	mean, ok := s.Mean()
	require.True(t, ok)
	assert.Equal(t, 33.0, mean)

	_, ok = s.RatePerHour()
	assert.False(t, ok)
}
