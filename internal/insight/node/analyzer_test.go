package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/store"
)

var now = time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	week      []entities.Reading
	latestErr error
	windowErr error
	gotSince  time.Time
}

func (f *fakeSource) ReadingsInWindow(_ context.Context, _ string, since time.Time) ([]entities.Reading, error) {
	f.gotSince = since
	return f.week, f.windowErr
}

func (f *fakeSource) Latest(context.Context, string) (*entities.Reading, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return &f.week[len(f.week)-1], nil
}

func reading(ago time.Duration, temp, hum, soil float64) entities.Reading {
	return entities.Reading{
		NodeID:       "node-1",
		Timestamp:    now.Add(-ago),
		Temperature:  entities.Float(temp),
		Humidity:     entities.Float(hum),
		SoilMoisture: entities.Float(soil),
	}
}

func sampleWeek() []entities.Reading {
	return []entities.Reading{
		reading(20*time.Hour, 30, 80, 40),
		reading(72*time.Hour, 10, 50, 60),
		reading(10*time.Hour, 32, 78, 38),
		reading(0, 34, 76, 36),
	}
}

func f(v float64) *float64 { return &v }

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics(sampleWeek(), now)

	require.NotNil(t, m.AvgTemp24h)
	assert.InDelta(t, 32.0, *m.AvgTemp24h, 1e-9)
	assert.InDelta(t, 26.5, *m.AvgTemp7d, 1e-9)
	assert.InDelta(t, 0.2, *m.TempRatePerHour, 1e-9)
	assert.InDelta(t, 4.8, *m.SoilMoistureDropPerDay, 1e-9)
	assert.InDelta(t, 78.0, *m.AvgHumidity24h, 1e-9)
	assert.InDelta(t, 38.0, *m.AvgSoilMoisture24h, 1e-9)
}

func TestComputeMetricsSparseDay(t *testing.T) {
	m := ComputeMetrics([]entities.Reading{reading(48*time.Hour, 20, 50, 50), reading(time.Hour, 22, 50, 50)}, now)

	assert.InDelta(t, 22.0, *m.AvgTemp24h, 1e-9)
	assert.InDelta(t, 21.0, *m.AvgTemp7d, 1e-9)
	assert.Nil(t, m.TempRatePerHour, "one reading in the last day has no rate")
	assert.Nil(t, m.SoilMoistureDropPerDay)
}

func TestDetectConditions(t *testing.T) {
	tests := []struct {
		name string
		m    Metrics
		want []Condition
	}{
		{"overheating high", Metrics{AvgTemp24h: f(39)}, []Condition{{Overheating, SeverityHigh}}},
		{"overheating medium", Metrics{AvgTemp24h: f(37)}, []Condition{{Overheating, SeverityMedium}}},
		{"overheating low", Metrics{AvgTemp24h: f(35.5)}, []Condition{{Overheating, SeverityLow}}},
		{"rapid heating", Metrics{AvgTemp24h: f(25), TempRatePerHour: f(1.2)}, []Condition{{RapidHeating, SeverityMedium}}},
		{"slow heating", Metrics{AvgTemp24h: f(25), TempRatePerHour: f(0.4)}, nil},
		{"soil depletion by rate", Metrics{AvgTemp24h: f(25), SoilMoistureDropPerDay: f(12)}, []Condition{{SoilDepletion, SeverityHigh}}},
		{"soil depletion by low average", Metrics{AvgTemp24h: f(25), SoilMoistureDropPerDay: f(1), AvgSoilMoisture24h: f(25)},
			[]Condition{{SoilDepletion, SeverityHigh}}},
		{"soil depletion medium", Metrics{AvgTemp24h: f(25), SoilMoistureDropPerDay: f(6), AvgSoilMoisture24h: f(50)},
			[]Condition{{SoilDepletion, SeverityMedium}}},
		{"soil getting wetter", Metrics{AvgTemp24h: f(25), SoilMoistureDropPerDay: f(-8), AvgSoilMoisture24h: f(10)}, nil},
		{"fungal high", Metrics{AvgTemp24h: f(25), AvgHumidity24h: f(76)}, []Condition{{FungalRisk, SeverityHigh}}},
		{"fungal medium", Metrics{AvgTemp24h: f(20), AvgHumidity24h: f(70)}, []Condition{{FungalRisk, SeverityMedium}}},
		{"too warm for fungus", Metrics{AvgTemp24h: f(31), AvgHumidity24h: f(90)}, nil},
		{"ordered", Metrics{AvgTemp24h: f(37), TempRatePerHour: f(2), SoilMoistureDropPerDay: f(4), AvgSoilMoisture24h: f(60)},
			[]Condition{{Overheating, SeverityMedium}, {RapidHeating, SeverityHigh}, {SoilDepletion, SeverityLow}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectConditions(tc.m))
		})
	}
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		name  string
		found []Condition
		want  Severity
	}{
		{"none", nil, SeverityLow},
		{"one high", []Condition{{Overheating, SeverityHigh}}, SeverityHigh},
		{"two medium", []Condition{{Overheating, SeverityMedium}, {FungalRisk, SeverityMedium}}, SeverityHigh},
		{"one medium", []Condition{{Overheating, SeverityMedium}, {RapidHeating, SeverityLow}}, SeverityMedium},
		{"three low", []Condition{{Overheating, SeverityLow}, {RapidHeating, SeverityLow}, {SoilDepletion, SeverityLow}}, SeverityMedium},
		{"two low", []Condition{{Overheating, SeverityLow}, {RapidHeating, SeverityLow}}, SeverityLow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RiskLevel(tc.found))
		})
	}
}

func TestEvaluate(t *testing.T) {
	res := Evaluate("node-3", Metrics{AvgTemp24h: f(37), TempRatePerHour: f(2)})

	assert.Equal(t, SeverityHigh, res.RiskLevel)
	assert.Equal(t, "Node node-3: Overheating detected (avg temp: 37.0°C); Rapid temperature increase (2.0°C/hour)", res.Summary)
	assert.Equal(t, []string{
		"Start ventilation 30 minutes earlier than usual",
		"Increase ventilation frequency by 50%",
		"Immediate ventilation required - temperature rising rapidly",
		"Check for heating system malfunction",
	}, res.Recommendations)
}

func TestEvaluateAllNormal(t *testing.T) {
	res := Evaluate("node-3", Metrics{AvgTemp24h: f(24), AvgHumidity24h: f(55)})

	assert.Equal(t, SeverityLow, res.RiskLevel)
	assert.Equal(t, "Node node-3: All conditions normal. Greenhouse operating within optimal parameters.", res.Summary)
	assert.Equal(t, []string{"All systems operating within normal parameters"}, res.Recommendations)
	assert.Empty(t, res.Conditions)
}

func TestEvaluateInsufficientData(t *testing.T) {
	res := Evaluate("node-3", Metrics{AvgHumidity24h: f(55)})

	assert.Equal(t, SeverityLow, res.RiskLevel)
	assert.Contains(t, res.Summary, "Insufficient data for analysis")
	assert.Equal(t, []string{"Collect more sensor data for accurate analysis"}, res.Recommendations)
	assert.Equal(t, 55.0, *res.Metrics.AvgHumidity24h)
}

func TestAnalyzeNode(t *testing.T) {
	src := &fakeSource{week: sampleWeek()}
	a := NewAnalyzer(src, func() time.Time { return now })

	res, err := a.AnalyzeNode(context.Background(), "node-1")
	require.NoError(t, err)

	assert.Equal(t, now.Add(-LongHorizon), src.gotSince)
	assert.Equal(t, "Node node-1: Rapid soil moisture depletion (4.8%/day)", res.Summary)
	assert.Equal(t, SeverityLow, res.RiskLevel)
	assert.Equal(t, []string{"Increase irrigation frequency by 10%"}, res.Recommendations)
}

func TestAnalyzeNodeUnknown(t *testing.T) {
	a := NewAnalyzer(&fakeSource{latestErr: store.ErrNotFound}, nil)

	res, err := a.AnalyzeNode(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, "Node ghost: No data available", res.Summary)
	assert.Equal(t, SeverityLow, res.RiskLevel)
	assert.Equal(t, []string{"No sensor data found for this node"}, res.Recommendations)
}

func TestAnalyzeNodeStoreErrors(t *testing.T) {
	boom := errors.New("locked")

	_, err := NewAnalyzer(&fakeSource{latestErr: boom}, nil).AnalyzeNode(context.Background(), "node-1")
	assert.ErrorIs(t, err, boom)

	_, err = NewAnalyzer(&fakeSource{week: sampleWeek(), windowErr: boom}, nil).AnalyzeNode(context.Background(), "node-1")
	assert.ErrorIs(t, err, boom)
}
