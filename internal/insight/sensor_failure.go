package insight

import (
	"fmt"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

const (
	staleAfter          = 60 * time.Second
	missingAfter        = 15 * time.Minute
	constantMinSamples  = 5
	constantMaxVariance = 0.1
	tempValidMin        = -50.0
	tempValidMax        = 100.0
	soilValidMin        = 0.0
	soilValidMax        = 100.0
)

type failureInput struct {
	readings []entities.Reading
	latest   entities.Reading
	nodeID   string
	age      time.Duration
	temps    Series
	soil     Series
}

func (in failureInput) nodeSuffix() string {
	if in.nodeID == "" {
		return ""
	}
	return fmt.Sprintf(" (node: %s)", in.nodeID)
}

func (in failureInput) stuck(s Series) bool {
	return len(in.readings) >= constantMinSamples && len(s) >= constantMinSamples &&
		StdDev(s.Values()) < constantMaxVariance
}

var sensorFailureRules = []rule[failureInput]{
	{
		name: PatternStaleData,
		when: func(in failureInput) bool { return in.age > staleAfter },
		then: func(in failureInput) verdict {
			risk := RiskMedium
			if in.age > missingAfter {
				risk = RiskHigh
			}
			return verdict{risk,
				fmt.Sprintf("Stale sensor data detected: last reading is %.1f minutes old (threshold: %ds)",
					in.age.Minutes(), int(staleAfter.Seconds())) + in.nodeSuffix(),
				"Check sensor connectivity and communication. Verify sensor is powered. " +
					"Check gateway connectivity if using wireless sensors. Inspect sensor hardware."}
		},
	},
	{
		name: PatternConstantTemperature,
		when: func(in failureInput) bool { return in.stuck(in.temps) },
		then: func(in failureInput) verdict {
			return verdict{RiskMedium,
				fmt.Sprintf("Temperature sensor appears stuck: constant value %.1f°C (variation: %.3f°C)",
					in.temps.Last().Value, StdDev(in.temps.Values())) + in.nodeSuffix(),
				"Temperature sensor may be malfunctioning. Check sensor hardware. " +
					"Verify sensor is not disconnected or damaged. Replace sensor if needed."}
		},
	},
	{
		name: PatternConstantSoilMoisture,
		when: func(in failureInput) bool { return in.stuck(in.soil) },
		then: func(in failureInput) verdict {
			return verdict{RiskMedium,
				fmt.Sprintf("Soil moisture sensor appears stuck: constant value %.1f%% (variation: %.3f%%)",
					in.soil.Last().Value, StdDev(in.soil.Values())) + in.nodeSuffix(),
				"Soil moisture sensor may be malfunctioning. Check sensor placement and connections. " +
					"Verify sensor is not damaged or disconnected. Clean sensor if needed."}
		},
	},
	{
		name: PatternUnrealisticTemp,
		when: func(in failureInput) bool {
			t := in.latest.Temperature
			return t != nil && (*t < tempValidMin || *t > tempValidMax)
		},
		then: func(in failureInput) verdict {
			return verdict{RiskHigh,
				fmt.Sprintf("Unrealistic temperature value: %.1f°C", *in.latest.Temperature) + in.nodeSuffix(),
				"Temperature sensor reading is outside valid range. Check sensor calibration. " +
					"Replace sensor if hardware issue is confirmed."}
		},
	},
	{
		name: PatternUnrealisticSoil,
		when: func(in failureInput) bool {
			s := in.latest.SoilMoisture
			return s != nil && (*s < soilValidMin || *s > soilValidMax)
		},
		then: func(in failureInput) verdict {
			return verdict{RiskHigh,
				fmt.Sprintf("Unrealistic soil moisture value: %.1f%%", *in.latest.SoilMoisture) + in.nodeSuffix(),
				"Soil moisture sensor reading is outside valid range (0-100%). " +
					"Check sensor calibration and connections. Replace sensor if needed."}
		},
	},
}

// DetectSensorFailure looks for missing, stale, stuck or impossible data.
// Unlike the other detectors it also runs on an empty window.
func DetectSensorFailure(readings []entities.Reading, nodeID string, now time.Time) (Insight, bool) {
	in := failureInput{readings: readings, nodeID: nodeID}
	if len(readings) == 0 {
		return Insight{
			Type:        TypeSensorFailure,
			RiskLevel:   RiskHigh,
			Explanation: "No sensor data available for the requested time period" + in.nodeSuffix(),
			RecommendedAction: "Check sensor connectivity and power supply. " +
				"Verify sensor hardware. Check network connectivity if using wireless sensors.",
			FailurePattern: PatternNoData,
		}, true
	}

	in.latest = readings[len(readings)-1]
	in.age = now.Sub(in.latest.Timestamp)
	in.temps = SeriesOf(readings, temperatureOf)
	in.soil = SeriesOf(readings, soilOf)

	v, pattern, ok := firstMatch(sensorFailureRules, in)
	if !ok {
		return Insight{}, false
	}
	out := Insight{
		Type:              TypeSensorFailure,
		RiskLevel:         v.risk,
		Explanation:       v.text,
		RecommendedAction: v.action,
		FailurePattern:    pattern,
	}
	switch pattern {
	case PatternStaleData:
		out.DataAgeSeconds = ptr(int64(in.age.Seconds()))
	case PatternConstantTemperature:
		out.ConstantValue = ptr(in.temps.Last().Value)
	case PatternConstantSoilMoisture:
		out.ConstantValue = ptr(in.soil.Last().Value)
	case PatternUnrealisticTemp:
		out.InvalidValue = ptr(*in.latest.Temperature)
	case PatternUnrealisticSoil:
		out.InvalidValue = ptr(*in.latest.SoilMoisture)
	}
	return out, true
}
