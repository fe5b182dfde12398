package insight

import (
	"fmt"
	"math"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

const (
	tempMinOptimal   = 18.0 // °C
	tempMaxOptimal   = 32.0 // °C
	tempStressHigh   = 35.0 // °C
	tempCriticalHigh = 38.0 // °C
	tempCriticalLow  = 10.0 // °C
	tempRateRisky    = 2.0  // °C/h
	tempSustainedGap = 2.0  // °C past the optimal band for the sustained branches
)

type temperatureInput struct {
	latest, avg, min, max float64
	rate                  float64
	hasRate               bool
}

// Order matters: the rapid-change rule only fires when no range rule does.
var temperatureRules = []rule[temperatureInput]{
	{
		name: "critical_high",
		when: func(in temperatureInput) bool { return in.latest >= tempCriticalHigh },
		then: func(in temperatureInput) verdict {
			return verdict{RiskHigh,
				fmt.Sprintf("Critical high temperature: %.1f°C (critical threshold: %.1f°C)", in.latest, tempCriticalHigh),
				"Immediate cooling required. Activate emergency ventilation and cooling systems. " +
					"Consider shading. Monitor plants for heat stress symptoms."}
		},
	},
	{
		name: "high_rising",
		when: func(in temperatureInput) bool {
			return in.latest >= tempStressHigh && in.hasRate && in.rate > tempRateRisky
		},
		then: func(in temperatureInput) verdict {
			return verdict{RiskHigh,
				fmt.Sprintf("High temperature (%.1f°C) with rapid increase (%.1f°C/hour)", in.latest, in.rate),
				"Activate cooling systems immediately. Increase ventilation to maximum. " +
					"Check for heating system malfunction. Monitor temperature every 15 minutes."}
		},
	},
	{
		name: "high",
		when: func(in temperatureInput) bool { return in.latest >= tempStressHigh },
		then: func(in temperatureInput) verdict {
			return verdict{RiskMedium,
				fmt.Sprintf("High temperature detected: %.1f°C (threshold: %.1f°C)", in.latest, tempStressHigh),
				"Increase ventilation. Activate cooling systems if available. " +
					"Start ventilation earlier and increase frequency."}
		},
	},
	{
		name: "sustained_above_optimal",
		when: func(in temperatureInput) bool {
			return in.latest > tempMaxOptimal && in.avg > tempMaxOptimal+tempSustainedGap
		},
		then: func(in temperatureInput) verdict {
			return verdict{RiskMedium,
				fmt.Sprintf("Sustained above-optimal temperature (avg: %.1f°C, current: %.1f°C)", in.avg, in.latest),
				"Increase ventilation frequency. Consider starting cooling earlier. Monitor for plant stress signs."}
		},
	},
	{
		name: "above_optimal",
		when: func(in temperatureInput) bool { return in.latest > tempMaxOptimal },
		then: func(in temperatureInput) verdict {
			return verdict{RiskLow,
				fmt.Sprintf("Temperature slightly above optimal range (current: %.1f°C, optimal max: %.1f°C)",
					in.latest, tempMaxOptimal),
				"Increase ventilation. Monitor temperature trends."}
		},
	},
	{
		name: "critical_low",
		when: func(in temperatureInput) bool { return in.latest <= tempCriticalLow },
		then: func(in temperatureInput) verdict {
			return verdict{RiskHigh,
				fmt.Sprintf("Critical low temperature: %.1f°C (threshold: %.1f°C)", in.latest, tempCriticalLow),
				"Immediate heating required. Check heating system. Protect plants from frost. " +
					"Monitor for cold damage symptoms."}
		},
	},
	{
		name: "sustained_below_optimal",
		when: func(in temperatureInput) bool {
			return in.latest < tempMinOptimal && in.avg < tempMinOptimal-tempSustainedGap
		},
		then: func(in temperatureInput) verdict {
			return verdict{RiskMedium,
				fmt.Sprintf("Sustained below-optimal temperature (avg: %.1f°C, current: %.1f°C)", in.avg, in.latest),
				"Increase heating. Check heating system efficiency. Monitor plants for slow growth or stress."}
		},
	},
	{
		name: "below_optimal",
		when: func(in temperatureInput) bool { return in.latest < tempMinOptimal },
		then: func(in temperatureInput) verdict {
			return verdict{RiskLow,
				fmt.Sprintf("Temperature slightly below optimal range (current: %.1f°C, optimal min: %.1f°C)",
					in.latest, tempMinOptimal),
				"Slight heating increase recommended. Monitor temperature."}
		},
	},
	{
		name: "rapid_change",
		when: func(in temperatureInput) bool { return in.hasRate && math.Abs(in.rate) > tempRateRisky },
		then: func(in temperatureInput) verdict {
			direction := "decreasing"
			if in.rate > 0 {
				direction = "increasing"
			}
			return verdict{RiskMedium,
				fmt.Sprintf("Rapid temperature change: %.1f°C/hour (%s)", math.Abs(in.rate), direction),
				fmt.Sprintf("Temperature %s rapidly. Check for system malfunction. "+
					"Stabilize temperature gradually. Monitor closely.", direction)}
		},
	},
}

// DetectTemperatureStress reports temperatures outside the optimal band or
// changing too quickly. It needs at least two readings spanning some time.
func DetectTemperatureStress(readings []entities.Reading) (Insight, bool) {
	if len(readings) < 2 || windowSpanHours(readings) <= 0 {
		return Insight{}, false
	}
	temps := SeriesOf(readings, temperatureOf)
	if len(temps) == 0 {
		return Insight{}, false
	}

	values := temps.Values()
	avg, _ := Mean(values)
	minV, maxV, _ := MinMax(values)
	in := temperatureInput{latest: temps.Last().Value, avg: avg, min: minV, max: maxV}
	in.rate, in.hasRate = temps.RatePerHour()

	v, _, ok := firstMatch(temperatureRules, in)
	if !ok {
		return Insight{}, false
	}
	out := Insight{
		Type:              TypeTemperatureStress,
		RiskLevel:         v.risk,
		Explanation:       v.text,
		RecommendedAction: v.action,
		CurrentValue:      ptr(in.latest),
		AverageValue:      ptr(round2(in.avg)),
		MinValue:          ptr(in.min),
		MaxValue:          ptr(in.max),
	}
	if in.hasRate {
		out.ChangeRatePerHour = ptr(round2(in.rate))
	}
	return out, true
}
