package insight

import (
	"fmt"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

const (
	overwaterCritical   = 90.0 // %
	overwaterHigh       = 80.0 // %
	overwaterHighAvg    = 75.0 // %
	poorDrainageRate    = -0.5 // %/h; anything above means not draining
	slowDrainageRate    = -1.0 // %/h
	overwaterMinSamples = 3
)

type overwaterInput struct {
	latest    float64
	avg       float64
	change    float64 // positive when getting wetter
	hasChange bool
}

var overwateringRules = []rule[overwaterInput]{
	{
		name: "critical",
		when: func(in overwaterInput) bool { return in.latest >= overwaterCritical },
		then: func(in overwaterInput) verdict {
			return verdict{RiskHigh,
				fmt.Sprintf("Critical overwatering detected: soil moisture at %.1f%% (critical threshold: %.1f%%). "+
					"Poor drainage may cause root rot.", in.latest, overwaterCritical),
				"Immediately stop irrigation. Check drainage system. " +
					"Consider improving soil drainage or reducing watering frequency by 70-80%. " +
					"Monitor for root rot symptoms."}
		},
	},
	{
		name: "poor_drainage",
		when: func(in overwaterInput) bool {
			return in.latest >= overwaterHigh && in.hasChange && in.change > poorDrainageRate
		},
		then: func(in overwaterInput) verdict {
			return verdict{RiskHigh,
				fmt.Sprintf("High soil moisture (%.1f%%) with poor drainage (moisture not decreasing: %.2f%%/hour)",
					in.latest, in.change),
				"Reduce irrigation frequency by 50-70%. Check drainage system. " +
					"Improve soil aeration and drainage capacity."}
		},
	},
	{
		name: "high",
		when: func(in overwaterInput) bool { return in.latest >= overwaterHigh },
		then: func(in overwaterInput) verdict {
			return verdict{RiskMedium,
				fmt.Sprintf("High soil moisture detected: %.1f%% (threshold: %.1f%%)", in.latest, overwaterHigh),
				"Reduce irrigation frequency by 30-50%. Monitor soil moisture levels. Ensure proper drainage."}
		},
	},
	{
		name: "consistently_high",
		when: func(in overwaterInput) bool {
			return in.avg >= overwaterHighAvg && in.hasChange && in.change > slowDrainageRate
		},
		then: func(in overwaterInput) verdict {
			return verdict{RiskMedium,
				fmt.Sprintf("Consistently high soil moisture (average: %.1f%%) with slow drainage (change rate: %.2f%%/hour)",
					in.avg, in.change),
				"Reduce irrigation frequency by 20-30%. Monitor drainage efficiency. " +
					"Consider improving soil structure for better drainage."}
		},
	},
}

// DetectOverwatering reports soil that stays wet. It needs at least three readings.
func DetectOverwatering(readings []entities.Reading) (Insight, bool) {
	if len(readings) < overwaterMinSamples || windowSpanHours(readings) <= 0 {
		return Insight{}, false
	}
	soil := SeriesOf(readings, soilOf)
	if len(soil) == 0 {
		return Insight{}, false
	}

	avg, _ := soil.Mean()
	in := overwaterInput{latest: soil.Last().Value, avg: avg}
	in.change, in.hasChange = soil.RatePerHour()

	v, _, ok := firstMatch(overwateringRules, in)
	if !ok {
		return Insight{}, false
	}
	out := Insight{
		Type:              TypeOverwateringRisk,
		RiskLevel:         v.risk,
		Explanation:       v.text,
		RecommendedAction: v.action,
		CurrentValue:      ptr(in.latest),
		AverageValue:      ptr(round2(in.avg)),
	}
	if in.hasChange {
		out.ChangeRatePerHour = ptr(round2(in.change))
	}
	return out, true
}
