package insight

import (
	"fmt"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

const (
	droughtCritical      = 20.0 // %
	droughtLow           = 30.0 // %
	droughtRapidDrop     = 3.0  // %/h, combined with a low reading
	droughtDecliningDrop = 5.0  // %/h
	droughtDecliningCap  = 40.0 // %
)

const (
	droughtActionHigh = "Immediate irrigation required. Check irrigation system for blockages. " +
		"Consider increasing watering frequency by 50-100%."
	droughtActionMedium = "Increase irrigation frequency by 30-50%. Monitor soil moisture closely. " +
		"Check if irrigation system is functioning properly."
)

type droughtInput struct {
	latest  float64
	drop    float64 // positive when drying out
	hasDrop bool
}

var droughtRules = []rule[droughtInput]{
	{
		name: "critical",
		when: func(in droughtInput) bool { return in.latest <= droughtCritical },
		then: func(in droughtInput) verdict {
			return verdict{RiskHigh, fmt.Sprintf("Critical soil moisture level: %.1f%% (critical threshold: %.1f%%)",
				in.latest, droughtCritical), droughtActionHigh}
		},
	},
	{
		name: "low_rapid_decline",
		when: func(in droughtInput) bool {
			return in.latest <= droughtLow && in.hasDrop && in.drop > droughtRapidDrop
		},
		then: func(in droughtInput) verdict {
			return verdict{RiskHigh, fmt.Sprintf("Low soil moisture (%.1f%%) with rapid decline (%.1f%%/hour)",
				in.latest, in.drop), droughtActionHigh}
		},
	},
	{
		name: "low",
		when: func(in droughtInput) bool { return in.latest <= droughtLow },
		then: func(in droughtInput) verdict {
			return verdict{RiskMedium, fmt.Sprintf("Low soil moisture detected: %.1f%% (threshold: %.1f%%)",
				in.latest, droughtLow), droughtActionMedium}
		},
	},
	{
		name: "declining_rapidly",
		when: func(in droughtInput) bool {
			return in.hasDrop && in.drop > droughtDecliningDrop && in.latest < droughtDecliningCap
		},
		then: func(in droughtInput) verdict {
			return verdict{RiskMedium, fmt.Sprintf("Soil moisture declining rapidly (%.1f%%/hour), currently at %.1f%%",
				in.drop, in.latest), droughtActionMedium}
		},
	},
}

// DetectDrought reports drying soil. It needs at least two readings spanning
// some time and at least one soil moisture value.
func DetectDrought(readings []entities.Reading) (Insight, bool) {
	if len(readings) < 2 || windowSpanHours(readings) <= 0 {
		return Insight{}, false
	}
	soil := SeriesOf(readings, soilOf)
	if len(soil) == 0 {
		return Insight{}, false
	}

	in := droughtInput{latest: soil.Last().Value}
	if rate, ok := soil.RatePerHour(); ok {
		in.drop, in.hasDrop = -rate, true
	}

	v, _, ok := firstMatch(droughtRules, in)
	if !ok {
		return Insight{}, false
	}
	out := Insight{
		Type:              TypeDroughtRisk,
		RiskLevel:         v.risk,
		Explanation:       v.text,
		RecommendedAction: v.action,
		CurrentValue:      ptr(in.latest),
	}
	if in.hasDrop {
		out.DropRatePerHour = ptr(round2(in.drop))
	}
	return out, true
}
