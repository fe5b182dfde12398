package insight

import (
	"fmt"
	"sort"
	"strings"
)

const summaryAllClear = "All systems operating normally. No significant risks detected in the analyzed period."

// OverallRisk is the highest level among insights, LOW when there are none.
func OverallRisk(insights []Insight) RiskLevel {
	overall := RiskLow
	for _, in := range insights {
		switch in.RiskLevel {
		case RiskHigh:
			return RiskHigh
		case RiskMedium:
			overall = RiskMedium
		}
	}
	return overall
}

// SortByDetector orders insights drought, overwatering, temperature, sensor failure.
func SortByDetector(insights []Insight) {
	sort.SliceStable(insights, func(i, j int) bool {
		return detectorOrder[insights[i].Type] < detectorOrder[insights[j].Type]
	})
}

// Summarize builds the human readable summary. insights must already be in
// detector order.
func Summarize(insights []Insight) string {
	if len(insights) == 0 {
		return summaryAllClear
	}
	var high, medium int
	for _, in := range insights {
		switch in.RiskLevel {
		case RiskHigh:
			high++
		case RiskMedium:
			medium++
		}
	}
	parts := make([]string, 0, len(insights)+1)
	parts = append(parts, fmt.Sprintf("Detected %d insight(s): %d high-risk, %d medium-risk", len(insights), high, medium))
	for _, in := range insights {
		parts = append(parts, fmt.Sprintf("- %s: %s", in.Type, in.Explanation))
	}
	return strings.Join(parts, " ")
}
