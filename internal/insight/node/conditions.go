package node

import "fmt"

// Severity grades a single condition and the overall node risk.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

const (
	Overheating   = "overheating"
	RapidHeating  = "rapid_heating"
	SoilDepletion = "soil_depletion"
	FungalRisk    = "fungal_risk"
)

const (
	overheatThreshold  = 35.0 // °C, 24h average
	overheatMedium     = 36.0
	overheatHigh       = 38.0
	heatingRateLow     = 0.5 // °C/h
	heatingRateMedium  = 1.0
	heatingRateHigh    = 1.5
	soilDropLow        = 3.0 // %/day
	soilDropMedium     = 5.0
	soilDropHigh       = 10.0
	soilLowAverage     = 30.0 // %
	fungalHumidity     = 70.0 // %
	fungalHumidityHigh = 75.0
	fungalTempMin      = 20.0 // °C
	fungalTempMax      = 30.0
)

// Condition is one detected long-horizon condition.
type Condition struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
}

type condition struct {
	name    string
	detect  func(Metrics) (Severity, bool)
	summary func(Metrics) string
}

// conditions are evaluated in this order; each contributes at most one entry.
var conditions = []condition{
	{
		name: Overheating,
		detect: func(m Metrics) (Severity, bool) {
			if m.AvgTemp24h == nil || *m.AvgTemp24h <= overheatThreshold {
				return "", false
			}
			switch t := *m.AvgTemp24h; {
			case t > overheatHigh:
				return SeverityHigh, true
			case t > overheatMedium:
				return SeverityMedium, true
			}
			return SeverityLow, true
		},
		summary: func(m Metrics) string {
			return fmt.Sprintf("Overheating detected (avg temp: %.1f°C)", *m.AvgTemp24h)
		},
	},
	{
		name: RapidHeating,
		detect: func(m Metrics) (Severity, bool) {
			if m.TempRatePerHour == nil {
				return "", false
			}
			switch r := *m.TempRatePerHour; {
			case r > heatingRateHigh:
				return SeverityHigh, true
			case r > heatingRateMedium:
				return SeverityMedium, true
			case r > heatingRateLow:
				return SeverityLow, true
			}
			return "", false
		},
		summary: func(m Metrics) string {
			return fmt.Sprintf("Rapid temperature increase (%.1f°C/hour)", *m.TempRatePerHour)
		},
	},
	{
		name: SoilDepletion,
		detect: func(m Metrics) (Severity, bool) {
			if m.SoilMoistureDropPerDay == nil || *m.SoilMoistureDropPerDay <= 0 {
				return "", false
			}
			drop := *m.SoilMoistureDropPerDay
			switch {
			case drop > soilDropHigh || (m.AvgSoilMoisture24h != nil && *m.AvgSoilMoisture24h < soilLowAverage):
				return SeverityHigh, true
			case drop > soilDropMedium:
				return SeverityMedium, true
			case drop > soilDropLow:
				return SeverityLow, true
			}
			return "", false
		},
		summary: func(m Metrics) string {
			return fmt.Sprintf("Rapid soil moisture depletion (%.1f%%/day)", *m.SoilMoistureDropPerDay)
		},
	},
	{
		name: FungalRisk,
		detect: func(m Metrics) (Severity, bool) {
			if m.AvgTemp24h == nil || m.AvgHumidity24h == nil {
				return "", false
			}
			h, t := *m.AvgHumidity24h, *m.AvgTemp24h
			if h < fungalHumidity || t < fungalTempMin || t > fungalTempMax {
				return "", false
			}
			if h >= fungalHumidityHigh {
				return SeverityHigh, true
			}
			return SeverityMedium, true
		},
		summary: func(m Metrics) string {
			return fmt.Sprintf("High humidity conditions (%.1f%%) - fungal risk", *m.AvgHumidity24h)
		},
	},
}

var recommendations = map[Condition][]string{
	{Overheating, SeverityHigh}: {
		"Activate emergency cooling systems immediately",
		"Increase ventilation to maximum capacity",
	},
	{Overheating, SeverityMedium}: {
		"Start ventilation 30 minutes earlier than usual",
		"Increase ventilation frequency by 50%",
	},
	{Overheating, SeverityLow}: {"Start ventilation 15 minutes earlier"},
	{RapidHeating, SeverityHigh}: {
		"Immediate ventilation required - temperature rising rapidly",
		"Check for heating system malfunction",
	},
	{RapidHeating, SeverityMedium}: {
		"Start ventilation 30 minutes earlier",
		"Monitor temperature every 15 minutes",
	},
	{RapidHeating, SeverityLow}: {"Consider starting ventilation earlier"},
	{SoilDepletion, SeverityHigh}: {
		"Increase irrigation frequency by 30%",
		"Check irrigation system for blockages",
	},
	{SoilDepletion, SeverityMedium}: {
		"Increase irrigation frequency by 20%",
		"Monitor soil moisture twice daily",
	},
	{SoilDepletion, SeverityLow}: {"Increase irrigation frequency by 10%"},
	{FungalRisk, SeverityHigh}: {
		"Improve airflow immediately to reduce humidity",
		"Consider dehumidification system",
		"Increase ventilation to prevent fungal growth",
	},
	{FungalRisk, SeverityMedium}: {
		"Improve airflow to reduce humidity",
		"Increase ventilation frequency",
	},
}

// DetectConditions runs the condition list over m.
func DetectConditions(m Metrics) []Condition {
	var out []Condition
	for _, c := range conditions {
		if sev, ok := c.detect(m); ok {
			out = append(out, Condition{Name: c.name, Severity: sev})
		}
	}
	return out
}

// RiskLevel counts severities: any high or two mediums make the node high,
// one medium or three lows make it medium.
func RiskLevel(found []Condition) Severity {
	var high, medium, low int
	for _, c := range found {
		switch c.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		case SeverityLow:
			low++
		}
	}
	switch {
	case high > 0 || medium >= 2:
		return SeverityHigh
	case medium > 0 || low >= 3:
		return SeverityMedium
	}
	return SeverityLow
}

// Recommendations lists the actions for every condition, in condition order.
func Recommendations(found []Condition) []string {
	var out []string
	for _, c := range found {
		out = append(out, recommendations[c]...)
	}
	if len(out) == 0 {
		out = append(out, "All systems operating within normal parameters")
	}
	return out
}
