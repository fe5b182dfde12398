// Package insight turns a trailing window of sensor readings into risk-leveled,
// explained insights. Everything here is pure: the only input is the window and
// the clock value handed in by the caller.
package insight

// RiskLevel is the ordinal severity of an insight or of a whole analysis.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Type names the detected condition.
type Type string

const (
	TypeDroughtRisk       Type = "drought_risk"
	TypeOverwateringRisk  Type = "overwatering_risk"
	TypeTemperatureStress Type = "temperature_stress"
	TypeSensorFailure     Type = "sensor_failure"
)

// detectorOrder fixes the position of each type in results and summaries.
var detectorOrder = map[Type]int{
	TypeDroughtRisk:       0,
	TypeOverwateringRisk:  1,
	TypeTemperatureStress: 2,
	TypeSensorFailure:     3,
}

// Failure patterns reported by the sensor failure detector.
const (
	PatternNoData               = "no_data"
	PatternStaleData            = "stale_data"
	PatternConstantTemperature  = "constant_temperature"
	PatternConstantSoilMoisture = "constant_soil_moisture"
	PatternUnrealisticTemp      = "unrealistic_temperature"
	PatternUnrealisticSoil      = "unrealistic_soil_moisture"
)

// Insight is one detected condition. Context fields are set only by the
// detectors that compute them.
type Insight struct {
	Type              Type      `json:"type"`
	RiskLevel         RiskLevel `json:"risk_level"`
	Explanation       string    `json:"explanation"`
	RecommendedAction string    `json:"recommended_action"`

	CurrentValue      *float64 `json:"current_value,omitempty"`
	AverageValue      *float64 `json:"average_value,omitempty"`
	MinValue          *float64 `json:"min_value,omitempty"`
	MaxValue          *float64 `json:"max_value,omitempty"`
	DropRatePerHour   *float64 `json:"drop_rate_per_hour,omitempty"`
	ChangeRatePerHour *float64 `json:"change_rate_per_hour,omitempty"`

	FailurePattern string   `json:"failure_pattern,omitempty"`
	DataAgeSeconds *int64   `json:"data_age_seconds,omitempty"`
	ConstantValue  *float64 `json:"constant_value,omitempty"`
	InvalidValue   *float64 `json:"invalid_value,omitempty"`
}

// AnalysisResult is the outcome of one engine call.
type AnalysisResult struct {
	Insights              []Insight `json:"insights"`
	OverallRiskLevel      RiskLevel `json:"overall_risk_level"`
	Summary               string    `json:"summary"`
	AnalysisPeriodMinutes int       `json:"analysis_period_minutes"`
	ReadingsAnalyzed      int       `json:"readings_analyzed"`
	NodeID                *string   `json:"node_id"`
}

func ptr[T any](v T) *T { return &v }
