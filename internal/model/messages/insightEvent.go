package messages

import "time"

// InsightEvent is published on insight/{node} when a node analysis reports risk.
type InsightEvent struct {
	EventID          string    `json:"event_id"`
	NodeID           string    `json:"node_id"`
	OverallRiskLevel string    `json:"overall_risk_level"`
	Summary          string    `json:"summary"`
	InsightTypes     []string  `json:"insight_types"`
	ReadingsAnalyzed int       `json:"readings_analyzed"`
	WindowMinutes    int       `json:"window_minutes"`
	Timestamp        time.Time `json:"timestamp"`
}
