// Package node holds the long-horizon analysis of a single sensor node. It
// looks at a day and a week of history instead of the short trailing window
// used by the trend engine, and has its own thresholds.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/store"
)

// Source is the part of the reading store the analyzer needs.
type Source interface {
	ReadingsInWindow(ctx context.Context, nodeID string, since time.Time) ([]entities.Reading, error)
	Latest(ctx context.Context, nodeID string) (*entities.Reading, error)
}

// Result is the outcome of a node analysis.
type Result struct {
	NodeID          string      `json:"node_id"`
	Summary         string      `json:"summary"`
	RiskLevel       Severity    `json:"risk_level"`
	Recommendations []string    `json:"recommendations"`
	Conditions      []Condition `json:"conditions,omitempty"`
	Metrics         Metrics     `json:"metrics"`
}

type Analyzer struct {
	source Source
	now    func() time.Time
}

func NewAnalyzer(source Source, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{source: source, now: now}
}

// AnalyzeNode reports on one node over the last day and week.
func (a *Analyzer) AnalyzeNode(ctx context.Context, nodeID string) (Result, error) {
	if _, err := a.source.Latest(ctx, nodeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{
				NodeID:          nodeID,
				Summary:         fmt.Sprintf("Node %s: No data available", nodeID),
				RiskLevel:       SeverityLow,
				Recommendations: []string{"No sensor data found for this node"},
			}, nil
		}
		return Result{}, fmt.Errorf("node: latest reading of %q: %w", nodeID, err)
	}

	now := a.now()
	week, err := a.source.ReadingsInWindow(ctx, nodeID, now.Add(-LongHorizon))
	if err != nil {
		return Result{}, fmt.Errorf("node: history of %q: %w", nodeID, err)
	}
	return Evaluate(nodeID, ComputeMetrics(week, now)), nil
}

// Evaluate turns computed metrics into a result.
func Evaluate(nodeID string, m Metrics) Result {
	if m.AvgTemp24h == nil {
		return Result{
			NodeID:          nodeID,
			Summary:         fmt.Sprintf("Node %s: Insufficient data for analysis (need at least 24 hours of data)", nodeID),
			RiskLevel:       SeverityLow,
			Recommendations: []string{"Collect more sensor data for accurate analysis"},
			Metrics:         m,
		}
	}
	found := DetectConditions(m)
	return Result{
		NodeID:          nodeID,
		Summary:         summarize(nodeID, found, m),
		RiskLevel:       RiskLevel(found),
		Recommendations: Recommendations(found),
		Conditions:      found,
		Metrics:         m,
	}
}

func summarize(nodeID string, found []Condition, m Metrics) string {
	if len(found) == 0 {
		return fmt.Sprintf("Node %s: All conditions normal. Greenhouse operating within optimal parameters.", nodeID)
	}
	clauses := make([]string, 0, len(found))
	for _, c := range found {
		for _, def := range conditions {
			if def.name == c.Name {
				clauses = append(clauses, def.summary(m))
			}
		}
	}
	return fmt.Sprintf("Node %s: %s", nodeID, strings.Join(clauses, "; "))
}
