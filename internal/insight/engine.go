package insight

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

const (
	MinWindowMinutes     = 5
	MaxWindowMinutes     = 1440
	DefaultWindowMinutes = 60
)

// WindowSource returns the readings of one node (all nodes when nodeID is
// empty) taken at or after since.
type WindowSource interface {
	ReadingsInWindow(ctx context.Context, nodeID string, since time.Time) ([]entities.Reading, error)
}

// Engine runs the trend detectors over a window pulled from a WindowSource.
type Engine struct {
	source WindowSource
	now    func() time.Time
}

// NewEngine builds an engine. A nil clock means time.Now.
func NewEngine(source WindowSource, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{source: source, now: now}
}

// ClampMinutes bounds a requested window length to the supported range.
func ClampMinutes(minutes int) int {
	switch {
	case minutes <= 0:
		return DefaultWindowMinutes
	case minutes < MinWindowMinutes:
		return MinWindowMinutes
	case minutes > MaxWindowMinutes:
		return MaxWindowMinutes
	}
	return minutes
}

// Analyze fetches the trailing window and analyzes it.
func (e *Engine) Analyze(ctx context.Context, nodeID string, minutes int) (AnalysisResult, error) {
	now := e.now()
	since := now.Add(-time.Duration(minutes) * time.Minute)
	readings, err := e.source.ReadingsInWindow(ctx, nodeID, since)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("insight: load window for %q: %w", nodeID, err)
	}
	return AnalyzeWindow(readings, nodeID, minutes, now), nil
}

// AnalyzeWindow runs every detector over readings. The input slice is not
// modified.
func AnalyzeWindow(readings []entities.Reading, nodeID string, minutes int, now time.Time) AnalysisResult {
	window := make([]entities.Reading, len(readings))
	copy(window, readings)
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].Timestamp.Before(window[j].Timestamp)
	})

	insights := make([]Insight, 0, 4)
	if len(window) > 0 {
		for _, detect := range []func([]entities.Reading) (Insight, bool){
			DetectDrought,
			DetectOverwatering,
			DetectTemperatureStress,
		} {
			if in, ok := detect(window); ok {
				insights = append(insights, in)
			}
		}
	}
	if in, ok := DetectSensorFailure(window, nodeID, now); ok {
		insights = append(insights, in)
	}
	SortByDetector(insights)

	res := AnalysisResult{
		Insights:              insights,
		OverallRiskLevel:      OverallRisk(insights),
		Summary:               Summarize(insights),
		AnalysisPeriodMinutes: minutes,
		ReadingsAnalyzed:      len(window),
	}
	if nodeID != "" {
		res.NodeID = ptr(nodeID)
	}
	return res
}
