// Package publisher periodically analyses every recently active node and
// publishes the results that need attention on the broker.
package publisher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/insight"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
	"github.com/LeonardoBeccarini/greenhouse_insights/pkg/dedup"
	"github.com/LeonardoBeccarini/greenhouse_insights/pkg/rabbitmq"
)

// NodeLister finds the nodes worth analysing.
type NodeLister interface {
	ActiveNodeIDs(ctx context.Context, since time.Time) ([]string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, nodeID string, minutes int) (insight.AnalysisResult, error)
}

type Config struct {
	Interval      time.Duration
	WindowMinutes int
	ActiveWithin  time.Duration
	RepeatAfter   time.Duration
	TopicPrefix   string // events go to <TopicPrefix>/<node_id>
}

type Service struct {
	cfg       Config
	nodes     NodeLister
	analyzer  Analyzer
	publisher rabbitmq.IPublisher
	sent      *dedup.Deduper
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(cfg Config, nodes NodeLister, analyzer Analyzer, pub rabbitmq.IPublisher, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	cfg.WindowMinutes = insight.ClampMinutes(cfg.WindowMinutes)
	if cfg.ActiveWithin <= 0 {
		cfg.ActiveWithin = time.Hour
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "insight"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:       cfg,
		nodes:     nodes,
		analyzer:  analyzer,
		publisher: pub,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	s.sent = dedup.New(cfg.RepeatAfter, 10000).WithClock(func() time.Time { return s.now() })
	return s
}

// Start runs a cycle right away and then every Interval until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("insight cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce analyses each active node and publishes MEDIUM and HIGH results.
// It returns how many events were published.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.nodes.ActiveNodeIDs(ctx, now.Add(-s.cfg.ActiveWithin))
	if err != nil {
		return 0, fmt.Errorf("list active nodes: %w", err)
	}

	published := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		res, err := s.analyzer.Analyze(ctx, id, s.cfg.WindowMinutes)
		if err != nil {
			s.logger.Warn("analysis failed", zap.String("node_id", id), zap.Error(err))
			continue
		}
		s.metrics.Analysis("trend")
		if res.OverallRiskLevel == insight.RiskLow {
			continue
		}
		if !s.sent.ShouldProcess(resultKey(id, res)) {
			s.logger.Debug("unchanged result, not republished", zap.String("node_id", id))
			continue
		}

		ev := s.event(id, res, now)
		topic := s.cfg.TopicPrefix + "/" + id
		if err := s.publisher.PublishJSON(topic, ev); err != nil {
			s.logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
			continue
		}
		for _, in := range res.Insights {
			s.metrics.Insight(string(in.Type), string(in.RiskLevel))
		}
		s.metrics.EventPublished()
		published++
		s.logger.Info("insight published",
			zap.String("node_id", id),
			zap.String("risk", string(res.OverallRiskLevel)),
			zap.String("event_id", ev.EventID))
	}
	return published, nil
}

// resultKey identifies a result by its stable parts. Explanations and the
// summary embed live values such as data age, so they are left out.
func resultKey(nodeID string, res insight.AnalysisResult) string {
	var b strings.Builder
	b.WriteString(nodeID)
	b.WriteString("|")
	b.WriteString(string(res.OverallRiskLevel))
	for _, in := range res.Insights {
		fmt.Fprintf(&b, "|%s:%s:%s", in.Type, in.RiskLevel, in.FailurePattern)
	}
	return b.String()
}

func (s *Service) event(nodeID string, res insight.AnalysisResult, now time.Time) messages.InsightEvent {
	types := make([]string, 0, len(res.Insights))
	for _, in := range res.Insights {
		types = append(types, string(in.Type))
	}
	return messages.InsightEvent{
		EventID:          s.newID(),
		NodeID:           nodeID,
		OverallRiskLevel: string(res.OverallRiskLevel),
		Summary:          res.Summary,
		InsightTypes:     types,
		ReadingsAnalyzed: res.ReadingsAnalyzed,
		WindowMinutes:    res.AnalysisPeriodMinutes,
		Timestamp:        now.UTC(),
	}
}
