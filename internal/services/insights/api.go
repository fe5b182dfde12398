// Package insights serves the read side of the backend: insights, sensor
// readings, system status and the gateway registry.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/api"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/insight"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/insight/node"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/services/gateway"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/stats"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/store"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 168
	activeNodesWindow   = time.Hour
	probeTimeout        = 2 * time.Second
)

// Store is the read and registry side of the database.
type Store interface {
	Latest(ctx context.Context, nodeID string) (*entities.Reading, error)
	History(ctx context.Context, f store.HistoryFilter) ([]entities.Reading, error)
	CountReadings(ctx context.Context) (int64, error)
	CountActiveNodes(ctx context.Context, since time.Time) (int, error)
	ListGateways(ctx context.Context, now time.Time) ([]entities.Gateway, error)
	GetGateway(ctx context.Context, id string, now time.Time) (entities.Gateway, error)
	ListNodes(ctx context.Context, gatewayID string) ([]entities.Node, error)
	UpsertGateway(ctx context.Context, g entities.Gateway) error
}

// Prober reaches gateways over their local HTTP endpoints.
type Prober interface {
	ActiveNodes(ctx context.Context, gw entities.Gateway) (int, error)
	Network(ctx context.Context, gw entities.Gateway) gateway.NetworkStatus
}

type Deps struct {
	Engine  *insight.Engine
	Nodes   *node.Analyzer
	Store   Store
	Prober  Prober
	Board   *gateway.Board
	Metrics *observability.Metrics
	Logger  *zap.Logger
	Now     func() time.Time
}

type API struct {
	engine  *insight.Engine
	nodes   *node.Analyzer
	store   Store
	prober  Prober
	board   *gateway.Board
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewAPI(d Deps) *API {
	a := &API{
		engine:  d.Engine,
		nodes:   d.Nodes,
		store:   d.Store,
		prober:  d.Prober,
		board:   d.Board,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     d.Now,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.board == nil {
		a.board = gateway.NewBoard()
	}
	return a
}

func (a *API) Routes(r chi.Router) {
	r.Get("/api/ai/insights", a.trendInsights)
	r.Get("/api/ai/insights/{node_id}", a.nodeInsights)

	r.Get("/api/sensors/latest", a.latest)
	r.Get("/api/sensors/history", a.history)
	r.Get("/api/sensors/status", a.status)
	r.Get("/api/sensors/network", a.network)

	r.Get("/api/gateways", a.listGateways)
	r.Get("/api/gateways/{gateway_id}", a.getGateway)
	r.Post("/api/gateways/status", a.reportStatus)
}

// GET /api/ai/insights?node_id=<id>&minutes=<5..1440>
func (a *API) trendInsights(w http.ResponseWriter, r *http.Request) {
	nodeID := strings.TrimSpace(r.URL.Query().Get("node_id"))
	minutes := insight.ClampMinutes(api.QueryInt(r, "minutes",
		insight.DefaultWindowMinutes, insight.MinWindowMinutes, insight.MaxWindowMinutes))

	res, err := a.engine.Analyze(r.Context(), nodeID, minutes)
	if err != nil {
		a.logger.Error("trend analysis failed", zap.String("node_id", nodeID), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Error generating AI insights")
		return
	}
	a.metrics.Analysis("trend")
	for _, in := range res.Insights {
		a.metrics.Insight(string(in.Type), string(in.RiskLevel))
	}
	api.WriteJSON(w, http.StatusOK, res)
}

// GET /api/ai/insights/{node_id}
func (a *API) nodeInsights(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "node_id")
	res, err := a.nodes.AnalyzeNode(r.Context(), nodeID)
	if err != nil {
		a.logger.Error("node analysis failed", zap.String("node_id", nodeID), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Error generating node insights")
		return
	}
	a.metrics.Analysis("node")
	api.WriteJSON(w, http.StatusOK, res)
}

type latestReading struct {
	entities.Reading
	AgeSeconds int64 `json:"age_seconds"`
}

// GET /api/sensors/latest
func (a *API) latest(w http.ResponseWriter, r *http.Request) {
	rd, err := a.store.Latest(r.Context(), "")
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "No sensor data exists yet. Please submit sensor data first.")
		return
	case err != nil:
		a.logger.Error("latest reading", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Error fetching latest reading")
		return
	}
	api.WriteJSON(w, http.StatusOK, latestReading{Reading: *rd, AgeSeconds: int64(rd.AgeSeconds(a.now()))})
}

type historyResponse struct {
	Readings []entities.Reading `json:"readings"`
	Count    int                `json:"count"`
	Hours    int                `json:"hours"`
}

// GET /api/sensors/history?hours=<1..168>&node_id=&gateway_id=
func (a *API) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours := api.QueryInt(r, "hours", defaultHistoryHours, 1, maxHistoryHours)
	readings, err := a.store.History(r.Context(), store.HistoryFilter{
		NodeID:    strings.TrimSpace(q.Get("node_id")),
		GatewayID: strings.TrimSpace(q.Get("gateway_id")),
		Since:     a.now().Add(-time.Duration(hours) * time.Hour),
	})
	if err != nil {
		a.logger.Error("history", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Error fetching history")
		return
	}
	if readings == nil {
		readings = []entities.Reading{}
	}
	api.WriteJSON(w, http.StatusOK, historyResponse{Readings: readings, Count: len(readings), Hours: hours})
}

type systemStatus struct {
	Backend                 string `json:"backend"`
	LastDataReceivedSeconds *int64 `json:"last_data_received_seconds"`
	TotalMessages           int64  `json:"total_messages"`
	// Readings accepted by this process since it started. MQTT ingest runs in
	// its own process and is counted there; TotalMessages covers both.
	MessagesSinceStart      int64  `json:"messages_since_start"`
	NodesActive             int    `json:"nodes_active"`
	NodesActiveSource       string `json:"nodes_active_source"`
	SystemUptimeSeconds     int64  `json:"system_uptime_seconds"`
}

// GET /api/sensors/status
func (a *API) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := a.now()
	snap := stats.Read()

	out := systemStatus{
		Backend:             "online",
		MessagesSinceStart:  snap.Messages,
		SystemUptimeSeconds: snap.UptimeSeconds(now),
		NodesActiveSource:   "database",
	}

	rd, err := a.store.Latest(ctx, "")
	switch {
	case err == nil:
		age := int64(rd.AgeSeconds(now))
		out.LastDataReceivedSeconds = &age
	case !errors.Is(err, store.ErrNotFound):
		a.statusError(w, err)
		return
	}
	if out.TotalMessages, err = a.store.CountReadings(ctx); err != nil {
		a.statusError(w, err)
		return
	}
	if out.NodesActive, err = a.store.CountActiveNodes(ctx, now.Add(-activeNodesWindow)); err != nil {
		a.statusError(w, err)
		return
	}

	// The gateway knows better than the database which nodes are alive.
	if gw, ok := a.firstOnlineGateway(ctx, now); ok && a.prober != nil {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		n, err := a.prober.ActiveNodes(pctx, gw)
		cancel()
		if err == nil {
			out.NodesActive = n
			out.NodesActiveSource = "gateway"
		} else {
			a.logger.Debug("gateway active nodes unavailable", zap.String("gateway_id", gw.GatewayID), zap.Error(err))
		}
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (a *API) statusError(w http.ResponseWriter, err error) {
	a.logger.Error("system status", zap.Error(err))
	api.WriteError(w, http.StatusInternalServerError, "Error fetching system status")
}

func (a *API) firstOnlineGateway(ctx context.Context, now time.Time) (entities.Gateway, bool) {
	gws, err := a.store.ListGateways(ctx, now)
	if err != nil {
		a.logger.Warn("list gateways", zap.Error(err))
		return entities.Gateway{}, false
	}
	for _, gw := range gws {
		if gw.IsOnline {
			return gw, true
		}
	}
	return entities.Gateway{}, false
}

// GET /api/sensors/network?gateway_id=&gateway_ip=
func (a *API) network(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gw := entities.Gateway{GatewayID: strings.TrimSpace(q.Get("gateway_id"))}
	if gw.GatewayID != "" {
		if known, err := a.store.GetGateway(r.Context(), gw.GatewayID, a.now()); err == nil {
			gw = known
		}
	}
	if ip := strings.TrimSpace(q.Get("gateway_ip")); ip != "" {
		gw.LocalIP = ip
	}
	if a.prober == nil {
		api.WriteJSON(w, http.StatusOK, gateway.Offline)
		return
	}
	api.WriteJSON(w, http.StatusOK, a.prober.Network(r.Context(), gw))
}

type gatewayView struct {
	entities.Gateway
	LastSeenSecondsAgo int64           `json:"last_seen_seconds_ago"`
	ActiveNodeCount    *int            `json:"active_node_count,omitempty"`
	NetworkMode        string          `json:"network_mode,omitempty"`
	Nodes              []entities.Node `json:"nodes,omitempty"`
}

func (a *API) view(gw entities.Gateway, now time.Time) gatewayView {
	v := gatewayView{Gateway: gw, LastSeenSecondsAgo: int64(now.Sub(gw.LastSeen).Seconds())}
	if st, ok := a.board.Get(gw.GatewayID); ok {
		n := st.ActiveNodeCount
		v.ActiveNodeCount = &n
		v.NetworkMode = st.NetworkMode
	}
	return v
}

// GET /api/gateways
func (a *API) listGateways(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	gws, err := a.store.ListGateways(r.Context(), now)
	if err != nil {
		a.logger.Error("list gateways", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Error listing gateways")
		return
	}
	out := make([]gatewayView, 0, len(gws))
	for _, gw := range gws {
		out = append(out, a.view(gw, now))
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"gateways": out, "count": len(out)})
}

// GET /api/gateways/{gateway_id}
func (a *API) getGateway(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gateway_id")
	now := a.now()
	gw, err := a.store.GetGateway(r.Context(), id, now)
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.WriteError(w, http.StatusNotFound,
			fmt.Sprintf("Gateway '%s' not found. Gateway will be registered on first sensor data receipt.", id))
		return
	case err != nil:
		a.logger.Error("get gateway", zap.String("gateway_id", id), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Error fetching gateway status")
		return
	}
	v := a.view(gw, now)
	if v.Nodes, err = a.store.ListNodes(r.Context(), id); err != nil {
		a.logger.Warn("list nodes", zap.String("gateway_id", id), zap.Error(err))
	}
	api.WriteJSON(w, http.StatusOK, v)
}

// POST /api/gateways/status, sent by a gateway about itself.
func (a *API) reportStatus(w http.ResponseWriter, r *http.Request) {
	var rep gateway.StatusReport
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&rep); err != nil {
		api.WriteError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	id := rep.ID()
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "gatewayId is required")
		return
	}
	now := a.now()
	if err := a.store.UpsertGateway(r.Context(), entities.Gateway{
		GatewayID: id,
		LocalIP:   rep.Addr(),
		ClientIP:  api.ClientIP(r),
		LastSeen:  now,
	}); err != nil {
		a.logger.Error("gateway status update", zap.String("gateway_id", id), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "Error updating gateway status")
		return
	}
	a.board.Report(rep, now)
	a.logger.Info("gateway status updated",
		zap.String("gateway_id", id),
		zap.Int("active_nodes", rep.ActiveNodeCount),
		zap.String("mode", rep.NetworkMode))
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"gateway_id": id,
		"message":    "Gateway status updated",
	})
}
