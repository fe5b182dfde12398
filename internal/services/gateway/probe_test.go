package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
)

func addr(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func nodesServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/nodes":
			_, _ = w.Write([]byte(body))
		case "/api/system/network":
			_, _ = w.Write([]byte(`{"mode":"STA","ip":"192.168.8.253","ssid":"OKC","gateway":"192.168.8.1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestActiveNodes(t *testing.T) {
	srv := nodesServer(t, `{"active_nodes":3}`, nil)
	p := NewProber(Config{Timeout: time.Second}, nil, nil)

	n, err := p.ActiveNodes(context.Background(), entities.Gateway{GatewayID: "gw-1", ClientIP: addr(srv)})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, ok := p.LastGoodAddr("gw-1")
	require.True(t, ok)
	assert.Equal(t, addr(srv), got)
}

func TestActiveNodesFallsBack(t *testing.T) {
	var badHits atomic.Int32
	bad := failingServer(t, &badHits)
	good := nodesServer(t, `{"active_nodes":2}`, nil)

	p := NewProber(Config{Timeout: time.Second, FallbackIP: addr(good)}, nil, nil)
	n, err := p.ActiveNodes(context.Background(), entities.Gateway{GatewayID: "gw-1", ClientIP: addr(bad)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), badHits.Load())

	// The address that answered is tried first from now on.
	_, err = p.ActiveNodes(context.Background(), entities.Gateway{GatewayID: "gw-1", ClientIP: addr(bad)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), badHits.Load())
}

func TestActiveNodesMissingKey(t *testing.T) {
	srv := nodesServer(t, `{"nodes":[]}`, nil)
	p := NewProber(Config{Timeout: time.Second}, nil, nil)

	_, err := p.ActiveNodes(context.Background(), entities.Gateway{GatewayID: "gw-1", ClientIP: addr(srv)})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestActiveNodesNoCandidates(t *testing.T) {
	p := NewProber(Config{}, nil, nil)
	_, err := p.ActiveNodes(context.Background(), entities.Gateway{GatewayID: "gw-1"})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	bad := failingServer(t, &hits)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	p := NewProber(Config{Timeout: time.Second, BreakerFailures: 2, BreakerOpen: time.Minute}, metrics, nil)
	gw := entities.Gateway{GatewayID: "gw-1", ClientIP: addr(bad)}

	for i := 0; i < 5; i++ {
		_, err := p.ActiveNodes(context.Background(), gw)
		require.ErrorIs(t, err, ErrUnreachable)
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 2.0, cbState(t, reg, addr(bad)))
}

// cbState reads the cb_state sample for target from reg.
func cbState(t *testing.T, reg *prometheus.Registry, target string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "cb_state" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "target" && l.GetValue() == target {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no cb_state sample for %s", target)
	return 0
}

func TestNetwork(t *testing.T) {
	srv := nodesServer(t, `{"active_nodes":1}`, nil)
	p := NewProber(Config{Timeout: time.Second}, nil, nil)

	st := p.Network(context.Background(), entities.Gateway{GatewayID: "gw-1", LocalIP: addr(srv)})
	assert.Equal(t, "STA", st.Mode)
	assert.Equal(t, "OKC", st.SSID)
	require.NotNil(t, st.Gateway)
	assert.Equal(t, "192.168.8.1", *st.Gateway)
}

func TestNetworkOffline(t *testing.T) {
	var hits atomic.Int32
	bad := failingServer(t, &hits)
	p := NewProber(Config{Timeout: time.Second}, nil, nil)

	st := p.Network(context.Background(), entities.Gateway{GatewayID: "gw-1", LocalIP: addr(bad)})
	assert.Equal(t, Offline, st)
}
