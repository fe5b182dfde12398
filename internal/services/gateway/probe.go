// Package gateway talks to the gateways' local HTTP endpoints. Every target
// address gets its own circuit breaker so an unreachable gateway costs one
// timeout per breaker period instead of one per request.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/observability"
)

// ErrUnreachable is returned when no candidate address answered.
var ErrUnreachable = errors.New("gateway unreachable")

type Config struct {
	Timeout         time.Duration
	FallbackIP      string // AP-mode address tried last
	BreakerFailures uint32
	BreakerOpen     time.Duration
}

type Prober struct {
	cfg     Config
	client  *http.Client
	metrics *observability.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker // by address
	lastGood map[string]string                    // gateway id -> address that last answered
}

func NewProber(cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		metrics:  metrics,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		lastGood: make(map[string]string),
	}
}

func (p *Prober) breaker(addr string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cb, ok := p.breakers[addr]; ok {
		return cb
	}
	fails := p.cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    addr,
		Timeout: p.cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Info("gateway breaker state change", zap.String("addr", name), zap.Stringer("from", from), zap.Stringer("to", to))
			p.metrics.BreakerState(name, int(to))
		},
	})
	p.breakers[addr] = cb
	return cb
}

// candidates lists the addresses to try for gw, most likely first, without repeats.
func (p *Prober) candidates(gw entities.Gateway) []string {
	p.mu.Lock()
	last := p.lastGood[gw.GatewayID]
	p.mu.Unlock()

	out := make([]string, 0, 4)
	for _, addr := range []string{last, gw.LocalIP, gw.ClientIP, p.cfg.FallbackIP} {
		if addr == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == addr {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, addr)
		}
	}
	return out
}

// LastGoodAddr returns the address gw last answered on.
func (p *Prober) LastGoodAddr(gatewayID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr, ok := p.lastGood[gatewayID]
	return addr, ok
}

// getJSON tries each candidate in turn and decodes the first 200 response of path into out.
func (p *Prober) getJSON(ctx context.Context, gw entities.Gateway, path string, out any) error {
	var errs []error
	for _, addr := range p.candidates(gw) {
		_, err := p.breaker(addr).Execute(func() (interface{}, error) {
			return nil, p.fetch(ctx, "http://"+addr+path, out)
		})
		if err == nil {
			p.mu.Lock()
			p.lastGood[gw.GatewayID] = addr
			p.mu.Unlock()
			return nil
		}
		p.logger.Debug("gateway probe failed", zap.String("gateway_id", gw.GatewayID), zap.String("addr", addr), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, gw.GatewayID, errors.Join(errs...))
}

func (p *Prober) fetch(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ActiveNodes asks gw how many nodes it currently hears from (GET /nodes).
func (p *Prober) ActiveNodes(ctx context.Context, gw entities.Gateway) (int, error) {
	var body struct {
		ActiveNodes *int `json:"active_nodes"`
	}
	err := p.getJSON(ctx, gw, "/nodes", &body)
	if err != nil {
		return 0, err
	}
	if body.ActiveNodes == nil {
		return 0, fmt.Errorf("%w: %s: response has no active_nodes", ErrUnreachable, gw.GatewayID)
	}
	return *body.ActiveNodes, nil
}

// NetworkStatus is the gateway's view of its own Wi-Fi link.
type NetworkStatus struct {
	Mode    string  `json:"mode"`
	IP      string  `json:"ip"`
	SSID    string  `json:"ssid"`
	Gateway *string `json:"gateway"`
	Clients *int    `json:"clients"`
}

// Offline is reported when the gateway cannot be reached.
var Offline = NetworkStatus{Mode: "OFFLINE", IP: "0.0.0.0", SSID: "Not connected"}

// Network fetches GET /api/system/network from gw, or Offline.
func (p *Prober) Network(ctx context.Context, gw entities.Gateway) NetworkStatus {
	var st NetworkStatus
	if err := p.getJSON(ctx, gw, "/api/system/network", &st); err != nil {
		p.logger.Warn("gateway network status unavailable", zap.String("gateway_id", gw.GatewayID), zap.Error(err))
		return Offline
	}
	return st
}
