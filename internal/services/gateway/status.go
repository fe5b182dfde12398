package gateway

import (
	"strings"
	"sync"
	"time"
)

// StatusReport is what a gateway posts about itself.
type StatusReport struct {
	GatewayIDCamel   string `json:"gatewayId,omitempty"`
	GatewayID        string `json:"gateway_id,omitempty"`
	LocalIPCamel     string `json:"localIp,omitempty"`
	LocalIP          string `json:"local_ip,omitempty"`
	ActiveNodeCount  int    `json:"activeNodeCount"`
	NetworkMode      string `json:"networkMode"`
	BackendReachable bool   `json:"backendReachable"`
	Timestamp        *int64 `json:"timestamp,omitempty"`
}

func (r StatusReport) ID() string {
	if s := strings.TrimSpace(r.GatewayIDCamel); s != "" {
		return s
	}
	return strings.TrimSpace(r.GatewayID)
}

// Addr is the self-reported local IP; "0.0.0.0" counts as unknown.
func (r StatusReport) Addr() string {
	ip := strings.TrimSpace(r.LocalIPCamel)
	if ip == "" {
		ip = strings.TrimSpace(r.LocalIP)
	}
	if ip == "0.0.0.0" {
		return ""
	}
	return ip
}

// Status is the last report kept for a gateway.
type Status struct {
	ActiveNodeCount  int       `json:"active_node_count"`
	NetworkMode      string    `json:"network_mode"`
	BackendReachable bool      `json:"backend_reachable"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Board keeps the latest status report of every gateway in memory.
type Board struct {
	mu     sync.RWMutex
	status map[string]Status
}

func NewBoard() *Board {
	return &Board{status: make(map[string]Status)}
}

func (b *Board) Report(r StatusReport, at time.Time) {
	mode := r.NetworkMode
	if mode == "" {
		mode = "UNKNOWN"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[r.ID()] = Status{
		ActiveNodeCount:  r.ActiveNodeCount,
		NetworkMode:      mode,
		BackendReachable: r.BackendReachable,
		LastUpdated:      at.UTC(),
	}
}

func (b *Board) Get(gatewayID string) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.status[gatewayID]
	return s, ok
}
