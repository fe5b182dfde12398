package entities

import "time"

// DefaultGatewayID is assigned to readings that do not name their gateway.
const DefaultGatewayID = "gateway-01"

// GatewayOnlineWindow is how recently a gateway must have been seen to count as online.
const GatewayOnlineWindow = 5 * time.Minute

// Gateway collects readings from one or more nodes and forwards them to the backend.
type Gateway struct {
	GatewayID string    `json:"gateway_id"`
	Name      string    `json:"name"`
	IsOnline  bool      `json:"is_online"`
	LocalIP   string    `json:"local_ip,omitempty"`  // self-reported by the gateway
	ClientIP  string    `json:"client_ip,omitempty"` // as seen by the backend
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// OnlineAt reports whether the gateway was seen within GatewayOnlineWindow of now.
func (g Gateway) OnlineAt(now time.Time) bool {
	return now.Sub(g.LastSeen) < GatewayOnlineWindow
}

// Node is a physical or simulated sensor device.
type Node struct {
	NodeID      string    `json:"node_id"`
	GatewayID   string    `json:"gateway_id"`
	Name        string    `json:"name"`
	IsSimulated bool      `json:"is_simulated"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}
