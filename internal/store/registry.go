package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

// UpsertGateway records that the gateway was seen at g.LastSeen. Name and
// created_at are kept from the first sighting; IPs are only overwritten by
// non-empty values.
func (s *SQLiteStore) UpsertGateway(ctx context.Context, g entities.Gateway) error {
	if g.Name == "" {
		g.Name = g.GatewayID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gateways (gateway_id, name, local_ip, client_ip, last_seen_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway_id) DO UPDATE SET
			last_seen_ms = excluded.last_seen_ms,
			local_ip  = CASE WHEN excluded.local_ip  != '' THEN excluded.local_ip  ELSE gateways.local_ip  END,
			client_ip = CASE WHEN excluded.client_ip != '' THEN excluded.client_ip ELSE gateways.client_ip END`,
		g.GatewayID, g.Name, g.LocalIP, g.ClientIP, g.LastSeen.UnixMilli(), g.LastSeen.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert gateway %q: %w", g.GatewayID, err)
	}
	return nil
}

// UpsertNode records that the node was seen at n.LastSeen, possibly behind a
// different gateway than before.
func (s *SQLiteStore) UpsertNode(ctx context.Context, n entities.Node) error {
	if n.Name == "" {
		n.Name = n.NodeID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (node_id, gateway_id, name, is_simulated, last_seen_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			gateway_id   = excluded.gateway_id,
			is_simulated = excluded.is_simulated,
			last_seen_ms = excluded.last_seen_ms`,
		n.NodeID, n.GatewayID, n.Name, n.IsSimulated, n.LastSeen.UnixMilli(), n.LastSeen.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert node %q: %w", n.NodeID, err)
	}
	return nil
}

const gatewayColumns = `gateway_id, name, local_ip, client_ip, last_seen_ms, created_at_ms`

// ListGateways returns every gateway with IsOnline evaluated at now.
func (s *SQLiteStore) ListGateways(ctx context.Context, now time.Time) ([]entities.Gateway, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+gatewayColumns+` FROM gateways ORDER BY gateway_id`)
	if err != nil {
		return nil, fmt.Errorf("list gateways: %w", err)
	}
	defer rows.Close()

	out := []entities.Gateway{}
	for rows.Next() {
		g, err := scanGateway(rows, now)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetGateway returns one gateway or ErrNotFound.
func (s *SQLiteStore) GetGateway(ctx context.Context, id string, now time.Time) (entities.Gateway, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gatewayColumns+` FROM gateways WHERE gateway_id = ?`, id)
	g, err := scanGateway(row, now)
	if err != nil {
		return entities.Gateway{}, err
	}
	return g, nil
}

// ListNodes returns the nodes behind a gateway, or all nodes when gatewayID is empty.
func (s *SQLiteStore) ListNodes(ctx context.Context, gatewayID string) ([]entities.Node, error) {
	q := `SELECT node_id, gateway_id, name, is_simulated, last_seen_ms, created_at_ms FROM nodes`
	var args []any
	if gatewayID != "" {
		q += ` WHERE gateway_id = ?`
		args = append(args, gatewayID)
	}
	q += ` ORDER BY node_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	out := []entities.Node{}
	for rows.Next() {
		var (
			n                 entities.Node
			lastSeen, created int64
		)
		if err := rows.Scan(&n.NodeID, &n.GatewayID, &n.Name, &n.IsSimulated, &lastSeen, &created); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.LastSeen = time.UnixMilli(lastSeen).UTC()
		n.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanGateway(sc scanner, now time.Time) (entities.Gateway, error) {
	var (
		g                 entities.Gateway
		lastSeen, created int64
	)
	err := sc.Scan(&g.GatewayID, &g.Name, &g.LocalIP, &g.ClientIP, &lastSeen, &created)
	if err == sql.ErrNoRows {
		return entities.Gateway{}, ErrNotFound
	}
	if err != nil {
		return entities.Gateway{}, fmt.Errorf("scan gateway: %w", err)
	}
	g.LastSeen = time.UnixMilli(lastSeen).UTC()
	g.CreatedAt = time.UnixMilli(created).UTC()
	g.IsOnline = g.OnlineAt(now)
	return g, nil
}
