package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

const readingColumns = `id, node_id, gateway_id, temperature, humidity, soil_moisture,
	light_level, battery_level, rssi, ts_ms`

// HistoryFilter narrows History. Zero values mean "no constraint"; Limit <= 0
// returns everything.
type HistoryFilter struct {
	NodeID    string
	GatewayID string
	Since     time.Time
	Limit     int
}

// InsertReading stores r and returns it with its assigned id.
func (s *SQLiteStore) InsertReading(ctx context.Context, r entities.Reading) (entities.Reading, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (node_id, gateway_id, temperature, humidity, soil_moisture,
			light_level, battery_level, rssi, ts_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.NodeID, r.GatewayID, nullFloat(r.Temperature), nullFloat(r.Humidity), nullFloat(r.SoilMoisture),
		nullFloat(r.LightLevel), nullInt(r.BatteryLevel), nullInt(r.RSSI), r.Timestamp.UnixMilli(),
	)
	if err != nil {
		return entities.Reading{}, fmt.Errorf("insert reading for %q: %w", r.NodeID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entities.Reading{}, fmt.Errorf("insert reading id: %w", err)
	}
	r.ID = id
	return r, nil
}

// FindDuplicate returns a reading of the same node and gateway whose
// timestamp is within tolerance of ts.
func (s *SQLiteStore) FindDuplicate(ctx context.Context, nodeID, gatewayID string, ts time.Time, tolerance time.Duration) (*entities.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+readingColumns+` FROM readings
		WHERE node_id = ? AND gateway_id = ? AND ts_ms BETWEEN ? AND ?
		ORDER BY id LIMIT 1`,
		nodeID, gatewayID, ts.Add(-tolerance).UnixMilli(), ts.Add(tolerance).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("find duplicate of %q: %w", nodeID, err)
	}
	return firstReading(rows)
}

// ReadingsInWindow returns the readings taken at or after since, oldest
// first. An empty nodeID selects every node.
func (s *SQLiteStore) ReadingsInWindow(ctx context.Context, nodeID string, since time.Time) ([]entities.Reading, error) {
	return s.History(ctx, HistoryFilter{NodeID: nodeID, Since: since})
}

// Latest returns the newest reading, of nodeID or of any node when empty.
func (s *SQLiteStore) Latest(ctx context.Context, nodeID string) (*entities.Reading, error) {
	q := `SELECT ` + readingColumns + ` FROM readings`
	var args []any
	if nodeID != "" {
		q += ` WHERE node_id = ?`
		args = append(args, nodeID)
	}
	q += ` ORDER BY ts_ms DESC, id DESC LIMIT 1`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("latest reading: %w", err)
	}
	return firstReading(rows)
}

// History lists readings matching f, oldest first. With a Limit the newest
// Limit readings are kept.
func (s *SQLiteStore) History(ctx context.Context, f HistoryFilter) ([]entities.Reading, error) {
	var (
		where []string
		args  []any
	)
	if f.NodeID != "" {
		where = append(where, "node_id = ?")
		args = append(args, f.NodeID)
	}
	if f.GatewayID != "" {
		where = append(where, "gateway_id = ?")
		args = append(args, f.GatewayID)
	}
	if !f.Since.IsZero() {
		where = append(where, "ts_ms >= ?")
		args = append(args, f.Since.UnixMilli())
	}

	q := `SELECT ` + readingColumns + ` FROM readings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Limit > 0 {
		q = `SELECT * FROM (` + q + ` ORDER BY ts_ms DESC, id DESC LIMIT ?) ORDER BY ts_ms, id`
		args = append(args, f.Limit)
	} else {
		q += ` ORDER BY ts_ms, id`
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	out := []entities.Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return out, nil
}

// CountReadings returns the number of stored readings.
func (s *SQLiteStore) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// CountActiveNodes returns how many distinct nodes reported since the given time.
func (s *SQLiteStore) CountActiveNodes(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT node_id) FROM readings WHERE ts_ms >= ?`, since.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active nodes: %w", err)
	}
	return n, nil
}

// ActiveNodeIDs lists, sorted, the nodes that reported since the given time.
func (s *SQLiteStore) ActiveNodeIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT node_id FROM readings WHERE ts_ms >= ? ORDER BY node_id`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("active nodes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan node id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(sc scanner) (entities.Reading, error) {
	var (
		r                      entities.Reading
		temp, hum, soil, light sql.NullFloat64
		battery, rssi          sql.NullInt64
		tsMillis               int64
	)
	if err := sc.Scan(&r.ID, &r.NodeID, &r.GatewayID, &temp, &hum, &soil, &light, &battery, &rssi, &tsMillis); err != nil {
		return entities.Reading{}, fmt.Errorf("scan reading: %w", err)
	}
	r.Temperature = floatPtr(temp)
	r.Humidity = floatPtr(hum)
	r.SoilMoisture = floatPtr(soil)
	r.LightLevel = floatPtr(light)
	r.BatteryLevel = intPtr(battery)
	r.RSSI = intPtr(rssi)
	r.Timestamp = time.UnixMilli(tsMillis).UTC()
	return r, nil
}

func firstReading(rows *sql.Rows) (*entities.Reading, error) {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate readings: %w", err)
		}
		return nil, ErrNotFound
	}
	r, err := scanReading(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// IsNotFound is shorthand for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
