package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/entities"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func tempStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func reading(node string, at time.Time, soil float64) entities.Reading {
	return entities.Reading{
		NodeID:       node,
		GatewayID:    entities.DefaultGatewayID,
		Temperature:  entities.Float(22.5),
		Humidity:     entities.Float(60),
		SoilMoisture: entities.Float(soil),
		Timestamp:    at,
	}
}

func insert(t *testing.T, s *SQLiteStore, rs ...entities.Reading) {
	t.Helper()
	for _, r := range rs {
		_, err := s.InsertReading(context.Background(), r)
		require.NoError(t, err)
	}
}

func TestNewSQLiteInMemory(t *testing.T) {
	s, err := NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewSQLiteInvalidPath(t *testing.T) {
	_, err := NewSQLite(context.Background(), "/nonexistent/path/to/db")
	assert.Error(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	s, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestInsertAndLatest(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_, err := s.Latest(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	r := reading("node-1", base, 41)
	r.BatteryLevel = entities.Int(87)
	stored, err := s.InsertReading(ctx, r)
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)
	insert(t, s, reading("node-2", base.Add(time.Minute), 55))

	latest, err := s.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "node-2", latest.NodeID)

	latest, err = s.Latest(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, latest.ID)
	assert.Equal(t, 41.0, *latest.SoilMoisture)
	assert.Equal(t, 87, *latest.BatteryLevel)
	assert.Nil(t, latest.RSSI)
	assert.Nil(t, latest.LightLevel)
	assert.True(t, base.Equal(latest.Timestamp))

	_, err = s.Latest(ctx, "node-404")
	assert.True(t, IsNotFound(err))
}

func TestReadingsInWindowIsOldestFirst(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	insert(t, s,
		reading("node-1", base.Add(20*time.Minute), 30),
		reading("node-1", base.Add(-2*time.Hour), 50),
		reading("node-1", base, 40),
		reading("node-2", base.Add(5*time.Minute), 70),
	)

	got, err := s.ReadingsInWindow(ctx, "node-1", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 40.0, *got[0].SoilMoisture)
	assert.Equal(t, 30.0, *got[1].SoilMoisture)

	all, err := s.ReadingsInWindow(ctx, "", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ReadingsInWindow(ctx, "node-1", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 5; i++ {
		insert(t, s, reading("node-1", base.Add(time.Duration(i)*time.Minute), float64(40+i)))
	}

	got, err := s.History(context.Background(), HistoryFilter{NodeID: "node-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 43.0, *got[0].SoilMoisture)
	assert.Equal(t, 44.0, *got[1].SoilMoisture)

	got, err = s.History(context.Background(), HistoryFilter{GatewayID: "elsewhere"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindDuplicate(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	insert(t, s, reading("node-1", base, 40))

	dup, err := s.FindDuplicate(ctx, "node-1", entities.DefaultGatewayID, base.Add(4*time.Second), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 40.0, *dup.SoilMoisture)

	_, err = s.FindDuplicate(ctx, "node-1", entities.DefaultGatewayID, base.Add(6*time.Second), 5*time.Second)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindDuplicate(ctx, "node-1", "gateway-02", base, 5*time.Second)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCounts(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	insert(t, s,
		reading("node-1", base.Add(-2*time.Hour), 40),
		reading("node-1", base, 40),
		reading("node-2", base.Add(-30*time.Minute), 40),
		reading("node-3", base.Add(-90*time.Minute), 40),
	)

	total, err := s.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)

	active, err := s.CountActiveNodes(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	ids, err := s.ActiveNodeIDs(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1", "node-2"}, ids)
}

func TestGatewayRegistry(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_, err := s.GetGateway(ctx, "gateway-01", base)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpsertGateway(ctx, entities.Gateway{GatewayID: "gateway-01", LocalIP: "192.168.4.1", LastSeen: base}))
	require.NoError(t, s.UpsertGateway(ctx, entities.Gateway{GatewayID: "gateway-01", ClientIP: "10.0.0.7", LastSeen: base.Add(time.Minute)}))

	g, err := s.GetGateway(ctx, "gateway-01", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "gateway-01", g.Name)
	assert.Equal(t, "192.168.4.1", g.LocalIP, "empty updates keep the known IP")
	assert.Equal(t, "10.0.0.7", g.ClientIP)
	assert.True(t, g.IsOnline)
	assert.True(t, base.Equal(g.CreatedAt))

	all, err := s.ListGateways(ctx, base.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsOnline)
}

func TestNodeRegistry(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertGateway(ctx, entities.Gateway{GatewayID: "gateway-01", LastSeen: base}))
	require.NoError(t, s.UpsertGateway(ctx, entities.Gateway{GatewayID: "gateway-02", LastSeen: base}))

	require.NoError(t, s.UpsertNode(ctx, entities.Node{NodeID: "sim-node-1", GatewayID: "gateway-01", IsSimulated: true, LastSeen: base}))
	require.NoError(t, s.UpsertNode(ctx, entities.Node{NodeID: "node-a", GatewayID: "gateway-01", LastSeen: base}))
	require.NoError(t, s.UpsertNode(ctx, entities.Node{NodeID: "node-a", GatewayID: "gateway-02", LastSeen: base.Add(time.Minute)}))

	nodes, err := s.ListNodes(ctx, "gateway-01")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "sim-node-1", nodes[0].NodeID)
	assert.True(t, nodes[0].IsSimulated)

	all, err := s.ListNodes(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "gateway-02", all[0].GatewayID)
	assert.True(t, base.Add(time.Minute).Equal(all[0].LastSeen))
	assert.True(t, base.Equal(all[0].CreatedAt))
}
