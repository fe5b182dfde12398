package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusReportKeys(t *testing.T) {
	var camel StatusReport
	require.NoError(t, json.Unmarshal([]byte(`{"gatewayId":"gw-1","localIp":"192.168.8.20","activeNodeCount":3,"networkMode":"ONLINE"}`), &camel))
	assert.Equal(t, "gw-1", camel.ID())
	assert.Equal(t, "192.168.8.20", camel.Addr())

	var snake StatusReport
	require.NoError(t, json.Unmarshal([]byte(`{"gateway_id":"gw-2","local_ip":"0.0.0.0"}`), &snake))
	assert.Equal(t, "gw-2", snake.ID())
	assert.Empty(t, snake.Addr())
}

func TestBoard(t *testing.T) {
	b := NewBoard()
	_, ok := b.Get("gw-1")
	assert.False(t, ok)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Report(StatusReport{GatewayIDCamel: "gw-1", ActiveNodeCount: 4}, at)

	st, ok := b.Get("gw-1")
	require.True(t, ok)
	assert.Equal(t, 4, st.ActiveNodeCount)
	assert.Equal(t, "UNKNOWN", st.NetworkMode)
	assert.Equal(t, at, st.LastUpdated)
}
