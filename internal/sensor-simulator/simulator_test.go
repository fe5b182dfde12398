package sensor_simulator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

type fakePublisher struct {
	topics []string
	err    error
}

func (p *fakePublisher) PublishJSON(topic string, _ any) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func TestGeneratorProducesValidReadings(t *testing.T) {
	g := NewDataGenerator("sim-node-1", "gateway-01", 42)
	for i := 0; i < 48*60; i += 30 {
		in := g.Next(start.Add(time.Duration(i) * time.Minute))
		require.NoError(t, in.Validate(), "minute %d", i)
		assert.Equal(t, "sim-node-1", in.NodeID)
		assert.Equal(t, "gateway-01", in.GatewayIDCamel)
		require.NotNil(t, in.SoilMoistureCamel)
		assert.GreaterOrEqual(t, *in.SoilMoistureCamel, 0.0)
		assert.LessOrEqual(t, *in.SoilMoistureCamel, 100.0)
		require.NotNil(t, in.Timestamp)
		assert.Equal(t, start.Add(time.Duration(i)*time.Minute).Unix(), *in.Timestamp)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewDataGenerator("n", "gw", 7)
	b := NewDataGenerator("n", "gw", 7)
	for i := 0; i < 5; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		assert.Equal(t, a.Next(at), b.Next(at))
	}
}

func TestGeneratorSoilDriesThenIsWatered(t *testing.T) {
	g := NewDataGenerator("n", "gw", 1)
	first := *g.Next(start).SoilMoistureCamel
	later := *g.Next(start.Add(3 * time.Hour)).SoilMoistureCamel
	assert.Less(t, later, first)

	// Long enough to cross the watering threshold at any decay rate.
	var watered bool
	for h := 4; h < 72; h++ {
		if *g.Next(start.Add(time.Duration(h)*time.Hour)).SoilMoistureCamel > later+5 {
			watered = true
			break
		}
	}
	assert.True(t, watered)
}

func TestPublishAll(t *testing.T) {
	pub := &fakePublisher{}
	sim := NewSensorSimulator(pub, "sensor/data", "gateway-01", []string{"sim-node-1", "sim-node-2"}, 3, nil)
	sim.now = func() time.Time { return start }

	assert.Equal(t, 2, sim.PublishAll())
	assert.Equal(t, []string{"sensor/data/sim-node-1", "sensor/data/sim-node-2"}, pub.topics)

	pub.err = errors.New("offline")
	assert.Zero(t, sim.PublishAll())
}
