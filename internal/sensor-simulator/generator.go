package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/messages"
)

const (
	// soil loses this share per minute between waterings, in [0..1]
	defaultDecayPerMin = 0.0005
	// a watering lifts soil back to this level
	wateredMoisture = 0.55
	// below this the simulated grower waters the pot
	waterBelow = 0.22

	defaultSeed = 0.40
)

// DataGenerator keeps the state of one simulated node and advances it each
// time a reading is taken. Temperature follows a daily sine around baseTemp.
type DataGenerator struct {
	mu sync.Mutex

	nodeID    string
	gatewayID string
	rnd       *rand.Rand

	seeded      bool
	last        time.Time
	moisture    float64 // [0..1]
	decayPerMin float64
	baseTemp    float64
	battery     float64
}

// NewDataGenerator builds a generator for one node. The same seed always
// yields the same series for the same sequence of timestamps.
func NewDataGenerator(nodeID, gatewayID string, seed int64) *DataGenerator {
	rnd := rand.New(rand.NewSource(seed))
	return &DataGenerator{
		nodeID:      nodeID,
		gatewayID:   gatewayID,
		rnd:         rnd,
		decayPerMin: defaultDecayPerMin * (0.8 + 0.4*rnd.Float64()),
		baseTemp:    22 + 4*rnd.Float64(),
		battery:     100,
	}
}

// Next advances the node to now and returns the reading it would send.
func (g *DataGenerator) Next(now time.Time) messages.SensorDataInput {
	g.mu.Lock()
	defer g.mu.Unlock()

	now = now.UTC()
	if !g.seeded {
		g.moisture = clamp01(defaultSeed + 0.1*(g.rnd.Float64()-0.5))
		g.last = now
		g.seeded = true
	}

	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	g.moisture = clamp01(g.moisture - g.decayPerMin*dtMin)
	if g.moisture < waterBelow {
		g.moisture = wateredMoisture
	}
	g.battery = math.Max(0, g.battery-0.01*dtMin)
	g.last = now

	hour := float64(now.Hour()) + float64(now.Minute())/60
	temp := g.baseTemp + 5*math.Sin((hour-9)/24*2*math.Pi) + g.rnd.NormFloat64()*0.3
	humidity := clampRange(75-(temp-g.baseTemp)*2+g.rnd.NormFloat64(), 0, 100)
	soil := clampRange(g.moisture*100+g.rnd.NormFloat64()*0.2, 0, 100)

	battery := int(math.Round(g.battery))
	rssi := -60 - g.rnd.Intn(30)
	ts := now.Unix()

	return messages.SensorDataInput{
		NodeID:            g.nodeID,
		GatewayIDCamel:    g.gatewayID,
		Temperature:       round1(temp),
		Humidity:          round1(humidity),
		SoilMoistureCamel: round1(soil),
		BatteryLevel:      &battery,
		RSSI:              &rssi,
		Timestamp:         &ts,
	}
}

func round1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}

func clampRange(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}

func clamp01(x float64) float64 { return clampRange(x, 0, 1) }
