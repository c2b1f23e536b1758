package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
)

// ====== Tunables ======
const (
	// raw moisture: higher is drier
	moistureMin      = 200.0
	moistureMax      = 1023.0
	moistureWetPerM  = 25.0 // per minute with the pump on
	moistureDryPerM  = 1.5  // per minute with the pump off
	defaultMoisture  = 520.0
	defaultTempIn    = 26.0
	defaultTempOut   = 22.0
	defaultHumIn     = 65.0
	defaultHumOut    = 55.0
	defaultSoilTemp  = 21.0
	fanCoolPerMin    = 0.30
	heatPerMin       = 0.08
	lightHeatPerMin  = 0.04
	fanDryPerMin     = 0.60
	humidifyPerMin   = 0.20
	soilFollowPerMin = 0.02
	noise            = 0.15
)

// Actuators is what the generator reacts to.
type Actuators struct {
	Relays model.RelayStatus
}

// DataGenerator keeps the simulated greenhouse physics and advances it on
// every Next call.
type DataGenerator struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	seeded   bool
	last     time.Time
	tempIn   [2]float64
	tempOut  float64
	humIn    [2]float64
	humOut   float64
	moisture []float64
	soilTemp []float64
}

// NewDataGenerator builds a generator for the given number of soil probes.
// Probes with an even index are watered by pump1, the others by pump2.
func NewDataGenerator(probes int, seed int64) *DataGenerator {
	if probes <= 0 {
		probes = 1
	}
	return &DataGenerator{
		rnd:      rand.New(rand.NewSource(seed)),
		moisture: make([]float64, probes),
		soilTemp: make([]float64, probes),
	}
}

func (g *DataGenerator) seed(now time.Time) {
	for i := range g.tempIn {
		g.tempIn[i] = defaultTempIn + g.jitter()
		g.humIn[i] = defaultHumIn + g.jitter()
	}
	g.tempOut = defaultTempOut
	g.humOut = defaultHumOut
	for i := range g.moisture {
		g.moisture[i] = defaultMoisture + 20*g.jitter()
		g.soilTemp[i] = defaultSoilTemp + g.jitter()
	}
	g.last = now
	g.seeded = true
}

// Next advances the physics up to now and returns the resulting snapshot.
func (g *DataGenerator) Next(now time.Time, act Actuators) model.SensorSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.seeded {
		g.seed(now)
	}
	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	g.last = now

	r := act.Relays
	for i := range g.tempIn {
		switch {
		case r.Fan:
			// the fan pulls the greenhouse towards the outside air
			g.tempIn[i] -= math.Min(fanCoolPerMin*dtMin, math.Max(0, g.tempIn[i]-g.tempOut))
			g.humIn[i] -= fanDryPerMin * dtMin
		default:
			g.tempIn[i] += heatPerMin * dtMin
			g.humIn[i] += humidifyPerMin * dtMin
		}
		if r.Light {
			g.tempIn[i] += lightHeatPerMin * dtMin
		}
		g.tempIn[i] = clamp(g.tempIn[i]+g.jitter(), -10, 50)
		g.humIn[i] = clamp(g.humIn[i]+g.jitter(), 5, 100)
	}
	g.tempOut = clamp(g.tempOut+g.jitter(), -20, 45)
	g.humOut = clamp(g.humOut+g.jitter(), 5, 100)

	avgIn := (g.tempIn[0] + g.tempIn[1]) / 2
	for i := range g.moisture {
		pump := r.Pump1
		if i%2 == 1 {
			pump = r.Pump2
		}
		if pump {
			g.moisture[i] -= moistureWetPerM * dtMin
		} else {
			g.moisture[i] += moistureDryPerM * dtMin
		}
		g.moisture[i] = clamp(g.moisture[i]+g.jitter(), moistureMin, moistureMax)
		g.soilTemp[i] += (avgIn - g.soilTemp[i]) * math.Min(1, soilFollowPerMin*dtMin)
	}

	s := model.SensorSnapshot{
		Temperature:     model.Readings{round1(g.tempIn[0]), round1(g.tempIn[1]), round1(g.tempOut)},
		Humidity:        model.Readings{round1(g.humIn[0]), round1(g.humIn[1]), round1(g.humOut)},
		Moisture:        make(model.Readings, len(g.moisture)),
		SoilTemperature: make(model.Readings, len(g.soilTemp)),
		LastUpdate:      entities.TimestampOf(now),
	}
	for i, m := range g.moisture {
		s.Moisture[i] = model.Reading(math.Round(m))
	}
	for i, t := range g.soilTemp {
		s.SoilTemperature[i] = round1(t)
	}
	return s
}

// FreeHeap is a plausible free-memory figure for the status heartbeat.
func (g *DataGenerator) FreeHeap() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return 180000 + int64(g.rnd.Intn(20000))
}

// ===== Helpers =====

func (g *DataGenerator) jitter() float64 {
	return (g.rnd.Float64()*2 - 1) * noise
}

func round1(v float64) model.Reading {
	return model.Reading(math.Round(v*10) / 10)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
