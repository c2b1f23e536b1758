package sensor_simulator

import (
	"testing"
	"time"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
)

func TestGeneratorShape(t *testing.T) {
	g := NewDataGenerator(3, 1)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := g.Next(now, Actuators{})

	if len(s.Temperature) != 3 || len(s.Humidity) != 3 {
		t.Fatalf("temperature/humidity len = %d/%d", len(s.Temperature), len(s.Humidity))
	}
	if len(s.Moisture) != 3 || len(s.SoilTemperature) != 3 {
		t.Fatalf("moisture/soil len = %d/%d", len(s.Moisture), len(s.SoilTemperature))
	}
	if s.LastUpdate.Millis() != now.UnixMilli() {
		t.Fatalf("lastUpdate = %v", s.LastUpdate)
	}
	for i, m := range s.Moisture {
		if !m.Valid() || m < moistureMin || m > moistureMax {
			t.Fatalf("moisture[%d] = %v", i, m)
		}
	}
}

func TestGeneratorPumpWetsOnlyItsProbes(t *testing.T) {
	g := NewDataGenerator(2, 7)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := g.Next(start, Actuators{})

	later := g.Next(start.Add(10*time.Minute), Actuators{Relays: model.RelayStatus{Pump1: true}})
	if later.Moisture[0] >= first.Moisture[0] {
		t.Fatalf("pump1 probe did not get wetter: %v -> %v", first.Moisture[0], later.Moisture[0])
	}
	if later.Moisture[1] <= first.Moisture[1] {
		t.Fatalf("pump2 probe did not dry: %v -> %v", first.Moisture[1], later.Moisture[1])
	}
}

func TestGeneratorFanCools(t *testing.T) {
	g := NewDataGenerator(1, 3)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := g.Next(start, Actuators{})
	later := g.Next(start.Add(10*time.Minute), Actuators{Relays: model.RelayStatus{Fan: true}})

	before, _ := first.GreenhouseTemperature()
	after, _ := later.GreenhouseTemperature()
	if after >= before {
		t.Fatalf("fan did not cool: %.1f -> %.1f", before, after)
	}
}
