package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Quantity names a monitored value. The string form is the alert type tag
// carried in notifications and the key of the throttle state.
type Quantity string

const (
	QuantityTemperature     Quantity = "temperature"
	QuantityMoisture        Quantity = "moisture"
	QuantityHumidity        Quantity = "humidity"
	QuantitySoilTemperature Quantity = "soilTemperature"
)

// Quantities lists every monitored quantity in evaluation order.
var Quantities = []Quantity{
	QuantityTemperature,
	QuantityMoisture,
	QuantityHumidity,
	QuantitySoilTemperature,
}

func ParseQuantity(s string) (Quantity, bool) {
	for _, q := range Quantities {
		if strings.EqualFold(string(q), strings.TrimSpace(s)) {
			return q, true
		}
	}
	return "", false
}

// Label is the human readable name used in breach messages.
func (q Quantity) Label() string {
	switch q {
	case QuantityTemperature:
		return "Temperature"
	case QuantityMoisture:
		return "Soil moisture"
	case QuantityHumidity:
		return "Humidity"
	case QuantitySoilTemperature:
		return "Soil temperature"
	}
	return string(q)
}

func (q Quantity) Unit() string {
	switch q {
	case QuantityTemperature, QuantitySoilTemperature:
		return "°C"
	case QuantityHumidity:
		return "%"
	}
	return ""
}

const (
	DefaultSoilTemperatureThreshold = 25.0
	DefaultHumidityThreshold        = 70.0
)

// ThresholdConfig holds the configured limits. Moisture is in raw probe
// units where a higher value means drier soil. LightOn and LightOff are
// "HH:MM:SS" time-of-day strings.
type ThresholdConfig struct {
	Temperature     Reading `json:"temperature"`
	Moisture        Reading `json:"moisture"`
	SoilTemperature Reading `json:"soilTemperature"`
	Humidity        Reading `json:"humidity"`
	LightOn         string  `json:"lightOn"`
	LightOff        string  `json:"lightOff"`
}

// DefaultThresholds is the config in effect before the backend publishes one:
// temperature and moisture are unset and never breach.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		Temperature:     Missing,
		Moisture:        Missing,
		SoilTemperature: DefaultSoilTemperatureThreshold,
		Humidity:        DefaultHumidityThreshold,
	}
}

func (c *ThresholdConfig) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := DefaultThresholds()
	if v, ok := m["temperature"]; ok {
		out.Temperature = toReading(v)
	}
	if v, ok := m["moisture"]; ok {
		out.Moisture = toReading(v)
	}
	if f, ok := ParseNumber(m["soilTemperature"]); ok {
		out.SoilTemperature = Reading(f)
	}
	if f, ok := ParseNumber(m["humidity"]); ok {
		out.Humidity = Reading(f)
	}
	if s, ok := m["lightOn"].(string); ok {
		out.LightOn = s
	}
	if s, ok := m["lightOff"].(string); ok {
		out.LightOff = s
	}
	*c = out
	return nil
}

// Limit returns the configured threshold for q.
func (c ThresholdConfig) Limit(q Quantity) Reading {
	switch q {
	case QuantityTemperature:
		return c.Temperature
	case QuantityMoisture:
		return c.Moisture
	case QuantityHumidity:
		return c.Humidity
	case QuantitySoilTemperature:
		return c.SoilTemperature
	}
	return Missing
}

// NormalizeClock turns "HH:MM" or "HH:MM:SS" into "HH:MM:SS".
func NormalizeClock(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("invalid time %q", s)
	}
	vals := [3]int{}
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return "", fmt.Errorf("invalid time %q", s)
		}
		vals[i] = n
	}
	return fmt.Sprintf("%02d:%02d:%02d", vals[0], vals[1], vals[2]), nil
}
