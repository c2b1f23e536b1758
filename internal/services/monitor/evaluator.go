package monitor

import (
	"fmt"
	"strconv"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
)

// Breach is a monitored quantity above its configured limit.
type Breach struct {
	Quantity  model.Quantity `json:"quantity"`
	Current   float64        `json:"current"`
	Threshold float64        `json:"threshold"`
	Message   string         `json:"message"`
}

// Evaluate compares the snapshot against the configured limits. A quantity
// with no valid reading, no configured limit or alerts disabled never
// breaches; quantities are evaluated independently.
func Evaluate(s model.SensorSnapshot, c model.ThresholdConfig, a model.AlertSettings) []Breach {
	var out []Breach
	for _, q := range entities.Quantities {
		if !a.Enabled(q) {
			continue
		}
		limit := c.Limit(q)
		if !limit.Valid() {
			continue
		}
		current, ok := measure(s, q)
		if !ok || current <= float64(limit) {
			continue
		}
		out = append(out, Breach{
			Quantity:  q,
			Current:   current,
			Threshold: float64(limit),
			Message:   breachMessage(q, current, float64(limit)),
		})
	}
	return out
}

func measure(s model.SensorSnapshot, q model.Quantity) (float64, bool) {
	switch q {
	case model.QuantityTemperature:
		return s.GreenhouseTemperature()
	case model.QuantityMoisture:
		return s.DriestProbe()
	case model.QuantityHumidity:
		return s.GreenhouseHumidity()
	case model.QuantitySoilTemperature:
		return s.AverageSoilTemperature()
	}
	return 0, false
}

func breachMessage(q model.Quantity, current, limit float64) string {
	unit := q.Unit()
	return fmt.Sprintf("%s threshold exceeded: %.1f%s (threshold: %s%s)",
		q.Label(), current, unit, strconv.FormatFloat(limit, 'f', -1, 64), unit)
}
