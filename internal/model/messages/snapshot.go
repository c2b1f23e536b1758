package messages

import (
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
)

// Index of the outside sensor in the temperature and humidity lists; the
// entries before it belong to the greenhouse.
const OutsideIndex = 2

// SensorSnapshot is one read of every sensor, as published on the sensors path.
type SensorSnapshot struct {
	Temperature     entities.Readings  `json:"temperature"`
	Humidity        entities.Readings  `json:"humidity"`
	Moisture        entities.Readings  `json:"moisture"`
	SoilTemperature entities.Readings  `json:"soilTemperature,omitempty"`
	LastUpdate      entities.Timestamp `json:"lastUpdate"`
	Memory          int64              `json:"memory,omitempty"`
}

// GreenhouseTemperature averages the greenhouse sensors, skipping missing values.
func (s SensorSnapshot) GreenhouseTemperature() (float64, bool) {
	return s.Temperature.Average(0, OutsideIndex)
}

func (s SensorSnapshot) GreenhouseHumidity() (float64, bool) {
	return s.Humidity.Average(0, OutsideIndex)
}

func (s SensorSnapshot) AverageSoilTemperature() (float64, bool) {
	return s.SoilTemperature.Average(0, -1)
}

// DriestProbe returns the maximum over all probes; higher readings are drier.
func (s SensorSnapshot) DriestProbe() (float64, bool) {
	return s.Moisture.Max()
}

func (s SensorSnapshot) OutsideTemperature() entities.Reading {
	return s.Temperature.At(OutsideIndex)
}

func (s SensorSnapshot) OutsideHumidity() entities.Reading {
	return s.Humidity.At(OutsideIndex)
}
