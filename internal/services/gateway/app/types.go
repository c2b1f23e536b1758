package app

import (
	"math"
	"strconv"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/history"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/monitor"
)

// Value is one figure of the readings view. Value is null when the sensor
// did not report; Display is what the card shows.
type Value struct {
	Value   *float64 `json:"value"`
	Display string   `json:"display"`
	Unit    string   `json:"unit,omitempty"`
}

const missingDisplay = "--"

func newValue(v float64, ok bool, decimals int, unit string) Value {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{Display: missingDisplay, Unit: unit}
	}
	return Value{Value: &v, Display: strconv.FormatFloat(v, 'f', decimals, 64), Unit: unit}
}

func readingValue(r model.Reading, decimals int, unit string) Value {
	return newValue(float64(r), r.Valid(), decimals, unit)
}

// ReadingsView is the sensor panel: greenhouse averages over the first two
// sensors, the outside sensor, soil temperature and one entry per probe.
type ReadingsView struct {
	Available          bool              `json:"available"`
	LastUpdate         model.Timestamp   `json:"lastUpdate"`
	LastUpdateLabel    string            `json:"lastUpdateLabel,omitempty"`
	Temperature        Value             `json:"temperature"`
	Humidity           Value             `json:"humidity"`
	OutsideTemperature Value             `json:"outsideTemperature"`
	OutsideHumidity    Value             `json:"outsideHumidity"`
	SoilTemperature    Value             `json:"soilTemperature"`
	Moisture           []Value           `json:"moisture"`
	Thresholds         map[string]string `json:"thresholds"`
	Breaches           []monitor.Breach  `json:"breaches"`
}

type RelaysView struct {
	Relays      model.RelayStatus  `json:"relays"`
	Mode        model.ModeSettings `json:"mode"`
	LastChanged map[string]string  `json:"lastChanged"`
}

type AlertsView struct {
	Settings model.AlertSettings `json:"settings"`
	Loaded   bool                `json:"loaded"`
}

type HistoryView struct {
	Range  history.Range          `json:"range"`
	Points []history.DisplayPoint `json:"points"`
}

type relayRequest struct {
	On *bool `json:"on"`
}

type modeRequest struct {
	Automatic *bool `json:"automatic"`
}

type thresholdRequest struct {
	Value any `json:"value"`
}

type cameraCommandRequest struct {
	Type string `json:"type"`
	// Hours is used by setInterval; a numeric string is accepted too.
	Hours any `json:"hours,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
