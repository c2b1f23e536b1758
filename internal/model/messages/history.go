package messages

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
)

// HistoryPoint is one row of the history series. Values are keyed by sensor
// name plus index (temperature0, moisture3, ...); DatetimeUpdate may arrive
// as a number or a string and is coerced on decode.
type HistoryPoint struct {
	ID             string                      `json:"id,omitempty"`
	DatetimeUpdate entities.Timestamp          `json:"datetimeUpdate"`
	Values         map[string]entities.Reading `json:"-"`
}

func (p HistoryPoint) Value(key string) entities.Reading {
	if v, ok := p.Values[key]; ok {
		return v
	}
	return entities.Missing
}

func (p HistoryPoint) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Values)+2)
	for k, v := range p.Values {
		m[k] = v
	}
	if p.ID != "" {
		m["id"] = p.ID
	}
	m["datetimeUpdate"] = p.DatetimeUpdate
	return json.Marshal(m)
}

func (p *HistoryPoint) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := HistoryPoint{
		DatetimeUpdate: entities.NoTimestamp,
		Values:         make(map[string]entities.Reading),
	}
	if v, ok := m["datetimeUpdate"]; ok {
		out.DatetimeUpdate = entities.ParseTimestamp(v)
	} else if v, ok := m["timestamp"]; ok {
		out.DatetimeUpdate = entities.ParseTimestamp(v)
	}
	if s, ok := m["id"].(string); ok {
		out.ID = s
	}
	for k, v := range m {
		if !isSeriesKey(k) {
			continue
		}
		if f, ok := entities.ParseNumber(v); ok {
			out.Values[k] = entities.Reading(f)
		} else {
			out.Values[k] = entities.Missing
		}
	}
	*p = out
	return nil
}

// SeriesPrefixes are the sensor families stored in history rows.
var SeriesPrefixes = []string{"temperature", "humidity", "moisture", "soilTemperature"}

func isSeriesKey(k string) bool {
	for _, prefix := range SeriesPrefixes {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			if _, err := strconv.Atoi(rest); err == nil {
				return true
			}
		}
	}
	return false
}

// SeriesKey builds the history key for a sensor family and index.
func SeriesKey(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

// PointFromSnapshot flattens a snapshot into a history row.
func PointFromSnapshot(s SensorSnapshot, ts entities.Timestamp) HistoryPoint {
	p := HistoryPoint{DatetimeUpdate: ts, Values: make(map[string]entities.Reading)}
	add := func(prefix string, rs entities.Readings) {
		for i, r := range rs {
			p.Values[SeriesKey(prefix, i)] = r
		}
	}
	add("temperature", s.Temperature)
	add("humidity", s.Humidity)
	add("moisture", s.Moisture)
	add("soilTemperature", s.SoilTemperature)
	return p
}
