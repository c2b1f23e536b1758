package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Reading is one sensor value. NaN marks a missing value and encodes as null.
type Reading float64

// Missing is the Reading used for absent or unparseable values.
var Missing = Reading(math.NaN())

func (r Reading) Valid() bool {
	f := float64(r)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Or returns r, or def when r is missing.
func (r Reading) Or(def float64) float64 {
	if r.Valid() {
		return float64(r)
	}
	return def
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(r), 'f', -1, 64)), nil
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = toReading(v)
	return nil
}

// Readings is an ordered list of sensor values. It decodes from a JSON array
// or from an object keyed by index ({"0": 21.5, "1": 22.0}); null and
// non-numeric entries keep their slot as Missing.
type Readings []Reading

// MaxReadingIndex bounds the keys accepted from an index-keyed object; larger
// keys are dropped.
const MaxReadingIndex = 63

func (rs *Readings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*rs = nil
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case []any:
		out := make(Readings, len(t))
		for i, v := range t {
			out[i] = toReading(v)
		}
		*rs = out
	case map[string]any:
		type kv struct {
			idx int
			val Reading
		}
		items := make([]kv, 0, len(t))
		maxIdx := -1
		for k, v := range t {
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 || idx > MaxReadingIndex {
				continue
			}
			items = append(items, kv{idx, toReading(v)})
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })
		out := make(Readings, maxIdx+1)
		for i := range out {
			out[i] = Missing
		}
		for _, it := range items {
			out[it.idx] = it.val
		}
		*rs = out
	default:
		return fmt.Errorf("readings: unexpected JSON %s", string(b))
	}
	return nil
}

// At returns the reading at index i, or Missing when out of range.
func (rs Readings) At(i int) Reading {
	if i < 0 || i >= len(rs) {
		return Missing
	}
	return rs[i]
}

// Average returns the mean of the valid readings in rs[from:to] (to < 0 means
// the end). ok is false when the range holds no valid reading.
func (rs Readings) Average(from, to int) (avg float64, ok bool) {
	if to < 0 || to > len(rs) {
		to = len(rs)
	}
	if from < 0 {
		from = 0
	}
	var sum float64
	n := 0
	for i := from; i < to; i++ {
		if rs[i].Valid() {
			sum += float64(rs[i])
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Max returns the largest reading, counting missing ones as 0. ok is false
// for an empty list.
func (rs Readings) Max() (max float64, ok bool) {
	if len(rs) == 0 {
		return 0, false
	}
	max = math.Inf(-1)
	for _, r := range rs {
		if v := r.Or(0); v > max {
			max = v
		}
	}
	return max, true
}

func toReading(v any) Reading {
	if f, ok := ParseNumber(v); ok {
		return Reading(f)
	}
	return Missing
}

// ParseNumber converts JSON-decoded numbers and numeric strings to float64.
func ParseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Timestamp is an epoch-millisecond instant. It decodes from a JSON number,
// a numeric string or a calendar date string; anything else is NaN, which
// never compares greater than a cutoff.
type Timestamp float64

// NoTimestamp is the invalid Timestamp.
var NoTimestamp = Timestamp(math.NaN())

// ParseTimestamp coerces an arbitrary decoded value to a Timestamp.
// Zone-less date strings are read as UTC.
func ParseTimestamp(v any) Timestamp {
	switch t := v.(type) {
	case nil:
		return NoTimestamp
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Timestamp(f)
		}
		if s == "" {
			return NoTimestamp
		}
		if tm, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return Timestamp(tm.UnixMilli())
		}
		return NoTimestamp
	}
	if f, ok := ParseNumber(v); ok {
		return Timestamp(f)
	}
	return NoTimestamp
}

func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

func (ts Timestamp) Valid() bool {
	f := float64(ts)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (ts Timestamp) Millis() int64 {
	if !ts.Valid() {
		return 0
	}
	return int64(ts)
}

func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(ts.Millis())
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(ts), 'f', -1, 64)), nil
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*ts = ParseTimestamp(v)
	return nil
}
