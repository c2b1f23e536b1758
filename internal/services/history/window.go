package history

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
)

// Range selects the lookback window of the chart.
type Range string

const (
	RangeHour  Range = "hour"
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange maps unknown values to RangeDay.
func ParseRange(s string) Range {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case RangeHour, RangeDay, RangeWeek, RangeMonth:
		return r
	}
	return RangeDay
}

func (r Range) Offset() time.Duration {
	switch r {
	case RangeHour:
		return time.Hour
	case RangeWeek:
		return 7 * 24 * time.Hour
	case RangeMonth:
		return 30 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Layout is the label format: time of day for hour and day, date plus time
// for week, date only for month.
func (r Range) Layout() string {
	switch r {
	case RangeWeek:
		return "02 Jan 15:04"
	case RangeMonth:
		return "02 Jan"
	}
	return "15:04"
}

// FullLayout is used for the tooltip label of every range.
const FullLayout = "02 Jan 2006, 15:04:05"

const DefaultTimezone = "Asia/Kolkata"

// LoadLocation resolves name, falling back to a fixed IST offset.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}

// DisplayPoint is a history point ready for charting.
type DisplayPoint struct {
	Timestamp int64                       `json:"timestamp"`
	Label     string                      `json:"time"`
	FullLabel string                      `json:"fullTime"`
	Values    map[string]entities.Reading `json:"values"`
}

// FilterAndFormat keeps the points newer than now minus the range offset,
// sorts them by time and labels them in loc. Points whose timestamp could
// not be parsed never pass the cutoff.
func FilterAndFormat(points []model.HistoryPoint, r Range, now time.Time, loc *time.Location) []DisplayPoint {
	if loc == nil {
		loc = time.UTC
	}
	cutoff := float64(now.UnixMilli() - r.Offset().Milliseconds())

	kept := make([]model.HistoryPoint, 0, len(points))
	for _, p := range points {
		if float64(p.DatetimeUpdate) > cutoff {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].DatetimeUpdate < kept[j].DatetimeUpdate
	})

	layout := r.Layout()
	out := make([]DisplayPoint, 0, len(kept))
	for _, p := range kept {
		ms := int64(math.Round(float64(p.DatetimeUpdate)))
		t := time.UnixMilli(ms).In(loc)
		values := make(map[string]entities.Reading, len(p.Values))
		for k, v := range p.Values {
			values[k] = v
		}
		out = append(out, DisplayPoint{
			Timestamp: ms,
			Label:     t.Format(layout),
			FullLabel: t.Format(FullLayout),
			Values:    values,
		})
	}
	return out
}
