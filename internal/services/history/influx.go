package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/messages"
)

const DefaultMeasurement = "greenhouse_history"

// InfluxStore archives history points in InfluxDB, one field per series.
type InfluxStore struct {
	writer      *Writer
	query       api.QueryAPI
	bucket      string
	measurement string
	lookback    time.Duration
}

func NewInfluxStore(w *Writer, q api.QueryAPI, bucket, measurement string, lookback time.Duration) *InfluxStore {
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	if lookback <= 0 {
		lookback = RangeMonth.Offset()
	}
	return &InfluxStore{writer: w, query: q, bucket: bucket, measurement: measurement, lookback: lookback}
}

func (s *InfluxStore) Append(_ context.Context, p model.HistoryPoint) error {
	pt, err := toInfluxPoint(s.measurement, p)
	if err != nil {
		return err
	}
	s.writer.WritePoint(s.measurement, pt)
	return nil
}

func (s *InfluxStore) Recent(ctx context.Context, limit int) ([]model.HistoryPoint, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	res, err := s.query.Query(ctx, buildFlux(s.bucket, s.measurement, s.lookback, limit))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer res.Close()

	out := make([]model.HistoryPoint, 0, limit)
	for res.Next() {
		out = append(out, fromRecord(res.Record()))
	}
	if res.Err() != nil {
		return out, fmt.Errorf("influx iterate: %w", res.Err())
	}
	return out, nil
}

func buildFlux(bucket, measurement string, lookback time.Duration, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, int(lookback.Minutes()), measurement, limit)
}

func toInfluxPoint(measurement string, p model.HistoryPoint) (*write.Point, error) {
	if !p.DatetimeUpdate.Valid() {
		return nil, fmt.Errorf("history point %q has no valid timestamp", p.ID)
	}
	fields := make(map[string]any, len(p.Values))
	for k, v := range p.Values {
		if v.Valid() {
			fields[k] = float64(v)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("history point %q has no values", p.ID)
	}
	return write.NewPoint(measurement, nil, fields, p.DatetimeUpdate.Time()), nil
}

func fromRecord(rec *query.FluxRecord) model.HistoryPoint {
	p := model.HistoryPoint{
		DatetimeUpdate: entities.TimestampOf(rec.Time()),
		Values:         make(map[string]entities.Reading),
	}
	for k, v := range rec.Values() {
		if strings.HasPrefix(k, "_") || !isSeries(k) {
			continue
		}
		if f, ok := entities.ParseNumber(v); ok {
			p.Values[k] = entities.Reading(f)
		}
	}
	p.ID = fmt.Sprintf("influx-%d", p.DatetimeUpdate.Millis())
	return p
}

func isSeries(k string) bool {
	for _, prefix := range messages.SeriesPrefixes {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
