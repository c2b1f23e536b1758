package history

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
)

func withID(id string, ts float64) model.HistoryPoint {
	p := pt(ts)
	p.ID = id
	return p
}

func TestMemoryStoreKeepsNewest(t *testing.T) {
	s := NewMemoryStore(3)
	s.Put(withID("d", 4))
	s.Put(withID("a", 1))
	s.Put(withID("c", 3))
	s.Put(withID("b", 2))

	got := s.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	for i, id := range []string{"b", "c", "d"} {
		if got[i].ID != id {
			t.Fatalf("order = %v", got)
		}
	}
	if last := s.Recent(1); len(last) != 1 || last[0].ID != "d" {
		t.Fatalf("Recent(1) = %v", last)
	}

	s.Put(withID("c", 10))
	if got := s.Recent(0); got[2].ID != "c" {
		t.Fatalf("replacement not reordered: %v", got)
	}
	s.Delete("c")
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestMemoryStoreMergeSkipsKnownTimestamps(t *testing.T) {
	s := NewMemoryStore(10)
	s.Put(withID("live", 5))
	added := s.Merge([]model.HistoryPoint{withID("influx-5", 5), withID("influx-6", 6), pt("bad")})
	if added != 1 || s.Len() != 2 {
		t.Fatalf("added = %d, len = %d", added, s.Len())
	}
}

func TestBuildFlux(t *testing.T) {
	q := buildFlux("greenhouse", "greenhouse_history", 24*time.Hour, 100)
	for _, want := range []string{
		`from(bucket: "greenhouse")`,
		`range(start: -1440m)`,
		`r._measurement == "greenhouse_history"`,
		`pivot(rowKey: ["_time"]`,
		`limit(n:100)`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestInfluxPointConversion(t *testing.T) {
	at := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	p := model.HistoryPoint{
		ID:             "x",
		DatetimeUpdate: entities.TimestampOf(at),
		Values: map[string]entities.Reading{
			"temperature0": 21.5,
			"moisture2":    entities.Missing,
		},
	}
	ip, err := toInfluxPoint(DefaultMeasurement, p)
	if err != nil {
		t.Fatal(err)
	}
	if ip.Name() != DefaultMeasurement || !ip.Time().Equal(at) || len(ip.FieldList()) != 1 {
		t.Fatalf("point = %s %v %v", ip.Name(), ip.Time(), ip.FieldList())
	}

	if _, err := toInfluxPoint(DefaultMeasurement, pt("bad")); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}

	rec := query.NewFluxRecord(0, map[string]interface{}{
		"_time":        at,
		"_measurement": DefaultMeasurement,
		"temperature0": 21.5,
		"humidity1":    int64(60),
		"result":       "_result",
	})
	back := fromRecord(rec)
	if back.DatetimeUpdate != entities.TimestampOf(at) || back.Value("temperature0") != 21.5 || back.Value("humidity1") != 60 {
		t.Fatalf("fromRecord = %+v", back)
	}
	if len(back.Values) != 2 {
		t.Fatalf("unexpected values %v", back.Values)
	}
}
