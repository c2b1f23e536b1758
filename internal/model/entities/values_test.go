package entities

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestReadingsUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []float64 // NaN marks Missing
	}{
		{"array", `[21.5, 22, 30]`, []float64{21.5, 22, 30}},
		{"null entry", `[21.5, null, "x"]`, []float64{21.5, math.NaN(), math.NaN()}},
		{"numeric strings", `["21,5", "22.0"]`, []float64{21.5, 22}},
		{"index keyed object", `{"1": 3, "0": 1, "3": 4}`, []float64{1, 3, math.NaN(), 4}},
		{"huge index dropped", `{"0": 21.5, "200000000": 1}`, []float64{21.5}},
		{"last accepted index", `{"63": 7}`, append(nanSlice(63), 7)},
		{"only out of range keys", `{"64": 1, "-1": 2}`, []float64{}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rs Readings
			if err := json.Unmarshal([]byte(tt.in), &rs); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(rs) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(rs), len(tt.want))
			}
			for i, w := range tt.want {
				got := float64(rs[i])
				if math.IsNaN(w) {
					if rs[i].Valid() {
						t.Errorf("[%d] = %v, want missing", i, got)
					}
					continue
				}
				if got != w {
					t.Errorf("[%d] = %v, want %v", i, got, w)
				}
			}
		})
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func TestReadingsAverageSkipsMissing(t *testing.T) {
	rs := Readings{20, Missing, 40}
	avg, ok := rs.Average(0, 2)
	if !ok || avg != 20 {
		t.Fatalf("Average(0,2) = %v,%v want 20,true", avg, ok)
	}
	avg, ok = rs.Average(0, -1)
	if !ok || avg != 30 {
		t.Fatalf("Average(0,-1) = %v,%v want 30,true", avg, ok)
	}
	if _, ok := (Readings{Missing, Missing}).Average(0, -1); ok {
		t.Fatal("Average over missing values should report !ok")
	}
	if _, ok := Readings(nil).Average(0, 2); ok {
		t.Fatal("Average over nil should report !ok")
	}
}

func TestReadingsMax(t *testing.T) {
	if m, ok := (Readings{Missing, -5, -2}).Max(); !ok || m != 0 {
		t.Fatalf("Max = %v,%v want 0,true (missing counts as 0)", m, ok)
	}
	if m, ok := (Readings{300, 812, 640}).Max(); !ok || m != 812 {
		t.Fatalf("Max = %v,%v want 812,true", m, ok)
	}
	if _, ok := (Readings{}).Max(); ok {
		t.Fatal("Max of empty list should report !ok")
	}
}

func TestReadingMarshalNull(t *testing.T) {
	b, err := json.Marshal(struct {
		A Reading `json:"a"`
		B Reading `json:"b"`
	}{A: Missing, B: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":null,"b":1.5}` {
		t.Fatalf("got %s", b)
	}
}

func TestParseTimestamp(t *testing.T) {
	ref := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		in    any
		want  int64
		valid bool
	}{
		{"number", float64(1700000000000), 1700000000000, true},
		{"numeric string", "1700000000000", 1700000000000, true},
		{"rfc3339", "2024-03-01T10:30:00Z", ref.UnixMilli(), true},
		{"zone-less date", "2024-03-01 10:30:00", ref.UnixMilli(), true},
		{"garbage", "not a date", 0, false},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := ParseTimestamp(tt.in)
			if ts.Valid() != tt.valid {
				t.Fatalf("Valid() = %v, want %v", ts.Valid(), tt.valid)
			}
			if tt.valid && ts.Millis() != tt.want {
				t.Fatalf("Millis() = %d, want %d", ts.Millis(), tt.want)
			}
		})
	}
}

func TestThresholdConfigDefaults(t *testing.T) {
	var c ThresholdConfig
	if err := json.Unmarshal([]byte(`{"moisture": "600", "lightOn": "06:00:00"}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.Temperature.Valid() {
		t.Errorf("temperature should be missing, got %v", c.Temperature)
	}
	if c.Moisture != 600 {
		t.Errorf("moisture = %v, want 600", c.Moisture)
	}
	if c.Humidity != DefaultHumidityThreshold || c.SoilTemperature != DefaultSoilTemperatureThreshold {
		t.Errorf("defaults not applied: humidity=%v soil=%v", c.Humidity, c.SoilTemperature)
	}
	if c.LightOn != "06:00:00" {
		t.Errorf("lightOn = %q", c.LightOn)
	}
}

func TestNormalizeClock(t *testing.T) {
	tests := []struct {
		in, want string
		err      bool
	}{
		{"06:30", "06:30:00", false},
		{"6:05", "06:05:00", false},
		{"18:45:10", "18:45:10", false},
		{"24:00", "", true},
		{"12", "", true},
		{"ab:cd", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeClock(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("NormalizeClock(%q) err = %v, want err %v", tt.in, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeClock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAlertSettingsPatch(t *testing.T) {
	email := "grower@example.com"
	on := true
	p := AlertSettingsPatch{Email: &email, HumidityAlerts: &on}
	got := p.Apply(AlertSettings{MoistureAlerts: true})
	want := AlertSettings{Email: email, MoistureAlerts: true, HumidityAlerts: true}
	if got != want {
		t.Fatalf("Apply = %+v, want %+v", got, want)
	}
	if !got.Enabled(QuantityHumidity) || got.Enabled(QuantityTemperature) {
		t.Fatalf("Enabled mismatch: %+v", got)
	}
	if !(AlertSettingsPatch{}).Empty() || p.Empty() {
		t.Fatal("Empty mismatch")
	}
}

func TestRelayStatusSet(t *testing.T) {
	s := RelayStatus{}.Set(RelayFan, true)
	if !s.Get(RelayFan) || s.Get(RelayPump1) {
		t.Fatalf("unexpected status %+v", s)
	}
	if _, ok := ParseRelay("heater"); ok {
		t.Fatal("heater is not a relay")
	}
	if r, ok := ParseRelay("Pump2"); !ok || r != RelayPump2 {
		t.Fatalf("ParseRelay(Pump2) = %v,%v", r, ok)
	}
	if RelayPump1.Title() != "Pump1" {
		t.Fatalf("Title = %q", RelayPump1.Title())
	}
}
