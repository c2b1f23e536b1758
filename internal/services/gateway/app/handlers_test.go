package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/camera"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/control"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/history"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/monitor"
)

type fakeHistory struct{ asked []history.Range }

func (f *fakeHistory) Window(r history.Range) []history.DisplayPoint {
	f.asked = append(f.asked, r)
	return []history.DisplayPoint{{Timestamp: 1, Label: "10:00"}}
}

type fixture struct {
	handler http.Handler
	backend *realtime.Memory
	monitor *monitor.Monitor
	toasts  *monitor.ToastFeed
	history *fakeHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := realtime.NewMemory()
	toasts := monitor.NewToastFeed()
	mon := monitor.New(backend, nil, toasts)
	ctl := control.NewService(backend, mon, toasts, time.UTC)
	cam := camera.NewService(backend, toasts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := cam.Run(ctx); err != nil {
		t.Fatal(err)
	}
	hist := &fakeHistory{}
	gw := NewGateway(Config{Location: time.UTC}, Deps{
		State:   mon,
		History: hist,
		Toasts:  toasts,
		Control: ctl,
		Camera:  cam,
		Health:  HealthDeps{Backend: backend},
	})
	return &fixture{handler: gw.Router(), backend: backend, monitor: mon, toasts: toasts, history: hist}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) feed(path, payload string) {
	f.monitor.Handle(realtime.Message{Path: path, Payload: []byte(payload)})
}

func TestReadingsView(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/readings", "")
	var empty ReadingsView
	if err := json.NewDecoder(rec.Body).Decode(&empty); err != nil {
		t.Fatal(err)
	}
	if empty.Available || empty.Temperature.Display != missingDisplay || empty.Temperature.Value != nil {
		t.Fatalf("empty view = %+v", empty)
	}

	f.feed(realtime.PathSensors, `{"temperature":[20,22,15],"humidity":[60,null,40],"moisture":[500,"610"],"soilTemperature":[18,20],"lastUpdate":1709287200000}`)
	rec = f.do(http.MethodGet, "/api/readings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var v ReadingsView
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	checks := map[string][2]string{
		"temperature":        {v.Temperature.Display, "21.0"},
		"humidity":           {v.Humidity.Display, "60.0"},
		"outsideTemperature": {v.OutsideTemperature.Display, "15.0"},
		"outsideHumidity":    {v.OutsideHumidity.Display, "40.0"},
		"soilTemperature":    {v.SoilTemperature.Display, "19.0"},
		"lastUpdateLabel":    {v.LastUpdateLabel, "01 Mar 2024, 10:00:00"},
		"thresholdTemp":      {v.Thresholds["temperature"], "–"},
		"thresholdHumidity":  {v.Thresholds["humidity"], "70"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}
	if len(v.Moisture) != 2 || v.Moisture[1].Display != "610" {
		t.Fatalf("moisture = %+v", v.Moisture)
	}
}

func TestRelayEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/relays/fan", `{"on":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	b, _ := f.backend.Get(realtime.PathRelays)
	var relays model.RelayStatus
	_ = json.Unmarshal(b, &relays)
	if !relays.Fan {
		t.Fatalf("relays = %s", b)
	}

	rec = f.do(http.MethodGet, "/api/relays", "")
	var view RelaysView
	_ = json.NewDecoder(rec.Body).Decode(&view)
	if view.LastChanged["fan"] == "" {
		t.Fatalf("lastChanged = %v", view.LastChanged)
	}

	if rec := f.do(http.MethodPut, "/api/relays/heater", `{"on":true}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown relay status = %d", rec.Code)
	}
	if rec := f.do(http.MethodPut, "/api/relays/fan", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing on status = %d", rec.Code)
	}

	f.feed(realtime.PathMode, `{"automatic":true}`)
	rec = f.do(http.MethodPost, "/api/relays/pump1/toggle", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("automatic mode status = %d", rec.Code)
	}
	var e errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&e)
	if e.Error != control.ErrAutomaticMode.Error() {
		t.Fatalf("error = %q", e.Error)
	}

	rec = f.do(http.MethodGet, "/api/toasts", "")
	var toasts []monitor.Toast
	_ = json.NewDecoder(rec.Body).Decode(&toasts)
	if len(toasts) == 0 || toasts[0].Text != "Fan activated" {
		t.Fatalf("toasts = %+v", toasts)
	}
}

func TestThresholdAndAlertEndpoints(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodPut, "/api/thresholds/lightOn", `{"value":"06:30"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	b, _ := f.backend.Get(realtime.PathThresholds)
	if !strings.Contains(string(b), `"lightOn":"06:30:00"`) {
		t.Fatalf("thresholds = %s", b)
	}
	if rec := f.do(http.MethodPut, "/api/thresholds/lightOn", `{"value":"25:00"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid time status = %d", rec.Code)
	}
	if rec := f.do(http.MethodPut, "/api/thresholds/co2", `{"value":800}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown threshold status = %d", rec.Code)
	}
	if rec := f.do(http.MethodPut, "/api/thresholds/temperature", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", rec.Code)
	}

	if rec := f.do(http.MethodPatch, "/api/alerts", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status = %d", rec.Code)
	}
	if rec := f.do(http.MethodPatch, "/api/alerts", `{"email":"grower@example.com","moistureAlerts":true}`); rec.Code != http.StatusAccepted {
		t.Fatalf("patch status = %d", rec.Code)
	}
	b, _ = f.backend.Get(realtime.PathAlerts)
	var a model.AlertSettings
	_ = json.Unmarshal(b, &a)
	if a.Email != "grower@example.com" || !a.MoistureAlerts || a.TemperatureAlerts {
		t.Fatalf("alerts = %+v", a)
	}
}

func TestCameraEndpoints(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodPost, "/api/camera/commands", `{"type":"takePhoto"}`); rec.Code != http.StatusConflict {
		t.Fatalf("offline status = %d", rec.Code)
	}
	rec := f.do(http.MethodGet, "/api/camera/status", "")
	var st model.CameraStatus
	_ = json.NewDecoder(rec.Body).Decode(&st)
	if st.IPAddress != entities.CameraNotConnected {
		t.Fatalf("status = %+v", st)
	}

	_ = f.backend.Set(realtime.PathCameraStatus, model.CameraStatus{FlashState: entities.FlashOff, PhotoIntervalHours: "12.0", IPAddress: "10.0.0.3"})

	if rec := f.do(http.MethodPost, "/api/camera/commands", `{"type":"setInterval","hours":"0.5"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("setInterval status = %d body %s", rec.Code, rec.Body)
	}
	if rec := f.do(http.MethodPost, "/api/camera/commands", `{"type":"setInterval","hours":100}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range status = %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/camera/commands", `{"type":"reboot"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown command status = %d", rec.Code)
	}

	for i, id := range []string{"a", "b", "c"} {
		_ = f.backend.Set(realtime.Child(realtime.PathPhotos, id), map[string]any{"imageData": "x", "timestamp": 1000 + i})
	}
	rec = f.do(http.MethodGet, "/api/camera/photos?limit=2", "")
	var photos []model.Photo
	_ = json.NewDecoder(rec.Body).Decode(&photos)
	if len(photos) != 2 || photos[0].ID != "c" {
		t.Fatalf("photos = %+v", photos)
	}
	if rec := f.do(http.MethodDelete, "/api/camera/photos/c", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/camera/photos/c", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted photo status = %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/history?range=week", "")
	var v HistoryView
	_ = json.NewDecoder(rec.Body).Decode(&v)
	if v.Range != history.RangeWeek || len(v.Points) != 1 {
		t.Fatalf("view = %+v", v)
	}
	f.do(http.MethodGet, "/api/history?range=decade", "")
	if got := f.history.asked[len(f.history.asked)-1]; got != history.RangeDay {
		t.Fatalf("unknown range fell back to %q", got)
	}
}

func TestHealthAndMiddleware(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "")
	var h struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&h)
	if h.Status != "ok" {
		t.Fatalf("health = %+v", h)
	}
	if rec := f.do(http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("missing request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set(requestIDHeader, "abc")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS header")
	}
	if rec.Header().Get(requestIDHeader) != "abc" {
		t.Fatalf("request id = %q", rec.Header().Get(requestIDHeader))
	}
}

func TestQueryIntClamps(t *testing.T) {
	tests := []struct {
		q    string
		want int
	}{
		{"", 10}, {"abc", 10}, {"0", 1}, {"500", 100}, {"42", 42},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x?limit="+tt.q, nil)
		if got := queryInt(r, "limit", 10, 1, 100); got != tt.want {
			t.Errorf("limit=%q -> %d, want %d", tt.q, got, tt.want)
		}
	}
}
