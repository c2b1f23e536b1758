package sensor_simulator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
)

var simNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func startRig(t *testing.T) (*SensorSimulator, *realtime.Memory, context.CancelFunc) {
	t.Helper()
	backend := realtime.NewMemory()
	rig := NewSensorSimulator(backend, NewDataGenerator(2, 1), Config{
		Interval:  time.Hour,
		IPAddress: "10.0.0.2",
		CameraIP:  "10.0.0.3",
		Version:   "test",
	}).WithClock(func() time.Time { return simNow })

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rig.Start(ctx) }()
	waitFor(t, func() bool {
		_, ok := backend.Get(realtime.PathSensors)
		return ok
	})
	return rig, backend, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func decode[T any](t *testing.T, m *realtime.Memory, path string) T {
	t.Helper()
	var v T
	b, ok := m.Get(path)
	if !ok {
		t.Fatalf("nothing at %s", path)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return v
}

func TestStartPublishesState(t *testing.T) {
	_, backend, cancel := startRig(t)
	defer cancel()

	st := decode[model.SystemStatus](t, backend, realtime.PathStatus)
	if !st.IsOnline || st.IPAddress != "10.0.0.2" || st.LastSeen.Millis() != simNow.UnixMilli() {
		t.Fatalf("status = %+v", st)
	}
	th := decode[model.ThresholdConfig](t, backend, realtime.PathThresholds)
	if th.Temperature != 30 || th.LightOn != "06:00:00" {
		t.Fatalf("thresholds = %+v", th)
	}
	cam := decode[model.CameraStatus](t, backend, realtime.PathCameraStatus)
	if !cam.Connected() || cam.FlashState != entities.FlashOff {
		t.Fatalf("camera = %+v", cam)
	}

	var mu sync.Mutex
	rows := 0
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	_ = backend.Subscribe(ctx, realtime.All(realtime.PathHistory), func(realtime.Message) error {
		mu.Lock()
		rows++
		mu.Unlock()
		return nil
	})
	mu.Lock()
	defer mu.Unlock()
	if rows != 1 {
		t.Fatalf("history rows = %d, want 1", rows)
	}
}

func TestStopPublishesOffline(t *testing.T) {
	_, backend, cancel := startRig(t)
	cancel()
	waitFor(t, func() bool {
		b, _ := backend.Get(realtime.PathStatus)
		var st model.SystemStatus
		return json.Unmarshal(b, &st) == nil && !st.IsOnline
	})
}

func TestPartialUpdatesAreMerged(t *testing.T) {
	rig, backend, cancel := startRig(t)
	defer cancel()

	_ = backend.Set(realtime.PathRelays+realtime.UpdateSuffix, map[string]any{"fan": true})
	relays := decode[model.RelayStatus](t, backend, realtime.PathRelays)
	if !relays.Fan || relays.Pump1 || relays.Light {
		t.Fatalf("relays = %+v", relays)
	}

	_ = backend.Set(realtime.PathThresholds+realtime.UpdateSuffix, map[string]any{"moisture": 650})
	th := decode[model.ThresholdConfig](t, backend, realtime.PathThresholds)
	if th.Moisture != 650 || th.Temperature != 30 {
		t.Fatalf("thresholds = %+v", th)
	}

	_ = backend.Set(realtime.PathMode+realtime.UpdateSuffix, map[string]any{"automatic": true})
	if _, mode := rig.State(); !mode.Automatic {
		t.Fatal("mode not applied")
	}

	_ = backend.Set(realtime.PathAlerts+realtime.UpdateSuffix, map[string]any{"email": "grower@example.com"})
	if a := decode[model.AlertSettings](t, backend, realtime.PathAlerts); a.Email != "grower@example.com" {
		t.Fatalf("alerts = %+v", a)
	}
}

func TestCameraCommands(t *testing.T) {
	_, backend, cancel := startRig(t)
	defer cancel()

	send := func(id string, typ messages.CameraCommandType, data string, at time.Time) {
		_ = backend.Set(realtime.PathCameraCommands, model.CameraCommand{
			ID: id, Type: typ, Data: data, Timestamp: entities.TimestampOf(at),
		})
	}

	send("c1", messages.CommandToggleFlash, "", simNow)
	if cam := decode[model.CameraStatus](t, backend, realtime.PathCameraStatus); cam.FlashState != entities.FlashOn {
		t.Fatalf("flash = %s", cam.FlashState)
	}
	// same id again is a redelivery
	send("c1", messages.CommandToggleFlash, "", simNow)
	if cam := decode[model.CameraStatus](t, backend, realtime.PathCameraStatus); cam.FlashState != entities.FlashOn {
		t.Fatalf("duplicate toggled flash: %s", cam.FlashState)
	}

	send("c2", messages.CommandSetInterval, "0.25", simNow)
	if cam := decode[model.CameraStatus](t, backend, realtime.PathCameraStatus); cam.PhotoIntervalHours != "0.25" {
		t.Fatalf("interval = %s", cam.PhotoIntervalHours)
	}
	send("c3", messages.CommandSetInterval, "6", simNow)
	if cam := decode[model.CameraStatus](t, backend, realtime.PathCameraStatus); cam.PhotoIntervalHours != "6.0" {
		t.Fatalf("interval = %s", cam.PhotoIntervalHours)
	}

	// stale commands from a previous run are skipped
	send("c4", messages.CommandToggleFlash, "", simNow.Add(-time.Hour))
	if cam := decode[model.CameraStatus](t, backend, realtime.PathCameraStatus); cam.FlashState != entities.FlashOn {
		t.Fatalf("stale command applied: %s", cam.FlashState)
	}

	photos := 0
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var mu sync.Mutex
	_ = backend.Subscribe(ctx, realtime.All(realtime.PathPhotos), func(realtime.Message) error {
		mu.Lock()
		photos++
		mu.Unlock()
		return nil
	})
	send("c5", messages.CommandTakePhoto, "", simNow)
	mu.Lock()
	defer mu.Unlock()
	if photos != 1 {
		t.Fatalf("photos = %d", photos)
	}
	if cam := decode[model.CameraStatus](t, backend, realtime.PathCameraStatus); cam.LastPhotoTime.Millis() != simNow.UnixMilli() {
		t.Fatalf("lastPhotoTime = %v", cam.LastPhotoTime)
	}
}

func TestDecideRelays(t *testing.T) {
	th := DefaultThresholds()
	noon := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	night := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		snap  model.SensorSnapshot
		clock time.Time
		want  model.RelayStatus
	}{
		{
			name:  "all fine at night",
			snap:  model.SensorSnapshot{Temperature: model.Readings{25, 25, 20}, Humidity: model.Readings{50, 50}, Moisture: model.Readings{500, 500}},
			clock: night,
			want:  model.RelayStatus{},
		},
		{
			name:  "dry odd probe runs pump2",
			snap:  model.SensorSnapshot{Temperature: model.Readings{25, 25}, Moisture: model.Readings{500, 800}},
			clock: night,
			want:  model.RelayStatus{Pump2: true},
		},
		{
			name:  "hot greenhouse runs fan, outside ignored",
			snap:  model.SensorSnapshot{Temperature: model.Readings{31, 31, 10}},
			clock: night,
			want:  model.RelayStatus{Fan: true},
		},
		{
			name:  "humid greenhouse runs fan",
			snap:  model.SensorSnapshot{Humidity: model.Readings{80, 75}},
			clock: night,
			want:  model.RelayStatus{Fan: true},
		},
		{
			name:  "light during schedule",
			snap:  model.SensorSnapshot{},
			clock: noon,
			want:  model.RelayStatus{Light: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideRelays(tt.snap, th, tt.clock); got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLightScheduleWrapsMidnight(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 3, 1, h, 0, 0, 0, time.UTC) }
	if !lightScheduled("22:00", "04:00", at(23)) || !lightScheduled("22:00", "04:00", at(2)) {
		t.Fatal("expected light on across midnight")
	}
	if lightScheduled("22:00", "04:00", at(12)) {
		t.Fatal("expected light off at noon")
	}
	if lightScheduled("bad", "04:00", at(2)) {
		t.Fatal("invalid schedule must keep the light off")
	}
}
