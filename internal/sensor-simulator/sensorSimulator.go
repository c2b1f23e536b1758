// Package sensor_simulator stands in for the greenhouse controller and the
// camera board: it publishes readings, history rows and heartbeats, and
// applies the partial updates and camera commands written by the dashboard.
package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/pkg/dedup"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
)

// placeholderImage stands in for a real camera frame.
const placeholderImage = "data:image/jpeg;base64,/9j/4AAQSkZJRgABAQEASABIAAD/2wBDAP//////////////////////////////////////////////////////////////////////////////////////wgALCAABAAEBAREA/8QAFBABAAAAAAAAAAAAAAAAAAAAAP/aAAgBAQABPxA="

// maxCommandAge is how old a command may be when it is first seen; older
// ones are retained leftovers from a previous run.
const maxCommandAge = 2 * time.Minute

type Config struct {
	Interval     time.Duration
	HistoryEvery time.Duration
	Location     *time.Location
	IPAddress    string
	CameraIP     string
	Version      string
}

// DefaultThresholds are published when the rig starts.
func DefaultThresholds() model.ThresholdConfig {
	return model.ThresholdConfig{
		Temperature:     30,
		Moisture:        700,
		SoilTemperature: entities.DefaultSoilTemperatureThreshold,
		Humidity:        entities.DefaultHumidityThreshold,
		LightOn:         "06:00:00",
		LightOff:        "20:00:00",
	}
}

type SensorSimulator struct {
	mu        sync.Mutex
	backend   realtime.Backend
	generator *DataGenerator
	deduper   *dedup.Deduper
	cfg       Config
	now       func() time.Time
	log       zerolog.Logger

	started     time.Time
	relays      model.RelayStatus
	mode        model.ModeSettings
	thresholds  model.ThresholdConfig
	alerts      model.AlertSettings
	camera      model.CameraStatus
	lastHistory time.Time
}

func NewSensorSimulator(backend realtime.Backend, gen *DataGenerator, cfg Config) *SensorSimulator {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.HistoryEvery <= 0 {
		cfg.HistoryEvery = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &SensorSimulator{
		backend:    backend,
		generator:  gen,
		deduper:    dedup.New(10*time.Minute, 1000),
		cfg:        cfg,
		now:        time.Now,
		log:        logger.WithComponent("rig"),
		thresholds: DefaultThresholds(),
	}
}

// WithClock replaces the simulator's clock; used by tests.
func (s *SensorSimulator) WithClock(now func() time.Time) *SensorSimulator {
	s.now = now
	return s
}

// Start publishes the initial state, subscribes to updates and commands and
// publishes a reading every interval until ctx is cancelled.
func (s *SensorSimulator) Start(ctx context.Context) error {
	if err := s.publishInitial(); err != nil {
		return err
	}
	for _, p := range []string{realtime.PathRelays, realtime.PathMode, realtime.PathThresholds, realtime.PathAlerts} {
		if err := s.backend.Subscribe(ctx, p+realtime.UpdateSuffix, s.handleUpdate); err != nil {
			return fmt.Errorf("subscribe %s updates: %w", p, err)
		}
	}
	if err := s.backend.Subscribe(ctx, realtime.PathCameraCommands, s.handleCommand); err != nil {
		return fmt.Errorf("subscribe camera commands: %w", err)
	}

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	s.Tick()
	for {
		select {
		case <-ctx.Done():
			s.goOffline()
			return nil
		case <-t.C:
			s.Tick()
		}
	}
}

func (s *SensorSimulator) publishInitial() error {
	s.mu.Lock()
	now := s.now()
	s.started = now
	s.camera = model.CameraStatus{
		FlashState:         entities.FlashOff,
		PhotoIntervalHours: entities.DefaultPhotoInterval,
		LastUpdate:         entities.TimestampOf(now),
		IPAddress:          s.cfg.CameraIP,
		LastPhotoTime:      entities.NoTimestamp,
	}
	if s.cfg.CameraIP == "" {
		s.camera.IPAddress = entities.CameraNotConnected
	}
	state := map[string]any{
		realtime.PathRelays:       s.relays,
		realtime.PathMode:         s.mode,
		realtime.PathThresholds:   s.thresholds,
		realtime.PathAlerts:       s.alerts,
		realtime.PathCameraStatus: s.camera,
	}
	s.mu.Unlock()

	for p, v := range state {
		if err := s.backend.Set(p, v); err != nil {
			return fmt.Errorf("publish initial %s: %w", p, err)
		}
	}
	return nil
}

// Tick advances the simulation by one step and publishes the results.
func (s *SensorSimulator) Tick() {
	s.mu.Lock()
	now := s.now()
	snap := s.generator.Next(now, Actuators{Relays: s.relays})

	relaysChanged := false
	if s.mode.Automatic {
		next := DecideRelays(snap, s.thresholds, now.In(s.cfg.Location))
		relaysChanged = next != s.relays
		s.relays = next
	}
	relays := s.relays

	var point *model.HistoryPoint
	if s.lastHistory.IsZero() || now.Sub(s.lastHistory) >= s.cfg.HistoryEvery {
		p := messages.PointFromSnapshot(snap, snap.LastUpdate)
		point = &p
		s.lastHistory = now
	}

	status := model.SystemStatus{
		IsOnline:  true,
		IPAddress: s.cfg.IPAddress,
		LastSeen:  entities.TimestampOf(now),
		Version:   s.cfg.Version,
		FreeHeap:  s.generator.FreeHeap(),
		StartTime: entities.TimestampOf(s.started),
	}

	var photo *model.Photo
	if s.camera.Connected() && s.captureDue(now) {
		photo = s.capture(now, "Scheduled capture")
	}
	s.camera.LastUpdate = entities.TimestampOf(now)
	camera := s.camera
	automatic := s.mode.Automatic
	s.mu.Unlock()

	if relaysChanged {
		s.set(realtime.PathRelays, relays)
	}
	s.set(realtime.PathSensors, snap)
	s.set(realtime.PathStatus, status)
	if point != nil {
		s.set(realtime.Child(realtime.PathHistory, uuid.NewString()), point)
	}
	if photo != nil {
		s.set(realtime.Child(realtime.PathPhotos, photo.ID), photo)
	}
	s.set(realtime.PathCameraStatus, camera)

	s.log.Debug().
		Interface("moisture", snap.Moisture).
		Interface("temperature", snap.Temperature).
		Bool("automatic", automatic).
		Msg("published reading")
}

func (s *SensorSimulator) set(path string, v any) {
	if err := s.backend.Set(path, v); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("publish error")
	}
}

func (s *SensorSimulator) goOffline() {
	s.mu.Lock()
	status := model.SystemStatus{
		IsOnline:  false,
		IPAddress: s.cfg.IPAddress,
		LastSeen:  entities.TimestampOf(s.now()),
		Version:   s.cfg.Version,
		StartTime: entities.TimestampOf(s.started),
	}
	s.mu.Unlock()
	s.set(realtime.PathStatus, status)
}

// handleUpdate merges a partial update into the addressed state and
// republishes the whole object.
func (s *SensorSimulator) handleUpdate(msg realtime.Message) error {
	path, ok := realtime.IsUpdate(msg.Path)
	if !ok || msg.Removed() {
		return nil
	}
	var partial map[string]any
	if err := json.Unmarshal(msg.Payload, &partial); err != nil {
		return fmt.Errorf("invalid update for %s: %w", path, err)
	}

	s.mu.Lock()
	var (
		out any
		err error
	)
	switch path {
	case realtime.PathRelays:
		err = merge(&s.relays, partial)
		out = s.relays
	case realtime.PathMode:
		err = merge(&s.mode, partial)
		out = s.mode
	case realtime.PathThresholds:
		err = merge(&s.thresholds, partial)
		out = s.thresholds
	case realtime.PathAlerts:
		err = merge(&s.alerts, partial)
		out = s.alerts
	default:
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("apply update for %s: %w", path, err)
	}

	s.log.Info().Str("path", path).Interface("update", partial).Msg("update applied")
	s.set(path, out)
	return nil
}

// merge overlays partial onto the JSON form of dst.
func merge(dst any, partial map[string]any) error {
	b, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	cur := map[string]any{}
	if err := json.Unmarshal(b, &cur); err != nil {
		return err
	}
	for k, v := range partial {
		cur[k] = v
	}
	if b, err = json.Marshal(cur); err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (s *SensorSimulator) handleCommand(msg realtime.Message) error {
	if msg.Removed() {
		return nil
	}
	var cmd model.CameraCommand
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		return fmt.Errorf("invalid camera command: %w", err)
	}
	if !s.deduper.ShouldProcess(cmd.ID) {
		return nil
	}

	s.mu.Lock()
	now := s.now()
	if cmd.Timestamp.Valid() && now.Sub(cmd.Timestamp.Time()) > maxCommandAge {
		s.mu.Unlock()
		s.log.Debug().Str("id", cmd.ID).Msg("ignoring stale camera command")
		return nil
	}
	var photo *model.Photo
	switch cmd.Type {
	case messages.CommandTakePhoto:
		photo = s.capture(now, "Manual capture")
	case messages.CommandToggleFlash:
		if s.camera.FlashState == entities.FlashOn {
			s.camera.FlashState = entities.FlashOff
		} else {
			s.camera.FlashState = entities.FlashOn
		}
	case messages.CommandSetInterval:
		h, err := strconv.ParseFloat(cmd.Data, 64)
		if err != nil || h < 0.25 || h > 48 {
			s.mu.Unlock()
			return fmt.Errorf("invalid interval %q", cmd.Data)
		}
		s.camera.PhotoIntervalHours = formatHours(h)
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown camera command %q", cmd.Type)
	}
	s.camera.LastUpdate = entities.TimestampOf(now)
	camera := s.camera
	s.mu.Unlock()

	s.log.Info().Str("command", string(cmd.Type)).Str("id", cmd.ID).Msg("camera command executed")
	if photo != nil {
		s.set(realtime.Child(realtime.PathPhotos, photo.ID), photo)
	}
	s.set(realtime.PathCameraStatus, camera)
	return nil
}

// captureDue reports whether the automatic capture interval elapsed.
// Callers hold s.mu.
func (s *SensorSimulator) captureDue(now time.Time) bool {
	h, err := strconv.ParseFloat(s.camera.PhotoIntervalHours, 64)
	if err != nil || h <= 0 {
		return false
	}
	if !s.camera.LastPhotoTime.Valid() {
		return false
	}
	return now.Sub(s.camera.LastPhotoTime.Time()) >= time.Duration(h*float64(time.Hour))
}

// capture records a new photo. Callers hold s.mu.
func (s *SensorSimulator) capture(now time.Time, caption string) *model.Photo {
	ts := entities.TimestampOf(now)
	s.camera.LastPhotoTime = ts
	return &model.Photo{
		ID:        uuid.NewString(),
		ImageData: placeholderImage,
		Timestamp: ts,
		Caption:   caption,
	}
}

// State returns the relays and mode the rig currently applies.
func (s *SensorSimulator) State() (model.RelayStatus, model.ModeSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relays, s.mode
}

// DecideRelays is the controller's automatic mode: pumps water their probes
// when the driest one is above the moisture limit, the fan runs when the
// greenhouse is too hot or too humid, and the light follows its schedule.
func DecideRelays(snap model.SensorSnapshot, t model.ThresholdConfig, clock time.Time) model.RelayStatus {
	var r model.RelayStatus
	if t.Moisture.Valid() {
		for i, m := range snap.Moisture {
			if !m.Valid() || float64(m) <= float64(t.Moisture) {
				continue
			}
			if i%2 == 0 {
				r.Pump1 = true
			} else {
				r.Pump2 = true
			}
		}
	}
	if avg, ok := snap.GreenhouseTemperature(); ok && t.Temperature.Valid() && avg > float64(t.Temperature) {
		r.Fan = true
	}
	if avg, ok := snap.GreenhouseHumidity(); ok && t.Humidity.Valid() && avg > float64(t.Humidity) {
		r.Fan = true
	}
	r.Light = lightScheduled(t.LightOn, t.LightOff, clock)
	return r
}

func lightScheduled(on, off string, clock time.Time) bool {
	start, ok1 := secondsOfDay(on)
	end, ok2 := secondsOfDay(off)
	if !ok1 || !ok2 || start == end {
		return false
	}
	now := clock.Hour()*3600 + clock.Minute()*60 + clock.Second()
	if start < end {
		return now >= start && now < end
	}
	// schedule wraps past midnight
	return now >= start || now < end
}

// formatHours keeps one decimal for whole hours ("12.0") like the board does.
func formatHours(h float64) string {
	if h == math.Trunc(h) {
		return strconv.FormatFloat(h, 'f', 1, 64)
	}
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func secondsOfDay(s string) (int, bool) {
	norm, err := entities.NormalizeClock(s)
	if err != nil {
		return 0, false
	}
	t, err := time.Parse("15:04:05", norm)
	if err != nil {
		return 0, false
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
}
