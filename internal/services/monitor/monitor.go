// Package monitor keeps the last-known-good greenhouse state, evaluates the
// thresholds on every change and throttles the resulting notifications.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
	"github.com/LeonardoBeccarini/greenhouse/pkg/metrics"
)

// View is the state served to dashboard readers.
type View struct {
	Snapshot     *model.SensorSnapshot        `json:"sensors"`
	Thresholds   model.ThresholdConfig        `json:"thresholds"`
	Alerts       model.AlertSettings          `json:"alerts"`
	AlertsLoaded bool                         `json:"alertsLoaded"`
	Relays       model.RelayStatus            `json:"relays"`
	Mode         model.ModeSettings           `json:"mode"`
	Status       *model.SystemStatus          `json:"status,omitempty"`
	Breaches     []Breach                     `json:"breaches"`
	LastNotified map[model.Quantity]time.Time `json:"lastNotified"`
}

// loadErrors is the toast shown when a path delivers something unreadable.
var loadErrors = map[string]string{
	realtime.PathSensors:    "Failed to load sensor data",
	realtime.PathThresholds: "Failed to load threshold values",
	realtime.PathAlerts:     "Failed to load alert settings",
	realtime.PathRelays:     "Failed to load relay status",
	realtime.PathMode:       "Failed to load mode settings",
	realtime.PathStatus:     "Failed to load system status",
}

type Monitor struct {
	backend    realtime.Backend
	dispatcher *Dispatcher
	toasts     *ToastFeed
	cache      *EmailCache
	events     chan realtime.Message
	now        func() time.Time
	log        zerolog.Logger

	// owned by the goroutine running Handle
	throttle    ThrottleState
	cachedEmail string

	mu   sync.RWMutex
	view View
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

func WithEmailCache(c *EmailCache) Option { return func(m *Monitor) { m.cache = c } }

func WithQueueSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.events = make(chan realtime.Message, n)
		}
	}
}

func New(backend realtime.Backend, dispatcher *Dispatcher, toasts *ToastFeed, opts ...Option) *Monitor {
	m := &Monitor{
		backend:    backend,
		dispatcher: dispatcher,
		toasts:     toasts,
		events:     make(chan realtime.Message, 256),
		now:        time.Now,
		log:        logger.WithComponent("monitor"),
		throttle:   NewThrottleState(),
		view: View{
			Thresholds:   entities.DefaultThresholds(),
			LastNotified: map[model.Quantity]time.Time{},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache != nil {
		if email, err := m.cache.Load(); err != nil {
			m.log.Warn().Err(err).Msg("cannot read cached alert email")
		} else {
			m.cachedEmail = email
		}
	}
	return m
}

// Paths lists the subscriptions the monitor needs.
func Paths() []string {
	return []string{
		realtime.PathSensors,
		realtime.PathThresholds,
		realtime.PathAlerts,
		realtime.PathRelays,
		realtime.PathMode,
		realtime.PathStatus,
	}
}

// Run subscribes to the state paths and processes changes one at a time
// until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for _, p := range Paths() {
		if err := m.backend.Subscribe(ctx, p, m.enqueue); err != nil {
			return fmt.Errorf("subscribe %s: %w", p, err)
		}
	}
	m.log.Info().Int("paths", len(Paths())).Msg("monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor stopped")
			return nil
		case msg := <-m.events:
			m.Handle(msg)
		}
	}
}

// enqueue runs on the backend's delivery goroutine and never blocks it.
func (m *Monitor) enqueue(msg realtime.Message) error {
	select {
	case m.events <- msg:
		return nil
	default:
		return fmt.Errorf("monitor queue full, dropping %s", msg.Path)
	}
}

// Handle applies one change and evaluates the thresholds when the sensors
// or the limits changed. Calls must not overlap.
func (m *Monitor) Handle(msg realtime.Message) {
	var err error
	evaluate := false
	switch msg.Path {
	case realtime.PathSensors:
		if msg.Removed() {
			return
		}
		var s model.SensorSnapshot
		if err = json.Unmarshal(msg.Payload, &s); err == nil {
			m.update(func(v *View) { v.Snapshot = &s })
			evaluate = true
		}
	case realtime.PathThresholds:
		c := entities.DefaultThresholds()
		if !msg.Removed() {
			err = json.Unmarshal(msg.Payload, &c)
		}
		if err == nil {
			m.update(func(v *View) { v.Thresholds = c })
			evaluate = true
		}
	case realtime.PathAlerts:
		var a model.AlertSettings
		if !msg.Removed() {
			err = json.Unmarshal(msg.Payload, &a)
		}
		if err == nil {
			m.update(func(v *View) { v.Alerts, v.AlertsLoaded = a, true })
			if cerr := m.cache.Store(a.Email); cerr != nil {
				m.log.Warn().Err(cerr).Msg("cannot cache alert email")
			}
		}
	case realtime.PathRelays:
		var r model.RelayStatus
		if !msg.Removed() {
			err = json.Unmarshal(msg.Payload, &r)
		}
		if err == nil {
			m.update(func(v *View) { v.Relays = r })
		}
	case realtime.PathMode:
		var md model.ModeSettings
		if !msg.Removed() {
			err = json.Unmarshal(msg.Payload, &md)
		}
		if err == nil {
			m.update(func(v *View) { v.Mode = md })
		}
	case realtime.PathStatus:
		if msg.Removed() {
			m.update(func(v *View) { v.Status = nil })
			return
		}
		var st model.SystemStatus
		if err = json.Unmarshal(msg.Payload, &st); err == nil {
			m.update(func(v *View) { v.Status = &st })
		}
	default:
		return
	}

	if err != nil {
		m.log.Error().Err(err).Str("path", msg.Path).Msg("cannot decode update, keeping last known state")
		metrics.RealtimeMessagesTotal.WithLabelValues(msg.Path, "invalid").Inc()
		if m.toasts != nil {
			m.toasts.Error(loadErrors[msg.Path])
		}
		return
	}
	if evaluate {
		m.evaluate()
	}
}

func (m *Monitor) evaluate() {
	v := m.View()
	if v.Snapshot == nil {
		return
	}
	breaches := Evaluate(*v.Snapshot, v.Thresholds, v.Alerts)
	now := m.now()

	email := m.cachedEmail
	if v.AlertsLoaded {
		email = v.Alerts.Email
	}

	notified := make(map[model.Quantity]time.Time)
	for _, b := range breaches {
		metrics.BreachesTotal.WithLabelValues(string(b.Quantity)).Inc()
		var notify bool
		notify, m.throttle = MaybeNotify(b, m.throttle, now)
		if !notify {
			metrics.AlertsSuppressedTotal.WithLabelValues(string(b.Quantity)).Inc()
			continue
		}
		m.log.Warn().Str("quantity", string(b.Quantity)).
			Float64("current", b.Current).
			Float64("threshold", b.Threshold).
			Msg("threshold breach")
		notified[b.Quantity] = now
		if m.dispatcher != nil {
			m.dispatcher.Dispatch(b, email, now)
		}
	}

	m.update(func(v *View) {
		v.Breaches = breaches
		for q, t := range notified {
			v.LastNotified[q] = t
		}
	})
}

func (m *Monitor) update(fn func(v *View)) {
	m.mu.Lock()
	fn(&m.view)
	m.mu.Unlock()
}

// View returns a copy of the current state.
func (m *Monitor) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v := m.view
	v.Breaches = append([]Breach(nil), m.view.Breaches...)
	v.LastNotified = make(map[model.Quantity]time.Time, len(m.view.LastNotified))
	for q, t := range m.view.LastNotified {
		v.LastNotified[q] = t
	}
	return v
}

// Mode and Relays serve the control panel.
func (m *Monitor) Mode() model.ModeSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Mode
}

func (m *Monitor) Relays() model.RelayStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Relays
}

func (m *Monitor) Thresholds() model.ThresholdConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Thresholds
}

func (m *Monitor) Alerts() (model.AlertSettings, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view.Alerts, m.view.AlertsLoaded
}
