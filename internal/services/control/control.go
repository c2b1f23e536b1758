// Package control issues the manual writes of the dashboard: relays, mode,
// thresholds and alert settings.
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
)

var (
	ErrAutomaticMode    = errors.New("cannot control relays in automatic mode")
	ErrUnknownRelay     = errors.New("unknown relay")
	ErrUnknownThreshold = errors.New("unknown threshold")
	ErrInvalidTime      = errors.New("invalid time of day")
	ErrInvalidValue     = errors.New("invalid threshold value")
	ErrEmptyUpdate      = errors.New("nothing to update")
)

// LastChangedLayout is how relay change times are shown.
const LastChangedLayout = "3:04:05 PM"

// StateReader exposes the last-known mode and relay state.
type StateReader interface {
	Mode() model.ModeSettings
	Relays() model.RelayStatus
}

type Notifier interface {
	Success(text string)
	Error(text string)
}

type Service struct {
	backend realtime.Backend
	state   StateReader
	toasts  Notifier
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger

	mu          sync.RWMutex
	lastChanged map[model.Relay]time.Time
}

func NewService(backend realtime.Backend, state StateReader, toasts Notifier, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		backend:     backend,
		state:       state,
		toasts:      toasts,
		loc:         loc,
		now:         time.Now,
		log:         logger.WithComponent("control"),
		lastChanged: make(map[model.Relay]time.Time),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SetRelay switches one relay. It is refused while the rig runs in
// automatic mode.
func (s *Service) SetRelay(name string, on bool) error {
	relay, ok := entities.ParseRelay(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRelay, name)
	}
	if s.state.Mode().Automatic {
		s.notifyError("Cannot control relays in automatic mode")
		return ErrAutomaticMode
	}
	if err := s.backend.Update(realtime.PathRelays, map[string]any{string(relay): on}); err != nil {
		s.log.Error().Err(err).Str("relay", string(relay)).Msg("relay update failed")
		s.notifyError("Failed to update " + string(relay))
		return fmt.Errorf("update relay %s: %w", relay, err)
	}

	s.mu.Lock()
	s.lastChanged[relay] = s.now()
	s.mu.Unlock()

	verb := "deactivated"
	if on {
		verb = "activated"
	}
	s.notifySuccess(relay.Title() + " " + verb)
	s.log.Info().Str("relay", string(relay)).Bool("on", on).Msg("relay updated")
	return nil
}

// ToggleRelay flips a relay from its last-known state and returns the new one.
func (s *Service) ToggleRelay(name string) (bool, error) {
	relay, ok := entities.ParseRelay(name)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRelay, name)
	}
	next := !s.state.Relays().Get(relay)
	return next, s.SetRelay(name, next)
}

func (s *Service) SetMode(automatic bool) error {
	if err := s.backend.Update(realtime.PathMode, map[string]any{"automatic": automatic}); err != nil {
		s.notifyError("Failed to update mode")
		return fmt.Errorf("update mode: %w", err)
	}
	mode := "manual"
	if automatic {
		mode = "automatic"
	}
	s.notifySuccess("Switched to " + mode + " mode")
	return nil
}

// UpdateThreshold writes one limit. Numeric limits accept numbers or
// numeric strings; lightOn and lightOff accept "HH:MM" or "HH:MM:SS" and
// are stored as "HH:MM:SS".
func (s *Service) UpdateThreshold(name string, value any) error {
	key, stored, err := thresholdValue(name, value)
	if err != nil {
		return err
	}
	if err := s.backend.Update(realtime.PathThresholds, map[string]any{key: stored}); err != nil {
		s.notifyError("Failed to update " + key + " threshold")
		return fmt.Errorf("update threshold %s: %w", key, err)
	}
	s.notifySuccess(strings.ToUpper(key[:1]) + key[1:] + " threshold updated")
	return nil
}

func thresholdValue(name string, value any) (string, any, error) {
	switch strings.TrimSpace(name) {
	case "lightOn", "lightOff":
		str, ok := value.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidTime, value)
		}
		clock, err := entities.NormalizeClock(str)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}
		return strings.TrimSpace(name), clock, nil
	}
	q, ok := entities.ParseQuantity(name)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownThreshold, name)
	}
	f, ok := entities.ParseNumber(value)
	if !ok {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	return string(q), f, nil
}

// UpdateAlertSettings writes the non-nil fields of p.
func (s *Service) UpdateAlertSettings(p entities.AlertSettingsPatch) error {
	if p.Empty() {
		return ErrEmptyUpdate
	}
	partial := make(map[string]any, 5)
	if p.Email != nil {
		partial["email"] = strings.TrimSpace(*p.Email)
	}
	if p.TemperatureAlerts != nil {
		partial["temperatureAlerts"] = *p.TemperatureAlerts
	}
	if p.MoistureAlerts != nil {
		partial["moistureAlerts"] = *p.MoistureAlerts
	}
	if p.HumidityAlerts != nil {
		partial["humidityAlerts"] = *p.HumidityAlerts
	}
	if p.SoilTemperatureAlerts != nil {
		partial["soilTemperatureAlerts"] = *p.SoilTemperatureAlerts
	}
	if err := s.backend.Update(realtime.PathAlerts, partial); err != nil {
		s.notifyError("Failed to update alert settings")
		return fmt.Errorf("update alert settings: %w", err)
	}
	s.notifySuccess("Alert settings updated")
	return nil
}

// LastChanged returns, per relay switched from this dashboard, the time of
// the last switch rendered in the display timezone.
func (s *Service) LastChanged() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.lastChanged))
	for r, t := range s.lastChanged {
		out[string(r)] = t.In(s.loc).Format(LastChangedLayout)
	}
	return out
}

func (s *Service) notifySuccess(text string) {
	if s.toasts != nil {
		s.toasts.Success(text)
	}
}

func (s *Service) notifyError(text string) {
	if s.toasts != nil {
		s.toasts.Error(text)
	}
}

// FormatThreshold renders a numeric limit for display; missing limits are "–".
func FormatThreshold(r model.Reading) string {
	if !r.Valid() {
		return "–"
	}
	return strconv.FormatFloat(float64(r), 'f', -1, 64)
}
