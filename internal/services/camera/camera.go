// Package camera drives the camera board: status, commands and the photo
// gallery.
package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
)

var (
	ErrInvalidInterval = errors.New("interval must be between 0.25 and 48 hours")
	ErrCameraOffline   = errors.New("camera is not connected")
	ErrPhotoNotFound   = errors.New("photo not found")
)

const (
	MinIntervalHours = 0.25
	MaxIntervalHours = 48.0

	// GalleryLimit is the number of newest photos kept.
	GalleryLimit = 100
)

type Notifier interface {
	Success(text string)
	Error(text string)
	Info(text string)
}

type Service struct {
	backend realtime.Backend
	toasts  Notifier
	now     func() time.Time
	log     zerolog.Logger

	mu     sync.RWMutex
	status *model.CameraStatus
	photos map[string]model.Photo
}

func NewService(backend realtime.Backend, toasts Notifier) *Service {
	return &Service{
		backend: backend,
		toasts:  toasts,
		now:     time.Now,
		log:     logger.WithComponent("camera"),
		photos:  make(map[string]model.Photo),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run subscribes to the board status and the photo collection.
func (s *Service) Run(ctx context.Context) error {
	if err := s.backend.Subscribe(ctx, realtime.PathCameraStatus, s.handleStatus); err != nil {
		return fmt.Errorf("subscribe camera status: %w", err)
	}
	if err := s.backend.Subscribe(ctx, realtime.All(realtime.PathPhotos), s.handlePhoto); err != nil {
		return fmt.Errorf("subscribe photos: %w", err)
	}
	return nil
}

func (s *Service) handleStatus(msg realtime.Message) error {
	if msg.Removed() {
		// the board never reported: publish the default status
		def := entities.DefaultCameraStatus(entities.TimestampOf(s.now()))
		s.setStatus(&def)
		if err := s.backend.Set(realtime.PathCameraStatus, def); err != nil {
			s.log.Warn().Err(err).Msg("cannot publish default camera status")
		}
		return nil
	}
	var st model.CameraStatus
	if err := json.Unmarshal(msg.Payload, &st); err != nil {
		if s.toasts != nil {
			s.toasts.Error("Failed to load ESP32-CAM status")
		}
		return fmt.Errorf("decode camera status: %w", err)
	}
	s.setStatus(&st)
	return nil
}

func (s *Service) setStatus(st *model.CameraStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Service) handlePhoto(msg realtime.Message) error {
	if msg.Path == realtime.PathPhotos {
		return nil
	}
	id := path.Base(msg.Path)
	if msg.Removed() {
		s.mu.Lock()
		delete(s.photos, id)
		s.mu.Unlock()
		return nil
	}
	var raw struct {
		ImageData string             `json:"imageData"`
		Timestamp entities.Timestamp `json:"timestamp"`
		Caption   string             `json:"caption"`
	}
	if err := json.Unmarshal(msg.Payload, &raw); err != nil {
		s.notifyError("Failed to load plant photos")
		return fmt.Errorf("decode photo %s: %w", id, err)
	}
	ts := raw.Timestamp
	if !ts.Valid() {
		ts = entities.TimestampOf(s.now())
	}
	s.mu.Lock()
	s.photos[id] = model.Photo{ID: id, ImageData: raw.ImageData, Timestamp: ts, Caption: raw.Caption}
	s.mu.Unlock()
	return nil
}

// Status returns the last reported status, or the default one when the
// board has not reported yet.
func (s *Service) Status() model.CameraStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return entities.DefaultCameraStatus(entities.TimestampOf(s.now()))
	}
	return *s.status
}

// Photos returns the newest photos first, at most GalleryLimit.
func (s *Service) Photos() []model.Photo {
	s.mu.RLock()
	out := make([]model.Photo, 0, len(s.photos))
	for _, p := range s.photos {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > GalleryLimit {
		out = out[:GalleryLimit]
	}
	return out
}

func (s *Service) Photo(id string) (model.Photo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[id]
	return p, ok
}

func (s *Service) DeletePhoto(id string) error {
	if _, ok := s.Photo(id); !ok {
		return fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
	}
	if err := s.backend.Remove(realtime.Child(realtime.PathPhotos, id)); err != nil {
		s.notifyError("Failed to delete photo")
		return fmt.Errorf("delete photo %s: %w", id, err)
	}
	s.notifySuccess("Photo deleted successfully")
	return nil
}

func (s *Service) TakePhoto() (model.CameraCommand, error) {
	cmd, err := s.send(messages.CommandTakePhoto, "")
	if err != nil {
		return cmd, err
	}
	if s.toasts != nil {
		s.toasts.Success("Photo command sent to ESP32-CAM")
		s.toasts.Info("The photo will appear in the gallery once processed")
	}
	return cmd, nil
}

func (s *Service) ToggleFlash() (model.CameraCommand, error) {
	return s.send(messages.CommandToggleFlash, "")
}

// SetInterval sets the automatic capture interval in hours.
func (s *Service) SetInterval(hours float64) (model.CameraCommand, error) {
	if hours != hours || hours < MinIntervalHours || hours > MaxIntervalHours {
		return model.CameraCommand{}, fmt.Errorf("%w: %v", ErrInvalidInterval, hours)
	}
	return s.send(messages.CommandSetInterval, strconv.FormatFloat(hours, 'f', -1, 64))
}

func (s *Service) send(t messages.CameraCommandType, data string) (model.CameraCommand, error) {
	if !s.Status().Connected() {
		return model.CameraCommand{}, ErrCameraOffline
	}
	cmd := model.CameraCommand{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      data,
		Timestamp: entities.TimestampOf(s.now()),
	}
	if err := s.backend.Set(realtime.PathCameraCommands, cmd); err != nil {
		s.notifyError("Failed to send command")
		return model.CameraCommand{}, fmt.Errorf("send %s: %w", t, err)
	}
	s.notifySuccess("Command sent: " + string(t))
	s.log.Info().Str("command", string(t)).Str("id", cmd.ID).Msg("camera command sent")
	return cmd, nil
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
