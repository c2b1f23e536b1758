// Package history caches the recent history series, archives it and
// windows it for the charts.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
	"github.com/LeonardoBeccarini/greenhouse/pkg/metrics"
)

// DefaultRefresh is how often the cache is reconciled with the archive.
const DefaultRefresh = 30 * time.Second

type Config struct {
	Limit    int
	Refresh  time.Duration
	Location *time.Location
}

type Service struct {
	backend realtime.Backend
	cache   *MemoryStore
	archive Archive
	cfg     Config
	now     func() time.Time
	log     zerolog.Logger
}

// NewService builds the service; archive may be nil.
func NewService(backend realtime.Backend, archive Archive, cfg Config) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Location == nil {
		cfg.Location = LoadLocation(DefaultTimezone)
	}
	return &Service{
		backend: backend,
		cache:   NewMemoryStore(cfg.Limit),
		archive: archive,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.WithComponent("history"),
	}
}

// WithClock replaces the clock used by Window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run subscribes to the history path and reconciles with the archive on
// every refresh tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.backend.Subscribe(ctx, realtime.All(realtime.PathHistory), s.handle); err != nil {
		return fmt.Errorf("subscribe history: %w", err)
	}
	s.refresh(ctx)

	t := time.NewTicker(s.cfg.Refresh)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

func (s *Service) handle(msg realtime.Message) error {
	if msg.Path == realtime.PathHistory {
		// the collection itself; children carry the points
		return nil
	}
	id := path.Base(msg.Path)
	if msg.Removed() {
		s.cache.Delete(id)
		return nil
	}
	var p model.HistoryPoint
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		metrics.RealtimeMessagesTotal.WithLabelValues(realtime.PathHistory, "invalid").Inc()
		return fmt.Errorf("decode history point %s: %w", id, err)
	}
	p.ID = id
	s.cache.Put(p)

	if s.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.archive.Append(ctx, p); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("cannot archive history point")
		}
	}
	return nil
}

func (s *Service) refresh(ctx context.Context) {
	if s.archive != nil {
		qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pts, err := s.archive.Recent(qctx, s.cfg.Limit)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Msg("history archive query failed, serving cached points")
		}
		if n := s.cache.Merge(pts); n > 0 {
			s.log.Debug().Int("added", n).Msg("history cache backfilled")
		}
	}
	metrics.HistoryPoints.Set(float64(s.cache.Len()))
}

// Window returns the cached points of range r ready for charting.
func (s *Service) Window(r Range) []DisplayPoint {
	return FilterAndFormat(s.cache.Recent(s.cfg.Limit), r, s.now(), s.cfg.Location)
}

// Points returns the raw cached points, oldest first.
func (s *Service) Points() []model.HistoryPoint {
	return s.cache.Recent(s.cfg.Limit)
}
