package history

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
	"github.com/LeonardoBeccarini/greenhouse/pkg/metrics"
)

// Writer wraps the async WriteAPI and tracks the last write error for the
// health and readiness probes.
type Writer struct {
	api     api.WriteAPI
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// NewWriter starts draining the asynchronous Influx errors.
func NewWriter(w api.WriteAPI) *Writer {
	ww := &Writer{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour), // far in the past by default
		counts:  make(map[string]int64),
	}
	log := logger.WithComponent("history-writer")
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				metrics.HistoryWriteErrors.Inc()
				log.Error().Err(err).Msg("influx write error")
			}
		}
	}()
	return ww
}

// WritePoint queues p and counts it under measurement.
func (w *Writer) WritePoint(measurement string, p *write.Point) {
	w.api.WritePoint(p)
	w.markIngest(measurement)
}

func (w *Writer) Flush() {
	if w != nil {
		w.api.Flush()
	}
}

// LastErrorAge is the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

func (w *Writer) markIngest(measurement string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.counts[measurement]++
	w.mu.Unlock()
}

// Count is the number of points queued under measurement since start.
func (w *Writer) Count(measurement string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[measurement]
	w.mu.RUnlock()
	return c
}
