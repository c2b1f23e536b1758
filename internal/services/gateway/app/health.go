package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/history"
)

// HealthDeps are the dependencies reported by /healthz and /readyz. Influx
// and Writer are nil when the history archive is disabled; Measurement names
// the series whose archived point count is reported.
type HealthDeps struct {
	Backend     realtime.Backend
	Influx      influxdb2.Client
	Writer      *history.Writer
	Measurement string
	Email       interface{ State() gobreaker.State }
}

const (
	// recentErrorWindow is how long after a write error /healthz stays degraded.
	recentErrorWindow = 30 * time.Second
	pingTimeout       = 2 * time.Second
)

type healthHandler struct {
	deps HealthDeps
}

func NewHealthHandler(deps HealthDeps) http.Handler {
	return &healthHandler{deps: deps}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		BackendOK       bool    `json:"backend_connected"`
		ArchiveEnabled  bool    `json:"archive_enabled"`
		InfluxOK        bool    `json:"influx_ok,omitempty"`
		ArchivedPoints  int64   `json:"archived_points,omitempty"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec,omitempty"`
		EmailBreaker    string  `json:"email_breaker,omitempty"`
	}
	st := status{
		BackendOK:      h.deps.Backend != nil && h.deps.Backend.Connected(),
		ArchiveEnabled: h.deps.Influx != nil,
	}
	archiveOK := true
	if st.ArchiveEnabled {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		ok, err := h.deps.Influx.Ping(ctx)
		cancel()
		st.InfluxOK = ok && err == nil

		age := h.deps.Writer.LastErrorAge()
		st.LastWriteErrorS = age.Seconds()
		measurement := h.deps.Measurement
		if measurement == "" {
			measurement = history.DefaultMeasurement
		}
		st.ArchivedPoints = h.deps.Writer.Count(measurement)
		archiveOK = st.InfluxOK && age > recentErrorWindow
	}
	if h.deps.Email != nil {
		st.EmailBreaker = h.deps.Email.State().String()
	}

	switch {
	case st.BackendOK && archiveOK:
		st.Status = "ok"
	case st.BackendOK || (st.ArchiveEnabled && archiveOK):
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler answers 200 only when every dependency is usable.
type readyHandler struct {
	deps     HealthDeps
	minError time.Duration
}

func NewReadyHandler(deps HealthDeps, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{deps: deps, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.deps.Backend != nil && h.deps.Backend.Connected()
	if ready && h.deps.Influx != nil {
		ready = h.deps.Writer.LastErrorAge() > h.minError
	}
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
