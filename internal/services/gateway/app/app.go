// Package app is the HTTP face of the dashboard backend.
package app

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/history"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/monitor"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
)

type Config struct {
	Location       *time.Location
	AllowedOrigins []string
	MinErrorAge    time.Duration
}

// StateSource is the monitor's last-known-good view.
type StateSource interface {
	View() monitor.View
}

type HistorySource interface {
	Window(r history.Range) []history.DisplayPoint
}

type ToastSource interface {
	Active() []monitor.Toast
}

type Controller interface {
	SetRelay(name string, on bool) error
	ToggleRelay(name string) (bool, error)
	SetMode(automatic bool) error
	UpdateThreshold(name string, value any) error
	UpdateAlertSettings(p entities.AlertSettingsPatch) error
	LastChanged() map[string]string
}

type CameraController interface {
	Status() model.CameraStatus
	Photos() []model.Photo
	Photo(id string) (model.Photo, bool)
	DeletePhoto(id string) error
	TakePhoto() (model.CameraCommand, error)
	ToggleFlash() (model.CameraCommand, error)
	SetInterval(hours float64) (model.CameraCommand, error)
}

type Deps struct {
	State   StateSource
	History HistorySource
	Toasts  ToastSource
	Control Controller
	Camera  CameraController
	Health  HealthDeps
}

type Gateway struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
}

func NewGateway(cfg Config, deps Deps) *Gateway {
	if cfg.Location == nil {
		cfg.Location = history.LoadLocation(history.DefaultTimezone)
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.MinErrorAge <= 0 {
		cfg.MinErrorAge = 2 * time.Second
	}
	return &Gateway{cfg: cfg, deps: deps, log: logger.WithComponent("gateway")}
}

// Router wires every route and the middleware chain.
func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, g.logRequests, collectMetrics)

	r.Handle("/healthz", NewHealthHandler(g.deps.Health)).Methods(http.MethodGet)
	r.Handle("/readyz", NewReadyHandler(g.deps.Health, g.cfg.MinErrorAge)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", g.handleState).Methods(http.MethodGet)
	api.HandleFunc("/readings", g.handleReadings).Methods(http.MethodGet)
	api.HandleFunc("/status", g.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/history", g.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/toasts", g.handleToasts).Methods(http.MethodGet)

	api.HandleFunc("/relays", g.handleRelays).Methods(http.MethodGet)
	api.HandleFunc("/relays/{relay}", g.handleSetRelay).Methods(http.MethodPut)
	api.HandleFunc("/relays/{relay}/toggle", g.handleToggleRelay).Methods(http.MethodPost)
	api.HandleFunc("/mode", g.handleSetMode).Methods(http.MethodPut)
	api.HandleFunc("/thresholds", g.handleThresholds).Methods(http.MethodGet)
	api.HandleFunc("/thresholds/{name}", g.handleSetThreshold).Methods(http.MethodPut)
	api.HandleFunc("/alerts", g.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts", g.handlePatchAlerts).Methods(http.MethodPatch)

	api.HandleFunc("/camera/status", g.handleCameraStatus).Methods(http.MethodGet)
	api.HandleFunc("/camera/commands", g.handleCameraCommand).Methods(http.MethodPost)
	api.HandleFunc("/camera/photos", g.handlePhotos).Methods(http.MethodGet)
	api.HandleFunc("/camera/photos/{id}", g.handlePhoto).Methods(http.MethodGet)
	api.HandleFunc("/camera/photos/{id}", g.handleDeletePhoto).Methods(http.MethodDelete)

	cors := handlers.CORS(
		handlers.AllowedOrigins(g.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(r))
}
