package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse/internal/realtime"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/camera"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/control"
	"github.com/LeonardoBeccarini/greenhouse/internal/services/history"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service errors to HTTP statuses.
func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, control.ErrInvalidTime),
		errors.Is(err, control.ErrInvalidValue),
		errors.Is(err, control.ErrEmptyUpdate),
		errors.Is(err, camera.ErrInvalidInterval):
		code = http.StatusBadRequest
	case errors.Is(err, control.ErrUnknownRelay),
		errors.Is(err, control.ErrUnknownThreshold),
		errors.Is(err, camera.ErrPhotoNotFound):
		code = http.StatusNotFound
	case errors.Is(err, control.ErrAutomaticMode),
		errors.Is(err, camera.ErrCameraOffline):
		code = http.StatusConflict
	case errors.Is(err, realtime.ErrNotConnected):
		code = http.StatusServiceUnavailable
	}
	if code >= http.StatusInternalServerError {
		g.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// queryInt reads an integer query parameter clamped to [min, max].
func queryInt(r *http.Request, key string, def, min, max int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func (g *Gateway) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.deps.State.View())
}

func (g *Gateway) handleReadings(w http.ResponseWriter, _ *http.Request) {
	v := g.deps.State.View()
	out := ReadingsView{
		Thresholds: map[string]string{},
		Breaches:   v.Breaches,
		Moisture:   []Value{},
	}
	for _, q := range entities.Quantities {
		out.Thresholds[string(q)] = control.FormatThreshold(v.Thresholds.Limit(q))
	}
	out.Thresholds["lightOn"] = v.Thresholds.LightOn
	out.Thresholds["lightOff"] = v.Thresholds.LightOff

	s := v.Snapshot
	if s == nil {
		out.LastUpdate = entities.NoTimestamp
		for _, f := range []*Value{&out.Temperature, &out.Humidity, &out.OutsideTemperature, &out.OutsideHumidity, &out.SoilTemperature} {
			*f = Value{Display: missingDisplay}
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	out.Available = true
	out.LastUpdate = s.LastUpdate
	if s.LastUpdate.Valid() {
		out.LastUpdateLabel = s.LastUpdate.Time().In(g.cfg.Location).Format(history.FullLayout)
	}
	t, ok := s.GreenhouseTemperature()
	out.Temperature = newValue(t, ok, 1, entities.QuantityTemperature.Unit())
	h, ok := s.GreenhouseHumidity()
	out.Humidity = newValue(h, ok, 1, entities.QuantityHumidity.Unit())
	out.OutsideTemperature = readingValue(s.OutsideTemperature(), 1, entities.QuantityTemperature.Unit())
	out.OutsideHumidity = readingValue(s.OutsideHumidity(), 1, entities.QuantityHumidity.Unit())
	st, ok := s.AverageSoilTemperature()
	out.SoilTemperature = newValue(st, ok, 1, entities.QuantitySoilTemperature.Unit())
	for _, m := range s.Moisture {
		out.Moisture = append(out.Moisture, readingValue(m, 0, ""))
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := g.deps.State.View().Status
	if st == nil {
		writeJSON(w, http.StatusOK, model.SystemStatus{IsOnline: false, LastSeen: entities.NoTimestamp})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	rng := history.ParseRange(r.URL.Query().Get("range"))
	writeJSON(w, http.StatusOK, HistoryView{Range: rng, Points: g.deps.History.Window(rng)})
}

func (g *Gateway) handleToasts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.deps.Toasts.Active())
}

func (g *Gateway) relaysView() RelaysView {
	v := g.deps.State.View()
	return RelaysView{Relays: v.Relays, Mode: v.Mode, LastChanged: g.deps.Control.LastChanged()}
}

func (g *Gateway) handleRelays(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.relaysView())
}

func (g *Gateway) handleSetRelay(w http.ResponseWriter, r *http.Request) {
	var req relayRequest
	if err := decodeBody(w, r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.On == nil {
		g.writeError(w, r, fmt.Errorf("%w: missing \"on\"", errBadRequest))
		return
	}
	if err := g.deps.Control.SetRelay(mux.Vars(r)["relay"], *req.On); err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"relay": mux.Vars(r)["relay"], "on": *req.On})
}

func (g *Gateway) handleToggleRelay(w http.ResponseWriter, r *http.Request) {
	on, err := g.deps.Control.ToggleRelay(mux.Vars(r)["relay"])
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"relay": mux.Vars(r)["relay"], "on": on})
}

func (g *Gateway) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeBody(w, r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	if req.Automatic == nil {
		g.writeError(w, r, fmt.Errorf("%w: missing \"automatic\"", errBadRequest))
		return
	}
	if err := g.deps.Control.SetMode(*req.Automatic); err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, model.ModeSettings{Automatic: *req.Automatic})
}

func (g *Gateway) handleThresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.deps.State.View().Thresholds)
}

func (g *Gateway) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := decodeBody(w, r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	name := mux.Vars(r)["name"]
	if err := g.deps.Control.UpdateThreshold(name, req.Value); err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"name": name, "value": req.Value})
}

func (g *Gateway) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	v := g.deps.State.View()
	writeJSON(w, http.StatusOK, AlertsView{Settings: v.Alerts, Loaded: v.AlertsLoaded})
}

func (g *Gateway) handlePatchAlerts(w http.ResponseWriter, r *http.Request) {
	var p entities.AlertSettingsPatch
	if err := decodeBody(w, r, &p); err != nil {
		g.writeError(w, r, err)
		return
	}
	if err := g.deps.Control.UpdateAlertSettings(p); err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (g *Gateway) handleCameraStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.deps.Camera.Status())
}

func (g *Gateway) handleCameraCommand(w http.ResponseWriter, r *http.Request) {
	var req cameraCommandRequest
	if err := decodeBody(w, r, &req); err != nil {
		g.writeError(w, r, err)
		return
	}
	var (
		cmd model.CameraCommand
		err error
	)
	switch messages.CameraCommandType(req.Type) {
	case messages.CommandTakePhoto:
		cmd, err = g.deps.Camera.TakePhoto()
	case messages.CommandToggleFlash:
		cmd, err = g.deps.Camera.ToggleFlash()
	case messages.CommandSetInterval:
		hours, ok := entities.ParseNumber(req.Hours)
		if !ok {
			err = fmt.Errorf("%w: %v", camera.ErrInvalidInterval, req.Hours)
			break
		}
		cmd, err = g.deps.Camera.SetInterval(hours)
	default:
		err = fmt.Errorf("%w: unknown command %q", errBadRequest, req.Type)
	}
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, cmd)
}

func (g *Gateway) handlePhotos(w http.ResponseWriter, r *http.Request) {
	photos := g.deps.Camera.Photos()
	if n := queryInt(r, "limit", camera.GalleryLimit, 1, camera.GalleryLimit); n < len(photos) {
		photos = photos[:n]
	}
	writeJSON(w, http.StatusOK, photos)
}

func (g *Gateway) handlePhoto(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, ok := g.deps.Camera.Photo(id)
	if !ok {
		g.writeError(w, r, fmt.Errorf("%w: %s", camera.ErrPhotoNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (g *Gateway) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := g.deps.Camera.DeletePhoto(mux.Vars(r)["id"]); err != nil {
		g.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
