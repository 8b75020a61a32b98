package alert

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/netglance/internal/server"
	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/history", Handler: m.handleListHistory},
		{Method: "GET", Path: "/devices", Handler: m.handleListDeviceSettings},
		{Method: "PUT", Path: "/devices/{id}", Handler: m.handleSetDeviceSetting},
		{Method: "GET", Path: "/rules", Handler: m.handleListRules},
		{Method: "PUT", Path: "/rules/{id}", Handler: m.handleSetRule},
		{Method: "GET", Path: "/rules/fired", Handler: m.handleListFired},
	}
}

func (m *Module) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			alertWriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			alertWriteError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}
	records, err := m.store.ListRecords(r.Context(), since, limit)
	if err != nil {
		m.logger.Warn("failed to list alert history", zap.Error(err))
		alertWriteError(w, http.StatusInternalServerError, "failed to list alert history")
		return
	}
	if records == nil {
		records = []*models.AlertRecord{}
	}
	alertWriteJSON(w, http.StatusOK, records)
}

func (m *Module) handleListDeviceSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := m.store.ListDeviceAlertSettings(r.Context())
	if err != nil {
		m.logger.Warn("failed to list device alert settings", zap.Error(err))
		alertWriteError(w, http.StatusInternalServerError, "failed to list device alert settings")
		return
	}
	if settings == nil {
		settings = []models.DeviceAlertSetting{}
	}
	alertWriteJSON(w, http.StatusOK, settings)
}

func (m *Module) handleSetDeviceSetting(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		alertWriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		alertWriteError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := m.store.SetDeviceAlertEnabled(r.Context(), id, *body.Enabled); err != nil {
		m.logger.Warn("failed to save device alert setting",
			zap.String("device_id", id), zap.Error(err))
		alertWriteError(w, http.StatusInternalServerError, "failed to save device alert setting")
		return
	}
	m.dispatcher.InvalidateDeviceSetting(id)
	alertWriteJSON(w, http.StatusOK, models.DeviceAlertSetting{
		DeviceID: id,
		Enabled:  *body.Enabled,
	})
}

func (m *Module) handleListRules(w http.ResponseWriter, r *http.Request) {
	if m.rules == nil {
		alertWriteJSON(w, http.StatusOK, []RuleInfo{})
		return
	}
	alertWriteJSON(w, http.StatusOK, m.rules.Rules())
}

func (m *Module) handleSetRule(w http.ResponseWriter, r *http.Request) {
	if m.rules == nil {
		alertWriteError(w, http.StatusServiceUnavailable, "health rules are not running")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		alertWriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		alertWriteError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if !m.rules.SetRuleEnabled(id, *body.Enabled) {
		alertWriteError(w, http.StatusNotFound, "rule not found")
		return
	}
	alertWriteJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": *body.Enabled})
}

func (m *Module) handleListFired(w http.ResponseWriter, r *http.Request) {
	if m.rules == nil {
		alertWriteJSON(w, http.StatusOK, []RuleAlert{})
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			alertWriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	alertWriteJSON(w, http.StatusOK, m.rules.FiredAlerts(limit))
}

func alertWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func alertWriteError(w http.ResponseWriter, status int, detail string) {
	server.WriteError(w, status, detail)
}
