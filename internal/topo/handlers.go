package topo

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HerbHall/netglance/internal/server"
	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "GET", Path: "/devices/{id}", Handler: m.handleGetDevice},
		{Method: "POST", Path: "/devices", Handler: m.handleSaveDevice},
		{Method: "DELETE", Path: "/devices/{id}", Handler: m.handleDeleteDevice},
		{Method: "GET", Path: "/connections", Handler: m.handleListConnections},
		{Method: "POST", Path: "/connections", Handler: m.handleSaveConnection},
		{Method: "DELETE", Path: "/connections/{id}", Handler: m.handleDeleteConnection},
		{Method: "GET", Path: "/config", Handler: m.handleGetConfig},
		{Method: "PUT", Path: "/config", Handler: m.handleSetConfig},
	}
}

func (m *Module) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := m.gateway.Devices(r.Context())
	if err != nil {
		m.logger.Warn("failed to list devices", zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []*models.Device{}
	}
	topoWriteJSON(w, http.StatusOK, devices)
}

func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		topoWriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	device, err := m.gateway.Device(r.Context(), id)
	if err != nil {
		m.logger.Warn("failed to get device", zap.String("device_id", id), zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	if device == nil {
		topoWriteError(w, http.StatusNotFound, "device not found")
		return
	}
	topoWriteJSON(w, http.StatusOK, device)
}

func (m *Module) handleSaveDevice(w http.ResponseWriter, r *http.Request) {
	var patch models.DevicePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		topoWriteError(w, http.StatusBadRequest, "invalid device payload")
		return
	}
	if patch.ID == "" {
		topoWriteError(w, http.StatusBadRequest, "device id is required")
		return
	}
	merged, err := m.gateway.SaveDevice(r.Context(), &patch)
	if err != nil {
		m.logger.Warn("failed to save device", zap.String("device_id", patch.ID), zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to save device")
		return
	}
	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic:   TopicDeviceSaved,
		Source:  "topo",
		Payload: DeviceSavedPayload{Device: merged},
	})
	topoWriteJSON(w, http.StatusOK, merged)
}

func (m *Module) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		topoWriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := m.gateway.DeleteDevice(r.Context(), id); err != nil {
		m.logger.Warn("failed to delete device", zap.String("device_id", id), zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic:   TopicDeviceDeleted,
		Source:  "topo",
		Payload: map[string]string{"device_id": id},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := m.gateway.Connections(r.Context())
	if err != nil {
		m.logger.Warn("failed to list connections", zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to list connections")
		return
	}
	if conns == nil {
		conns = []*models.Connection{}
	}
	topoWriteJSON(w, http.StatusOK, conns)
}

func (m *Module) handleSaveConnection(w http.ResponseWriter, r *http.Request) {
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		topoWriteError(w, http.StatusBadRequest, "invalid connection payload")
		return
	}
	err := m.gateway.SaveConnection(r.Context(), &conn)
	if errors.Is(err, ErrDuplicateConnection) {
		topoWriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		m.logger.Warn("failed to save connection", zap.String("connection_id", conn.ID), zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to save connection")
		return
	}
	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic:   TopicConnectionSaved,
		Source:  "topo",
		Payload: &conn,
	})
	topoWriteJSON(w, http.StatusOK, &conn)
}

func (m *Module) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		topoWriteError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := m.gateway.DeleteConnection(r.Context(), id); err != nil {
		m.logger.Warn("failed to delete connection", zap.String("connection_id", id), zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to delete connection")
		return
	}
	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic:   TopicConnectionDeleted,
		Source:  "topo",
		Payload: map[string]string{"connection_id": id},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := m.gateway.AllConfig(r.Context())
	if err != nil {
		m.logger.Warn("failed to load config", zap.Error(err))
		topoWriteError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	topoWriteJSON(w, http.StatusOK, cfg)
}

func (m *Module) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var updates map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		topoWriteError(w, http.StatusBadRequest, "invalid config payload")
		return
	}
	keys := make([]string, 0, len(updates))
	for key, value := range updates {
		if err := m.gateway.SetConfigValue(r.Context(), key, value); err != nil {
			m.logger.Warn("failed to save config", zap.String("key", key), zap.Error(err))
			topoWriteError(w, http.StatusInternalServerError, "failed to save config")
			return
		}
		keys = append(keys, key)
	}
	if len(keys) > 0 {
		m.bus.PublishAsync(r.Context(), plugin.Event{
			Topic:   TopicConfigChanged,
			Source:  "topo",
			Payload: ConfigChangedPayload{Keys: keys},
		})
	}
	topoWriteJSON(w, http.StatusOK, map[string]any{"updated": keys})
}

func topoWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func topoWriteError(w http.ResponseWriter, status int, detail string) {
	server.WriteError(w, status, detail)
}
