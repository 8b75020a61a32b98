package watch

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/server"
	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "POST", Path: "/sweep", Handler: m.handleSweep},
	}
}

func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := topo.LoadSettings(r.Context(), m.gateway)
	watchWriteJSON(w, http.StatusOK, map[string]any{
		"enabled":      settings.PingEnabled,
		"interval_ms":  settings.PingInterval.Milliseconds(),
		"timeout_ms":   settings.PingTimeout.Milliseconds(),
		"cycle_active": m.sweeper.Active(),
	})
}

// handleSweep triggers an immediate cycle outside the schedule.
func (m *Module) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := m.sweeper.RunCycle(r.Context())
	if errors.Is(err, ErrCycleActive) {
		watchWriteError(w, http.StatusConflict, "a sweep cycle is already running")
		return
	}
	if err != nil {
		m.logger.Warn("manual sweep failed", zap.Error(err))
		watchWriteError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	watchWriteJSON(w, http.StatusOK, map[string]any{
		"skipped":     result.Skipped,
		"devices":     len(result.Devices),
		"duration_ms": result.Duration.Milliseconds(),
	})
}

func watchWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func watchWriteError(w http.ResponseWriter, status int, detail string) {
	server.WriteError(w, status, detail)
}
