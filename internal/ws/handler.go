package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/stream", Handler: m.handleStream},
	}
}

// handleStream upgrades the connection and runs it until the client
// disconnects. The full device snapshot is queued before the client is
// visible to broadcasts, so every client starts from converged state.
func (m *Module) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		m.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan Message, 256),
		logger: m.logger,
	}

	devices, err := m.gateway.Devices(r.Context())
	if err != nil {
		m.logger.Warn("snapshot load failed", zap.Error(err))
		devices = nil
	}
	if devices == nil {
		devices = []*models.Device{}
	}
	client.send <- Message{
		Type:      MessageDeviceUpdate,
		Timestamp: time.Now(),
		Data:      DeviceSetData{Devices: devices},
	}

	m.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until the client disconnects.
	m.readPump(ctx, client)

	m.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// readPump decodes client messages and applies them. Malformed frames
// are logged and skipped; the connection survives.
func (m *Module) readPump(ctx context.Context, c *Client) {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			return
		}
		switch msg.Type {
		case MessageDeviceUpdate:
			m.applyDeviceUpdate(ctx, c, msg.Data)
		case MessageConfigUpdate:
			m.applyConfigUpdate(ctx, c, msg.Data)
		default:
			m.logger.Debug("ignoring unknown client message",
				zap.String("type", string(msg.Type)), zap.String("client_id", c.id))
		}
	}
}

// applyDeviceUpdate persists a client-originated patch and rebroadcasts
// the merged device to every other client.
func (m *Module) applyDeviceUpdate(ctx context.Context, c *Client, data json.RawMessage) {
	var patch models.DevicePatch
	if err := json.Unmarshal(data, &patch); err != nil || patch.ID == "" {
		m.logger.Warn("invalid device update from client",
			zap.String("client_id", c.id), zap.Error(err))
		return
	}

	merged, err := m.gateway.SaveDevice(ctx, &patch)
	if err != nil {
		m.logger.Warn("failed to persist client device update",
			zap.String("device_id", patch.ID), zap.Error(err))
		return
	}

	m.hub.BroadcastExcept(c, Message{
		Type:      MessageDeviceUpdate,
		Timestamp: time.Now(),
		Data:      DeviceData{Device: merged},
	})
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:   topo.TopicDeviceSaved,
		Source:  "ws",
		Payload: topo.DeviceSavedPayload{Device: merged, Origin: "ws"},
	})
}

// applyConfigUpdate persists client-originated config writes and
// announces the change so the sweep loop reschedules.
func (m *Module) applyConfigUpdate(ctx context.Context, c *Client, data json.RawMessage) {
	var updates map[string]json.RawMessage
	if err := json.Unmarshal(data, &updates); err != nil || len(updates) == 0 {
		m.logger.Warn("invalid config update from client",
			zap.String("client_id", c.id), zap.Error(err))
		return
	}

	keys := make([]string, 0, len(updates))
	for key, value := range updates {
		if err := m.gateway.SetConfigValue(ctx, key, value); err != nil {
			m.logger.Warn("failed to persist client config update",
				zap.String("key", key), zap.Error(err))
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return
	}

	m.hub.BroadcastExcept(c, Message{
		Type:      MessageConfigUpdate,
		Timestamp: time.Now(),
		Data:      updates,
	})
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:   topo.TopicConfigChanged,
		Source:  "ws",
		Payload: topo.ConfigChangedPayload{Keys: keys, Origin: "ws"},
	})
}
