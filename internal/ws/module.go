package ws

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/alert"
	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/internal/watch"
	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// Module implements the live-sync plugin.
type Module struct {
	logger  *zap.Logger
	bus     plugin.EventBus
	gateway topo.Gateway
	hub     *Hub

	unsubscribes []func()
}

// New creates a new live-sync plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "ws",
		Version:      "0.1.0",
		Description:  "WebSocket live sync of topology state",
		Dependencies: []string{"topo", "watch", "alert"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.hub = NewHub(m.logger)

	topoPlugin, ok := deps.Plugins.Resolve("topo")
	if !ok {
		return fmt.Errorf("ws requires the topo plugin")
	}
	provider, ok := topoPlugin.(interface{ Gateway() topo.Gateway })
	if !ok {
		return fmt.Errorf("topo plugin does not expose a gateway")
	}
	m.gateway = provider.Gateway()
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.unsubscribes = append(m.unsubscribes,
		m.bus.Subscribe(watch.TopicSweepCompleted, m.onSweepCompleted),
		m.bus.Subscribe(alert.TopicAlertTriggered, m.onAlertTriggered),
	)
	m.logger.Info("ws module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	for _, unsub := range m.unsubscribes {
		unsub()
	}
	m.logger.Info("ws module stopped")
	return nil
}

// onSweepCompleted pushes the full post-cycle device set to every
// client. Clients converge from the full set regardless of which
// intermediate frames they missed.
func (m *Module) onSweepCompleted(_ context.Context, event plugin.Event) {
	payload, ok := event.Payload.(watch.SweepPayload)
	if !ok {
		return
	}
	devices := payload.Devices
	if devices == nil {
		devices = []*models.Device{}
	}
	m.hub.Broadcast(Message{
		Type:      MessageDeviceUpdate,
		Timestamp: time.Now(),
		Data:      DeviceSetData{Devices: devices},
	})
}

func (m *Module) onAlertTriggered(_ context.Context, event plugin.Event) {
	payload, ok := event.Payload.(alert.TriggeredPayload)
	if !ok {
		return
	}
	m.hub.Broadcast(Message{
		Type:      MessageAlert,
		Timestamp: time.Now(),
		Data:      AlertData{Record: payload.Record, Sent: payload.Sent},
	})
}

// Hub exposes the connection hub, mainly for health reporting.
func (m *Module) Hub() *Hub {
	return m.hub
}
