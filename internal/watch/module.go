// Package watch probes every stored device on a schedule and persists
// the observed reachability state. Each cycle publishes the full
// post-cycle device set on the event bus for the broadcast and alert
// modules.
package watch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/plugin"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// Module implements the device watch plugin.
type Module struct {
	logger    *zap.Logger
	bus       plugin.EventBus
	gateway   topo.Gateway
	sweeper   *Sweeper
	scheduler *Scheduler

	unsubscribe func()
}

// New creates a new watch plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "watch",
		Version:      "0.1.0",
		Description:  "Scheduled device reachability sweeps",
		Dependencies: []string{"topo"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	topoPlugin, ok := deps.Plugins.Resolve("topo")
	if !ok {
		return fmt.Errorf("watch requires the topo plugin")
	}
	provider, ok := topoPlugin.(interface{ Gateway() topo.Gateway })
	if !ok {
		return fmt.Errorf("topo plugin does not expose a gateway")
	}
	m.gateway = provider.Gateway()

	cfg := loadConfig(deps.Config)
	m.sweeper = NewSweeper(
		m.gateway,
		NewICMPProber(m.logger),
		NewARPResolver(m.logger),
		m.bus,
		cfg.Concurrency,
		m.logger,
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	settings := topo.LoadSettings(ctx, m.gateway)
	m.scheduler = NewScheduler(m.sweeper, settings.PingInterval, settings.PingEnabled, m.logger)

	// Runtime config writes reschedule the loop without a restart.
	m.unsubscribe = m.bus.Subscribe(topo.TopicConfigChanged, func(ctx context.Context, _ plugin.Event) {
		s := topo.LoadSettings(ctx, m.gateway)
		m.scheduler.Reconfigure(s.PingInterval, s.PingEnabled)
	})

	m.scheduler.Start(context.Background())
	m.logger.Info("watch module started",
		zap.Duration("interval", settings.PingInterval),
		zap.Bool("enabled", settings.PingEnabled))
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	m.logger.Info("watch module stopped")
	return nil
}

// Sweeper exposes the sweep coordinator to other modules.
func (m *Module) Sweeper() *Sweeper {
	return m.sweeper
}
