// Package topo owns the topology model: devices, connections and the
// runtime configuration table. It is the persistence gateway the other
// modules read from and write to, with a short-lived read cache in
// front of the hot list queries and an identity-keyed merge engine for
// partial device updates.
package topo

import (
	"context"
	"time"

	"github.com/HerbHall/netglance/internal/cache"
	"github.com/HerbHall/netglance/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// Module implements the topology plugin.
type Module struct {
	logger     *zap.Logger
	bus        plugin.EventBus
	gateway    Gateway
	cache      *cache.Cache
	storageObs StorageObserver
}

// New creates a new topology plugin instance.
func New() *Module {
	return &Module{}
}

// SetStorageObserver wires database round-trip metrics. Must be called
// before Init.
func (m *Module) SetStorageObserver(obs StorageObserver) {
	m.storageObs = obs
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "topo",
		Version:     "0.1.0",
		Description: "Topology model, persistence and runtime config",
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.cache = cache.New(cache.DefaultTTL)

	if deps.Store == nil {
		m.logger.Warn("persistence unavailable, topology runs in memory only")
		m.gateway = NewMemoryStore()
		return nil
	}
	if err := deps.Store.Migrate(ctx, "topo", migrations()); err != nil {
		return err
	}
	m.gateway = NewStore(deps.Store, m.cache, m.storageObs)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.cache.StartJanitor(context.Background(), time.Minute)
	m.logger.Info("topology module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	m.cache.Stop()
	m.logger.Info("topology module stopped")
	return nil
}

// Gateway exposes the persistence surface to the other modules.
func (m *Module) Gateway() Gateway {
	return m.gateway
}
