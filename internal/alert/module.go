// Package alert turns device sweep observations into notifications.
// The evaluator decides when a transition is alert-worthy, the
// dispatcher gates and delivers through the push provider, and a
// separate rule engine watches process and request health metrics.
package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

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

// ruleCheckInterval is how often the health rules run.
const ruleCheckInterval = 30 * time.Second

// memoryHistoryCapacity bounds the fallback history when persistence
// is unavailable.
const memoryHistoryCapacity = 1000

// Module implements the alert plugin.
type Module struct {
	logger     *zap.Logger
	bus        plugin.EventBus
	gateway    topo.Gateway
	store      HistoryStore
	evaluator  *Evaluator
	dispatcher *Dispatcher
	rules      *RuleEngine

	snapshots Snapshotter

	unsubscribe func()
}

// New creates a new alert plugin instance. The snapshot source feeds
// the health rule engine; a nil source disables rule checking.
func New(snapshots Snapshotter) *Module {
	return &Module{snapshots: snapshots}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "alert",
		Version:      "0.1.0",
		Description:  "Alert evaluation, gating and push delivery",
		Dependencies: []string{"topo", "watch"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	topoPlugin, ok := deps.Plugins.Resolve("topo")
	if !ok {
		return fmt.Errorf("alert requires the topo plugin")
	}
	provider, ok := topoPlugin.(interface{ Gateway() topo.Gateway })
	if !ok {
		return fmt.Errorf("topo plugin does not expose a gateway")
	}
	m.gateway = provider.Gateway()

	if deps.Store == nil {
		m.logger.Warn("persistence unavailable, alert history runs in memory only")
		m.store = NewMemoryHistory(memoryHistoryCapacity)
	} else {
		if err := deps.Store.Migrate(ctx, "alert", migrations()); err != nil {
			return err
		}
		m.store = NewStore(deps.Store)
	}

	m.evaluator = NewEvaluator()
	m.dispatcher = NewDispatcher(m.store, NewPushNotifier(m.logger), m.logger)
	if m.snapshots != nil {
		m.rules = NewRuleEngine(m.snapshots, m.logger)
		m.rules.OnFired = m.onRuleFired
	}
	return nil
}

// onRuleFired keeps fired health rules in the same history the device
// alerts use and announces them on the bus.
func (m *Module) onRuleFired(a RuleAlert) {
	ctx := context.Background()
	rec := &models.AlertRecord{
		ID:         a.ID,
		DeviceName: a.RuleName,
		Type:       models.AlertTypeRule,
		Level:      a.Severity,
		Message:    a.Message,
		CreatedAt:  a.FiredAt,
	}
	if err := m.store.AppendRecord(ctx, rec); err != nil {
		m.logger.Warn("failed to record rule alert", zap.Error(err))
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:   TopicRuleFired,
		Source:  "alert",
		Payload: a,
	})
}

func (m *Module) Start(ctx context.Context) error {
	m.unsubscribe = m.bus.Subscribe(watch.TopicSweepCompleted, m.onSweepCompleted)
	if m.rules != nil {
		m.rules.Start(context.Background(), ruleCheckInterval)
	}
	m.logger.Info("alert module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if m.rules != nil {
		m.rules.Stop()
	}
	m.logger.Info("alert module stopped")
	return nil
}

func (m *Module) onSweepCompleted(ctx context.Context, event plugin.Event) {
	payload, ok := event.Payload.(watch.SweepPayload)
	if !ok {
		m.logger.Warn("unexpected sweep payload type")
		return
	}

	settings := topo.LoadSettings(ctx, m.gateway)
	candidates := m.evaluator.Evaluate(payload.Observations, settings)
	for _, c := range candidates {
		rec, sent := m.dispatcher.Dispatch(ctx, c, settings)
		if rec == nil {
			continue
		}
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:   TopicAlertTriggered,
			Source:  "alert",
			Payload: TriggeredPayload{Record: rec, Sent: sent},
		})
	}
}
