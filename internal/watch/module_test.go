package watch

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/event"
	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/plugin"
	"github.com/HerbHall/netglance/pkg/plugin/plugintest"
)

type staticResolver map[string]plugin.Plugin

func (r staticResolver) Resolve(name string) (plugin.Plugin, bool) {
	p, ok := r[name]
	return p, ok
}

func contractDeps(t *testing.T) func(name string) plugin.Dependencies {
	t.Helper()
	return func(name string) plugin.Dependencies {
		logger := zap.NewNop()
		bus := event.NewBus(logger)
		tp := topo.New()
		if err := tp.Init(context.Background(), plugin.Dependencies{Logger: logger, Bus: bus}); err != nil {
			t.Fatalf("topo.Init() error = %v", err)
		}
		return plugin.Dependencies{
			Logger:  logger.Named(name),
			Bus:     bus,
			Plugins: staticResolver{"topo": tp},
		}
	}
}

func TestContract(t *testing.T) {
	plugintest.TestPluginContractWithDeps(t, func() plugin.Plugin { return New() }, contractDeps(t))
}
