package registry

import (
	"context"
	"testing"

	"github.com/HerbHall/netglance/pkg/plugin"
	"go.uber.org/zap"
)

// fakePlugin is a minimal plugin for registry tests.
type fakePlugin struct {
	info     plugin.PluginInfo
	initErr  error
	startErr error
	started  bool
	stopped  bool
}

func (f *fakePlugin) Info() plugin.PluginInfo { return f.info }
func (f *fakePlugin) Init(_ context.Context, _ plugin.Dependencies) error {
	return f.initErr
}
func (f *fakePlugin) Start(_ context.Context) error { f.started = true; return f.startErr }
func (f *fakePlugin) Stop(_ context.Context) error  { f.stopped = true; return nil }

func newFake(name string, deps ...string) *fakePlugin {
	return &fakePlugin{info: plugin.PluginInfo{
		Name:         name,
		Version:      "0.1.0",
		Dependencies: deps,
		APIVersion:   plugin.APIVersionCurrent,
	}}
}

func noDeps(string) plugin.Dependencies { return plugin.Dependencies{} }

func TestRegister_RejectsDuplicates(t *testing.T) {
	r := New(zap.NewNop())
	if err := r.Register(newFake("topo")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(newFake("topo")); err == nil {
		t.Error("duplicate Register succeeded, want error")
	}
}

func TestValidate_OrdersDependenciesFirst(t *testing.T) {
	r := New(zap.NewNop())
	watch := newFake("watch", "topo")
	topo := newFake("topo")
	for _, p := range []plugin.Plugin{watch, topo} {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d plugins, want 2", len(all))
	}
	if all[0].Info().Name != "topo" {
		t.Errorf("start order begins with %q, want topo", all[0].Info().Name)
	}
}

func TestValidate_DetectsCycle(t *testing.T) {
	r := New(zap.NewNop())
	a := newFake("a", "b")
	a.info.Required = true
	b := newFake("b", "a")
	b.info.Required = true
	_ = r.Register(a)
	_ = r.Register(b)

	if err := r.Validate(); err == nil {
		t.Error("Validate succeeded with cycle, want error")
	}
}

func TestValidate_DisablesOnMissingDependency(t *testing.T) {
	r := New(zap.NewNop())
	_ = r.Register(newFake("ws", "nonexistent"))

	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !r.IsDisabled("ws") {
		t.Error("plugin with missing dependency not disabled")
	}
}

func TestValidate_MissingDependencyOfRequiredFails(t *testing.T) {
	r := New(zap.NewNop())
	p := newFake("watch", "topo")
	p.info.Required = true
	_ = r.Register(p)

	if err := r.Validate(); err == nil {
		t.Error("Validate succeeded for required plugin with missing dep, want error")
	}
}

func TestInitAll_DisablesFailingOptionalPlugin(t *testing.T) {
	r := New(zap.NewNop())
	bad := newFake("alert")
	bad.initErr = context.DeadlineExceeded
	good := newFake("topo")
	_ = r.Register(bad)
	_ = r.Register(good)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if !r.IsDisabled("alert") {
		t.Error("failing optional plugin not disabled")
	}
	if r.IsDisabled("topo") {
		t.Error("healthy plugin disabled")
	}
}

// resolvingPlugin looks up another plugin through the registry from
// inside Init and Start, the way real modules locate topo.
type resolvingPlugin struct {
	fakePlugin
	registry *Registry
	resolved bool
}

func (p *resolvingPlugin) Init(_ context.Context, _ plugin.Dependencies) error {
	_, p.resolved = p.registry.Resolve("topo")
	return nil
}

func (p *resolvingPlugin) Start(_ context.Context) error {
	if _, ok := p.registry.Resolve("topo"); !ok {
		return context.Canceled
	}
	return nil
}

func TestInitAll_PluginResolvesThroughRegistry(t *testing.T) {
	r := New(zap.NewNop())
	watch := &resolvingPlugin{fakePlugin: *newFake("watch", "topo"), registry: r}
	_ = r.Register(newFake("topo"))
	_ = r.Register(watch)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if !watch.resolved {
		t.Error("plugin could not resolve its dependency during Init")
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
}

func TestStartAll_DisablesFailingOptionalPlugin(t *testing.T) {
	r := New(zap.NewNop())
	bad := newFake("ws")
	bad.startErr = context.DeadlineExceeded
	_ = r.Register(bad)
	_ = r.Register(newFake("topo"))
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if !r.IsDisabled("ws") {
		t.Error("failing optional plugin not disabled")
	}
	if r.IsDisabled("topo") {
		t.Error("healthy plugin disabled")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	r := New(zap.NewNop())
	p := newFake("topo")
	_ = r.Register(p)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := r.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if !p.started {
		t.Error("plugin not started")
	}
	r.StopAll(context.Background())
	if !p.stopped {
		t.Error("plugin not stopped")
	}
}
