package watch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/event"
	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/models"
)

// fakeProber returns canned results per address and records calls.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]ProbeResult
	calls   []string
}

func (f *fakeProber) Probe(_ context.Context, ip string, _ time.Duration) ProbeResult {
	f.mu.Lock()
	f.calls = append(f.calls, ip)
	f.mu.Unlock()
	if res, ok := f.results[ip]; ok {
		return res
	}
	if !ValidIPv4(ip) {
		return ProbeResult{Status: models.DeviceStatusUnknown}
	}
	return ProbeResult{Status: models.DeviceStatusDown}
}

func (f *fakeProber) called(ip string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == ip {
			return true
		}
	}
	return false
}

type fakeResolver map[string]string

func (f fakeResolver) IPForMAC(_ context.Context, mac string) string {
	return f[NormalizeMAC(mac)]
}

func newTestSweeper(t *testing.T, gw topo.Gateway, prober Prober, resolver MACResolver) *Sweeper {
	t.Helper()
	bus := event.NewBus(zap.NewNop())
	return NewSweeper(gw, prober, resolver, bus, 4, zap.NewNop())
}

func seedDevice(t *testing.T, gw topo.Gateway, patch *models.DevicePatch) {
	t.Helper()
	if _, err := gw.SaveDevice(context.Background(), patch); err != nil {
		t.Fatalf("seed device %s: %v", patch.ID, err)
	}
}

func TestRunCyclePersistsProbeResults(t *testing.T) {
	gw := topo.NewMemoryStore()
	seedDevice(t, gw, &models.DevicePatch{ID: "d1", IP: strPtr("10.0.0.1")})
	seedDevice(t, gw, &models.DevicePatch{ID: "d2", IP: strPtr("10.0.0.2")})

	lat := 12.5
	prober := &fakeProber{results: map[string]ProbeResult{
		"10.0.0.1": {Status: models.DeviceStatusUp, PingTime: &lat},
		"10.0.0.2": {Status: models.DeviceStatusDown},
	}}
	s := newTestSweeper(t, gw, prober, fakeResolver{})

	result, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if result.Skipped || len(result.Devices) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	d1, _ := gw.Device(context.Background(), "d1")
	if d1.Status != models.DeviceStatusUp || d1.PingTime == nil || *d1.PingTime != 12.5 {
		t.Errorf("d1 = %+v", d1)
	}
	d2, _ := gw.Device(context.Background(), "d2")
	if d2.Status != models.DeviceStatusDown || d2.PingTime != nil {
		t.Errorf("d2 = %+v", d2)
	}
}

// A device with no usable address must be marked unknown without any
// probe traffic being attempted for it.
func TestRunCycleUnknownAddress(t *testing.T) {
	gw := topo.NewMemoryStore()
	seedDevice(t, gw, &models.DevicePatch{ID: "d1", IP: strPtr("not-an-ip")})

	prober := &fakeProber{}
	s := newTestSweeper(t, gw, prober, fakeResolver{})
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	d, _ := gw.Device(context.Background(), "d1")
	if d.Status != models.DeviceStatusUnknown {
		t.Errorf("status = %q, want unknown", d.Status)
	}
	if d.PingTime != nil {
		t.Errorf("ping time = %v, want nil", d.PingTime)
	}
}

func TestRunCycleResolvesAddressFromMAC(t *testing.T) {
	gw := topo.NewMemoryStore()
	seedDevice(t, gw, &models.DevicePatch{ID: "d1", MAC: strPtr("aa:bb:cc:dd:ee:ff")})

	lat := 3.0
	prober := &fakeProber{results: map[string]ProbeResult{
		"192.168.1.50": {Status: models.DeviceStatusUp, PingTime: &lat},
	}}
	resolver := fakeResolver{"AA:BB:CC:DD:EE:FF": "192.168.1.50"}
	s := newTestSweeper(t, gw, prober, resolver)

	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	d, _ := gw.Device(context.Background(), "d1")
	if d.IP != "192.168.1.50" {
		t.Errorf("ip = %q, want resolved address", d.IP)
	}
	if d.Status != models.DeviceStatusUp {
		t.Errorf("status = %q, want up", d.Status)
	}
}

func TestRunCycleProbesVMsOnVMHost(t *testing.T) {
	gw := topo.NewMemoryStore()
	seedDevice(t, gw, &models.DevicePatch{
		ID:   "host",
		Type: typePtr(models.DeviceTypeVMHost),
		IP:   strPtr("10.0.0.1"),
		VirtualMachines: []models.VirtualMachinePatch{
			{Name: "db", IP: strPtr("10.0.0.5")},
			{Name: "web", IP: strPtr("10.0.0.6")},
		},
	})

	lat := 1.0
	prober := &fakeProber{results: map[string]ProbeResult{
		"10.0.0.1": {Status: models.DeviceStatusUp, PingTime: &lat},
		"10.0.0.5": {Status: models.DeviceStatusUp, PingTime: &lat},
		"10.0.0.6": {Status: models.DeviceStatusDown},
	}}
	s := newTestSweeper(t, gw, prober, fakeResolver{})

	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	host, _ := gw.Device(context.Background(), "host")
	if len(host.VirtualMachines) != 2 {
		t.Fatalf("VM set changed: %+v", host.VirtualMachines)
	}
	if host.VirtualMachines[0].Status != models.DeviceStatusUp {
		t.Errorf("db status = %q", host.VirtualMachines[0].Status)
	}
	if host.VirtualMachines[1].Status != models.DeviceStatusDown || host.VirtualMachines[1].PingTime != nil {
		t.Errorf("web = %+v", host.VirtualMachines[1])
	}
	// VM identity fields are untouched by the sweep.
	if host.VirtualMachines[0].IP != "10.0.0.5" {
		t.Errorf("db ip changed: %q", host.VirtualMachines[0].IP)
	}
}

// panicProber panics for one address and defers to inner otherwise.
type panicProber struct {
	inner   Prober
	panicIP string
}

func (p *panicProber) Probe(ctx context.Context, ip string, timeout time.Duration) ProbeResult {
	if ip == p.panicIP {
		panic("prober exploded")
	}
	return p.inner.Probe(ctx, ip, timeout)
}

func TestRunCycleSurvivesProbePanic(t *testing.T) {
	gw := topo.NewMemoryStore()
	seedDevice(t, gw, &models.DevicePatch{ID: "d1", IP: strPtr("10.0.0.1"), Status: statusPtr(models.DeviceStatusUp)})
	seedDevice(t, gw, &models.DevicePatch{ID: "d2", IP: strPtr("10.0.0.2"), Status: statusPtr(models.DeviceStatusUp)})

	lat := 5.0
	inner := &fakeProber{results: map[string]ProbeResult{
		"10.0.0.2": {Status: models.DeviceStatusUp, PingTime: &lat},
	}}
	s := newTestSweeper(t, gw, &panicProber{inner: inner, panicIP: "10.0.0.1"}, fakeResolver{})

	result, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(result.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(result.Devices))
	}

	// The panicking device degrades to down; the other is untouched.
	d1, _ := gw.Device(context.Background(), "d1")
	if d1.Status != models.DeviceStatusDown || d1.PingTime != nil {
		t.Errorf("d1 = %+v, want down with no latency", d1)
	}
	d2, _ := gw.Device(context.Background(), "d2")
	if d2.Status != models.DeviceStatusUp {
		t.Errorf("d2 = %+v, want up", d2)
	}
}

func TestRunCycleSurvivesVMProbePanic(t *testing.T) {
	gw := topo.NewMemoryStore()
	seedDevice(t, gw, &models.DevicePatch{
		ID:   "host",
		Type: typePtr(models.DeviceTypeVMHost),
		IP:   strPtr("10.0.0.1"),
		VirtualMachines: []models.VirtualMachinePatch{
			{Name: "db", IP: strPtr("10.0.0.5")},
			{Name: "web", IP: strPtr("10.0.0.6")},
		},
	})

	lat := 1.0
	inner := &fakeProber{results: map[string]ProbeResult{
		"10.0.0.1": {Status: models.DeviceStatusUp, PingTime: &lat},
		"10.0.0.6": {Status: models.DeviceStatusUp, PingTime: &lat},
	}}
	s := newTestSweeper(t, gw, &panicProber{inner: inner, panicIP: "10.0.0.5"}, fakeResolver{})

	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	host, _ := gw.Device(context.Background(), "host")
	if len(host.VirtualMachines) != 2 {
		t.Fatalf("VM set changed: %+v", host.VirtualMachines)
	}
	if host.VirtualMachines[0].Status != models.DeviceStatusDown || host.VirtualMachines[0].PingTime != nil {
		t.Errorf("db = %+v, want down with no latency", host.VirtualMachines[0])
	}
	if host.VirtualMachines[1].Status != models.DeviceStatusUp {
		t.Errorf("web = %+v, want up", host.VirtualMachines[1])
	}
}

func TestRunCycleSkipsWhenProbingDisabled(t *testing.T) {
	gw := topo.NewMemoryStore()
	if err := gw.SetConfigValue(context.Background(), topo.KeyPingEnabled, json.RawMessage(`false`)); err != nil {
		t.Fatalf("set config: %v", err)
	}
	seedDevice(t, gw, &models.DevicePatch{ID: "d1", IP: strPtr("10.0.0.1")})

	prober := &fakeProber{}
	s := newTestSweeper(t, gw, prober, fakeResolver{})

	result, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if !result.Skipped {
		t.Error("cycle not skipped with probing disabled")
	}
	if prober.called("10.0.0.1") {
		t.Error("device probed despite probing disabled")
	}
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	gw := topo.NewMemoryStore()
	s := newTestSweeper(t, gw, &fakeProber{}, fakeResolver{})
	s.active.Store(true)

	if _, err := s.RunCycle(context.Background()); err != ErrCycleActive {
		t.Errorf("err = %v, want ErrCycleActive", err)
	}
}

func TestRunCycleReportsTransitions(t *testing.T) {
	gw := topo.NewMemoryStore()
	seedDevice(t, gw, &models.DevicePatch{
		ID:     "d1",
		IP:     strPtr("10.0.0.1"),
		Status: statusPtr(models.DeviceStatusUp),
	})

	prober := &fakeProber{results: map[string]ProbeResult{
		"10.0.0.1": {Status: models.DeviceStatusDown},
	}}
	s := newTestSweeper(t, gw, prober, fakeResolver{})

	result, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(result.Observations) != 1 {
		t.Fatalf("got %d observations", len(result.Observations))
	}
	obs := result.Observations[0]
	if obs.PrevStatus != models.DeviceStatusUp || obs.Device.Status != models.DeviceStatusDown {
		t.Errorf("transition = %q -> %q", obs.PrevStatus, obs.Device.Status)
	}
}

func strPtr(s string) *string { return &s }

func statusPtr(s models.DeviceStatus) *models.DeviceStatus { return &s }

func typePtr(v models.DeviceType) *models.DeviceType { return &v }
