package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/event"
	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/internal/watch"
	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
)

func newTestModule(t *testing.T) (*Module, topo.Gateway) {
	t.Helper()
	gw := topo.NewMemoryStore()
	m := &Module{
		logger:  zap.NewNop(),
		bus:     event.NewBus(zap.NewNop()),
		gateway: gw,
		hub:     NewHub(zap.NewNop()),
	}
	return m, gw
}

func TestApplyDeviceUpdatePersistsAndRebroadcasts(t *testing.T) {
	m, gw := newTestModule(t)
	ctx := context.Background()

	sender := newTestClient("sender")
	viewer := newTestClient("viewer")
	m.hub.Register(sender)
	m.hub.Register(viewer)

	patch, _ := json.Marshal(map[string]any{
		"id":    "d1",
		"label": "core-sw",
		"ip":    "10.0.0.1",
	})
	m.applyDeviceUpdate(ctx, sender, patch)

	saved, err := gw.Device(ctx, "d1")
	if err != nil || saved == nil {
		t.Fatalf("device not persisted: %v", err)
	}
	if saved.Label != "core-sw" {
		t.Fatalf("label = %q, want core-sw", saved.Label)
	}

	select {
	case msg := <-viewer.send:
		data, ok := msg.Data.(DeviceData)
		if !ok || data.Device.ID != "d1" {
			t.Fatalf("viewer received wrong payload: %+v", msg.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("viewer did not receive the rebroadcast")
	}
	select {
	case <-sender.send:
		t.Fatal("originator received its own update back")
	default:
	}
}

func TestApplyDeviceUpdateRejectsMalformedPatch(t *testing.T) {
	m, gw := newTestModule(t)
	ctx := context.Background()

	client := newTestClient("c1")
	m.hub.Register(client)

	m.applyDeviceUpdate(ctx, client, json.RawMessage(`{"label":"no-id"}`))
	m.applyDeviceUpdate(ctx, client, json.RawMessage(`not json`))

	devices, err := gw.Devices(ctx)
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("malformed patches created %d devices", len(devices))
	}
}

func TestApplyConfigUpdatePersistsAndAnnounces(t *testing.T) {
	m, gw := newTestModule(t)
	ctx := context.Background()

	changed := make(chan topo.ConfigChangedPayload, 1)
	m.bus.Subscribe(topo.TopicConfigChanged, func(_ context.Context, e plugin.Event) {
		if p, ok := e.Payload.(topo.ConfigChangedPayload); ok {
			changed <- p
		}
	})

	sender := newTestClient("sender")
	m.hub.Register(sender)

	m.applyConfigUpdate(ctx, sender, json.RawMessage(`{"ping.interval_ms": 10000}`))

	settings := topo.LoadSettings(ctx, gw)
	if settings.PingInterval != 10*time.Second {
		t.Fatalf("interval = %v, want 10s", settings.PingInterval)
	}

	select {
	case p := <-changed:
		if len(p.Keys) != 1 || p.Keys[0] != "ping.interval_ms" || p.Origin != "ws" {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("config change was not announced")
	}
}

func TestSweepBroadcastReachesAllClients(t *testing.T) {
	m, _ := newTestModule(t)

	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	m.hub.Register(c1)
	m.hub.Register(c2)

	m.onSweepCompleted(context.Background(), plugin.Event{
		Topic: watch.TopicSweepCompleted,
		Payload: watch.SweepPayload{
			Devices: []*models.Device{{ID: "d1", Status: models.DeviceStatusUp}},
		},
	})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			data, ok := msg.Data.(DeviceSetData)
			if !ok || len(data.Devices) != 1 {
				t.Fatalf("wrong payload: %+v", msg.Data)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client %s missed the sweep broadcast", c.id)
		}
	}
}
