package topo

import (
	"reflect"
	"testing"

	"github.com/HerbHall/netglance/pkg/models"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func statusPtr(s models.DeviceStatus) *models.DeviceStatus { return &s }

func TestMergeDeviceScalars(t *testing.T) {
	existing := &models.Device{
		ID:     "d1",
		Type:   models.DeviceTypeRouter,
		Label:  "core",
		IP:     "192.168.1.1",
		Status: models.DeviceStatusUp,
	}
	merged := MergeDevice(existing, &models.DevicePatch{
		ID:       "d1",
		Label:    strPtr("core-1"),
		Status:   statusPtr(models.DeviceStatusDown),
		PingTime: floatPtr(12.5),
	})

	if merged.Label != "core-1" {
		t.Errorf("Label = %q, want core-1", merged.Label)
	}
	if merged.Status != models.DeviceStatusDown {
		t.Errorf("Status = %q, want down", merged.Status)
	}
	if merged.PingTime == nil || *merged.PingTime != 12.5 {
		t.Errorf("PingTime = %v, want 12.5", merged.PingTime)
	}
	// Untouched fields carry over.
	if merged.IP != "192.168.1.1" || merged.Type != models.DeviceTypeRouter {
		t.Errorf("unrelated fields changed: %+v", merged)
	}
	// Source is not mutated.
	if existing.Label != "core" || existing.Status != models.DeviceStatusUp {
		t.Errorf("existing device mutated: %+v", existing)
	}
}

func TestMergeDeviceCreatesWhenAbsent(t *testing.T) {
	merged := MergeDevice(nil, &models.DevicePatch{ID: "new", Label: strPtr("edge")})
	if merged.ID != "new" || merged.Label != "edge" {
		t.Fatalf("unexpected device: %+v", merged)
	}
	if merged.Status != models.DeviceStatusUnknown {
		t.Errorf("Status = %q, want unknown", merged.Status)
	}
}

func TestMergeDeviceClearPingTime(t *testing.T) {
	existing := &models.Device{ID: "d1", PingTime: floatPtr(42)}
	merged := MergeDevice(existing, &models.DevicePatch{ID: "d1", ClearPingTime: true})
	if merged.PingTime != nil {
		t.Errorf("PingTime = %v, want nil", merged.PingTime)
	}
}

func TestMergePortsByID(t *testing.T) {
	existing := &models.Device{
		ID: "sw1",
		Ports: []models.DevicePort{
			{ID: "p1", Name: "eth0", Rate: 1000},
			{ID: "p2", Name: "eth1", Rate: 1000},
		},
	}
	rate := 2500
	merged := MergeDevice(existing, &models.DevicePatch{
		ID: "sw1",
		Ports: []models.PortPatch{
			{ID: "p2", Rate: &rate},
			{ID: "p3", Name: strPtr("eth2")},
		},
	})

	if len(merged.Ports) != 3 {
		t.Fatalf("got %d ports, want 3", len(merged.Ports))
	}
	// Existing order preserved, new ports appended.
	if merged.Ports[0].ID != "p1" || merged.Ports[1].ID != "p2" || merged.Ports[2].ID != "p3" {
		t.Errorf("port order = %v", []string{merged.Ports[0].ID, merged.Ports[1].ID, merged.Ports[2].ID})
	}
	if merged.Ports[1].Rate != 2500 || merged.Ports[1].Name != "eth1" {
		t.Errorf("p2 merge wrong: %+v", merged.Ports[1])
	}
	if merged.Ports[2].Name != "eth2" {
		t.Errorf("p3 not created: %+v", merged.Ports[2])
	}
}

func TestMergeVMsByName(t *testing.T) {
	existing := &models.Device{
		ID:   "host1",
		Type: models.DeviceTypeVMHost,
		VirtualMachines: []models.VirtualMachine{
			{Name: "db", IP: "10.0.0.5", Status: models.DeviceStatusUp},
		},
	}
	merged := MergeDevice(existing, &models.DevicePatch{
		ID: "host1",
		VirtualMachines: []models.VirtualMachinePatch{
			{Name: "db", Status: statusPtr(models.DeviceStatusDown), ClearPingTime: true},
			{Name: "web", IP: strPtr("10.0.0.6")},
		},
	})

	if len(merged.VirtualMachines) != 2 {
		t.Fatalf("got %d VMs, want 2", len(merged.VirtualMachines))
	}
	db := merged.VirtualMachines[0]
	if db.Status != models.DeviceStatusDown || db.IP != "10.0.0.5" || db.PingTime != nil {
		t.Errorf("db merge wrong: %+v", db)
	}
	web := merged.VirtualMachines[1]
	if web.Name != "web" || web.IP != "10.0.0.6" || web.Status != models.DeviceStatusUnknown {
		t.Errorf("web merge wrong: %+v", web)
	}
}

// Applying the same patch to its own output must be a no-op.
func TestMergeDeviceIdempotent(t *testing.T) {
	existing := &models.Device{
		ID:    "d1",
		Label: "core",
		Ports: []models.DevicePort{{ID: "p1", Name: "eth0"}},
		VirtualMachines: []models.VirtualMachine{
			{Name: "db", Status: models.DeviceStatusUp},
		},
	}
	patch := &models.DevicePatch{
		ID:       "d1",
		Label:    strPtr("core-2"),
		PingTime: floatPtr(9),
		Ports: []models.PortPatch{
			{ID: "p1", Name: strPtr("eth0-renamed")},
			{ID: "p9", Name: strPtr("new")},
		},
		VirtualMachines: []models.VirtualMachinePatch{
			{Name: "db", Status: statusPtr(models.DeviceStatusDown)},
			{Name: "cache", IP: strPtr("10.0.0.9")},
		},
	}

	once := MergeDevice(existing, patch)
	twice := MergeDevice(once, patch)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

// A patch repeating the same identity key must not duplicate entries.
func TestMergeNoDuplicateIdentities(t *testing.T) {
	merged := MergeDevice(nil, &models.DevicePatch{
		ID: "d1",
		Ports: []models.PortPatch{
			{ID: "p1", Name: strPtr("a")},
			{ID: "p1", Name: strPtr("b")},
		},
	})
	if len(merged.Ports) != 1 {
		t.Fatalf("got %d ports, want 1", len(merged.Ports))
	}
	if merged.Ports[0].Name != "b" {
		t.Errorf("last write should win, got %q", merged.Ports[0].Name)
	}
}
