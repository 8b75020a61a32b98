package topo

import "github.com/HerbHall/netglance/pkg/models"

// MergeDevice applies a partial update to an existing device record and
// returns the merged result. The existing record is not mutated. When
// existing is nil the patch materializes a new device with unknown
// status.
//
// Scalar fields overwrite only when present in the patch. Ports merge
// by ID and VMs by name: matched entries are updated in place, unknown
// entries are appended in patch order, and nothing is ever removed.
// Applying the same patch twice yields the same result as applying it
// once.
func MergeDevice(existing *models.Device, p *models.DevicePatch) *models.Device {
	var out *models.Device
	if existing == nil {
		out = &models.Device{ID: p.ID, Status: models.DeviceStatusUnknown}
	} else {
		out = existing.Clone()
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Label != nil {
		out.Label = *p.Label
	}
	if p.X != nil {
		out.X = *p.X
	}
	if p.Y != nil {
		out.Y = *p.Y
	}
	if p.IP != nil {
		out.IP = *p.IP
	}
	if p.MAC != nil {
		out.MAC = *p.MAC
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.ClearPingTime {
		out.PingTime = nil
	} else if p.PingTime != nil {
		v := *p.PingTime
		out.PingTime = &v
	}
	out.Ports = mergePorts(out.Ports, p.Ports)
	out.VirtualMachines = mergeVMs(out.VirtualMachines, p.VirtualMachines)
	return out
}

func mergePorts(existing []models.DevicePort, patches []models.PortPatch) []models.DevicePort {
	if len(patches) == 0 {
		return existing
	}
	byID := make(map[string]int, len(existing))
	for i, port := range existing {
		byID[port.ID] = i
	}
	out := make([]models.DevicePort, len(existing))
	copy(out, existing)
	for _, p := range patches {
		if p.ID == "" {
			continue
		}
		idx, ok := byID[p.ID]
		if !ok {
			out = append(out, models.DevicePort{ID: p.ID})
			idx = len(out) - 1
			byID[p.ID] = idx
		}
		applyPortPatch(&out[idx], p)
	}
	return out
}

func applyPortPatch(port *models.DevicePort, p models.PortPatch) {
	if p.Name != nil {
		port.Name = *p.Name
	}
	if p.Type != nil {
		port.Type = *p.Type
	}
	if p.Rate != nil {
		port.Rate = *p.Rate
	}
	if p.MAC != nil {
		port.MAC = *p.MAC
	}
	if p.Status != nil {
		port.Status = *p.Status
	}
	if p.TrafficIn != nil {
		port.TrafficIn = *p.TrafficIn
	}
	if p.TrafficOut != nil {
		port.TrafficOut = *p.TrafficOut
	}
}

func mergeVMs(existing []models.VirtualMachine, patches []models.VirtualMachinePatch) []models.VirtualMachine {
	if len(patches) == 0 {
		return existing
	}
	byName := make(map[string]int, len(existing))
	for i, vm := range existing {
		byName[vm.Name] = i
	}
	out := make([]models.VirtualMachine, len(existing))
	copy(out, existing)
	for _, p := range patches {
		if p.Name == "" {
			continue
		}
		idx, ok := byName[p.Name]
		if !ok {
			out = append(out, models.VirtualMachine{Name: p.Name, Status: models.DeviceStatusUnknown})
			idx = len(out) - 1
			byName[p.Name] = idx
		}
		applyVMPatch(&out[idx], p)
	}
	return out
}

func applyVMPatch(vm *models.VirtualMachine, p models.VirtualMachinePatch) {
	if p.IP != nil {
		vm.IP = *p.IP
	}
	if p.Status != nil {
		vm.Status = *p.Status
	}
	if p.ClearPingTime {
		vm.PingTime = nil
	} else if p.PingTime != nil {
		v := *p.PingTime
		vm.PingTime = &v
	}
}
