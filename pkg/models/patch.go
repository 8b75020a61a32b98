package models

// Patch types carry partial updates with explicit field-presence
// semantics: a nil field preserves the stored value, a non-nil field
// overwrites it. Lists of ports and VMs merge by identity key and never
// remove entries. This replaces ad hoc structural merging with a fixed,
// enumerated set of mergeable fields per entity.

// DevicePatch is a partial update to a device record. ID is required.
type DevicePatch struct {
	ID       string        `json:"id"`
	Type     *DeviceType   `json:"type,omitempty"`
	Label    *string       `json:"label,omitempty"`
	X        *float64      `json:"x,omitempty"`
	Y        *float64      `json:"y,omitempty"`
	IP       *string       `json:"ip,omitempty"`
	MAC      *string       `json:"mac,omitempty"`
	Status   *DeviceStatus `json:"status,omitempty"`
	PingTime *float64      `json:"ping_time,omitempty"`
	// ClearPingTime drops the stored latency; used by the sweep when a
	// device stops answering. Not settable over the wire.
	ClearPingTime bool `json:"-"`

	Ports           []PortPatch           `json:"ports,omitempty"`
	VirtualMachines []VirtualMachinePatch `json:"virtual_machines,omitempty"`
}

// PortPatch is a partial update to a port, matched by ID.
type PortPatch struct {
	ID         string        `json:"id"`
	Name       *string       `json:"name,omitempty"`
	Type       *PortType     `json:"type,omitempty"`
	Rate       *int          `json:"rate,omitempty"`
	MAC        *string       `json:"mac,omitempty"`
	Status     *DeviceStatus `json:"status,omitempty"`
	TrafficIn  *float64      `json:"traffic_in,omitempty"`
	TrafficOut *float64      `json:"traffic_out,omitempty"`
}

// VirtualMachinePatch is a partial update to a VM, matched by Name.
type VirtualMachinePatch struct {
	Name          string        `json:"name"`
	IP            *string       `json:"ip,omitempty"`
	Status        *DeviceStatus `json:"status,omitempty"`
	PingTime      *float64      `json:"ping_time,omitempty"`
	ClearPingTime bool          `json:"-"`
}
