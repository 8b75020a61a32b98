package models

// DeviceType categorizes a network device on the topology canvas.
type DeviceType string

const (
	DeviceTypeRouter         DeviceType = "router"
	DeviceTypeSwitch         DeviceType = "switch"
	DeviceTypeServer         DeviceType = "server"
	DeviceTypeWirelessRouter DeviceType = "wireless_router"
	DeviceTypeAccessPoint    DeviceType = "ap"
	DeviceTypeOpticalModem   DeviceType = "optical_modem"
	DeviceTypeVMHost         DeviceType = "vm_host"
)

// DeviceStatus represents the reachability state of a device, port, or VM.
type DeviceStatus string

const (
	DeviceStatusUp      DeviceStatus = "up"
	DeviceStatusDown    DeviceStatus = "down"
	DeviceStatusWarning DeviceStatus = "warning"
	DeviceStatusUnknown DeviceStatus = "unknown"
)

// PortType is the physical medium of a device port.
type PortType string

const (
	PortTypeOptical    PortType = "optical"
	PortTypeElectrical PortType = "electrical"
)

// PortRates lists the negotiated rates (Mbps) a port may report.
var PortRates = []int{100, 1000, 2500, 10000}

// DevicePort is a single port on a device. Ports keep their identity
// across incremental updates through the ID field.
type DevicePort struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       PortType     `json:"type"`
	Rate       int          `json:"rate"` // Mbps
	MAC        string       `json:"mac,omitempty"`
	Status     DeviceStatus `json:"status"`
	TrafficIn  float64      `json:"traffic_in"`  // Mbps
	TrafficOut float64      `json:"traffic_out"` // Mbps
}

// VirtualMachine is a guest running on a vm_host device. VMs have no
// independent ID; the name is their identity key across merges.
type VirtualMachine struct {
	Name     string       `json:"name"`
	IP       string       `json:"ip"`
	Status   DeviceStatus `json:"status"`
	PingTime *float64     `json:"ping_time,omitempty"` // milliseconds
}

// Device is a node on the topology canvas. X/Y are presentation-only
// coordinates persisted verbatim for the editor.
type Device struct {
	ID              string           `json:"id"`
	Type            DeviceType       `json:"type"`
	Label           string           `json:"label"`
	X               float64          `json:"x"`
	Y               float64          `json:"y"`
	IP              string           `json:"ip"`
	MAC             string           `json:"mac,omitempty"`
	Status          DeviceStatus     `json:"status"`
	PingTime        *float64         `json:"ping_time,omitempty"` // milliseconds
	Ports           []DevicePort     `json:"ports"`
	VirtualMachines []VirtualMachine `json:"virtual_machines,omitempty"`
}

// Clone returns a deep copy of the device. The sweep mutates copies so
// the pre-cycle snapshot stays intact for transition detection.
func (d *Device) Clone() *Device {
	c := *d
	if d.PingTime != nil {
		pt := *d.PingTime
		c.PingTime = &pt
	}
	if d.Ports != nil {
		c.Ports = make([]DevicePort, len(d.Ports))
		copy(c.Ports, d.Ports)
	}
	if d.VirtualMachines != nil {
		c.VirtualMachines = make([]VirtualMachine, len(d.VirtualMachines))
		for i, vm := range d.VirtualMachines {
			c.VirtualMachines[i] = vm
			if vm.PingTime != nil {
				pt := *vm.PingTime
				c.VirtualMachines[i].PingTime = &pt
			}
		}
	}
	return &c
}
