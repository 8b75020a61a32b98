package models

// Connection is a link between two (device, port) pairs on the canvas.
type Connection struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`      // source device ID
	Target     string       `json:"target"`      // target device ID
	SourcePort string       `json:"source_port"` // port ID on the source device
	TargetPort string       `json:"target_port"` // port ID on the target device
	Status     DeviceStatus `json:"status"`
	Traffic    float64      `json:"traffic"` // Mbps
}

// SameEndpoints reports whether two connections join the same
// (device, port) pairs, in either direction. Connections are
// bidirectional, so a reversed duplicate is still a duplicate.
func (c *Connection) SameEndpoints(o *Connection) bool {
	forward := c.Source == o.Source && c.Target == o.Target &&
		c.SourcePort == o.SourcePort && c.TargetPort == o.TargetPort
	reversed := c.Source == o.Target && c.Target == o.Source &&
		c.SourcePort == o.TargetPort && c.TargetPort == o.SourcePort
	return forward || reversed
}
