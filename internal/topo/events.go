package topo

import "github.com/HerbHall/netglance/pkg/models"

// Event topics published by the topology module.
const (
	TopicDeviceSaved       = "topo.device.saved"
	TopicDeviceDeleted     = "topo.device.deleted"
	TopicConnectionSaved   = "topo.connection.saved"
	TopicConnectionDeleted = "topo.connection.deleted"
	TopicConfigChanged     = "topo.config.changed"
)

// DeviceSavedPayload accompanies TopicDeviceSaved. Origin identifies
// the producer (an API request, a websocket client or the sweep) so
// broadcast consumers can skip echoing an update back to its source.
type DeviceSavedPayload struct {
	Device *models.Device `json:"device"`
	Origin string         `json:"origin,omitempty"`
}

// ConfigChangedPayload accompanies TopicConfigChanged and lists the
// keys that were written.
type ConfigChangedPayload struct {
	Keys   []string `json:"keys"`
	Origin string   `json:"origin,omitempty"`
}
