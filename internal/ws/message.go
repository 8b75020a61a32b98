package ws

import (
	"encoding/json"
	"time"

	"github.com/HerbHall/netglance/pkg/models"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	// MessageDeviceUpdate carries device state. Server-to-client it is
	// either the full post-cycle set or a single merged device after a
	// client write. Clients are expected to suppress redundant
	// re-renders by comparing the fields that matter (status, latency
	// within their display precision, identity keys) rather than
	// repainting on every frame.
	MessageDeviceUpdate MessageType = "deviceUpdate"

	// MessageConfigUpdate carries runtime configuration key/value
	// pairs. Applied server-side immediately; interval and enable
	// changes reschedule the sweep loop.
	MessageConfigUpdate MessageType = "configUpdate"

	// MessageAlert notifies viewers of a dispatched device alert.
	MessageAlert MessageType = "alert"
)

// Message is the envelope for all server-to-client messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ClientMessage is the envelope for client-to-server messages. Data is
// decoded per type: a device patch for deviceUpdate, a key/value map
// for configUpdate.
type ClientMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DeviceSetData is the deviceUpdate payload broadcast after a sweep
// and sent as the snapshot on connect.
type DeviceSetData struct {
	Devices []*models.Device `json:"devices"`
}

// DeviceData is the deviceUpdate payload rebroadcast after a single
// client-originated write.
type DeviceData struct {
	Device *models.Device `json:"device"`
}

// AlertData is the alert payload.
type AlertData struct {
	Record *models.AlertRecord `json:"record"`
	Sent   bool                `json:"sent"`
}
