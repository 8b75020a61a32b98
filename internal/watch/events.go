package watch

import "github.com/HerbHall/netglance/pkg/models"

// Event topics published by the watch module.
const (
	TopicSweepCompleted = "watch.sweep.completed"
)

// SweepPayload accompanies TopicSweepCompleted. Devices is the full
// post-cycle device set; Observations carry the pre-cycle state needed
// for transition detection.
type SweepPayload struct {
	Devices      []*models.Device `json:"devices"`
	Observations []Observation    `json:"observations"`
}
