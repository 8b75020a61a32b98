package alert

import "github.com/HerbHall/netglance/pkg/models"

// Event topics published by the alert module.
const (
	TopicAlertTriggered = "alert.triggered"
	TopicRuleFired      = "alert.rule.fired"
)

// TriggeredPayload accompanies TopicAlertTriggered after a dispatch
// attempt. Sent reports whether the provider accepted the message.
type TriggeredPayload struct {
	Record *models.AlertRecord `json:"record"`
	Sent   bool                `json:"sent"`
}
