package models

import "time"

// AlertType classifies what triggered an alert record.
type AlertType string

const (
	AlertTypeStatus       AlertType = "status"        // device status transitioned to down
	AlertTypePingWarning  AlertType = "ping_warning"  // latency crossed the warning threshold
	AlertTypePingCritical AlertType = "ping_critical" // latency crossed the critical threshold
	AlertTypeRule         AlertType = "rule"          // system/business health rule fired
)

// AlertLevel is the severity attached to an alert record or rule.
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// AlertRecord is one dispatch attempt in the append-only alert history.
// Records are immutable once written; Sent reflects the provider outcome
// at fire time, not a delivery guarantee.
type AlertRecord struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id"`
	DeviceName string     `json:"device_name"`
	DeviceType string     `json:"device_type"`
	DeviceIP   string     `json:"device_ip"`
	Type       AlertType  `json:"alert_type"`
	Level      AlertLevel `json:"alert_level"`
	Message    string     `json:"message"`
	Sent       bool       `json:"sent"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DeviceAlertSetting is the per-device notification opt-out.
// Devices without a stored setting default to enabled.
type DeviceAlertSetting struct {
	DeviceID string `json:"device_id"`
	Enabled  bool   `json:"enabled"`
}

// MessageTemplate is a named notification template. Title and Body may
// contain {{deviceName}}, {{deviceIp}}, {{deviceStatus}}, {{pingTime}}
// and {{timestamp}} placeholders; unmatched placeholders render empty.
type MessageTemplate struct {
	Kind    AlertType  `json:"kind"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	Level   AlertLevel `json:"level"`
	Enabled bool       `json:"enabled"`
}
