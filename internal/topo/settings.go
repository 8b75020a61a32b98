package topo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/HerbHall/netglance/pkg/models"
)

// Runtime config keys stored in the topology config table. These are
// user-editable at runtime, unlike the server config file.
const (
	KeyPingEnabled         = "ping.enabled"
	KeyPingInterval        = "ping.interval_ms"
	KeyPingTimeout         = "ping.timeout_ms"
	KeyWarningThreshold    = "alert.warning_threshold_ms"
	KeyCriticalThreshold   = "alert.critical_threshold_ms"
	KeyConsecutiveFailures = "alert.consecutive_failures"
	KeyAlertMaxPerDay      = "alert.max_per_day"
	KeyPushEnabled         = "push.enabled"
	KeyPushAPIURL          = "push.api_url"
	KeyPushSendKey         = "push.send_key"
	KeyMessageTemplates    = "alert.templates"
)

// Settings is the decoded runtime configuration with defaults applied.
type Settings struct {
	PingEnabled         bool
	PingInterval        time.Duration
	PingTimeout         time.Duration
	WarningThreshold    float64
	CriticalThreshold   float64
	ConsecutiveFailures int
	AlertMaxPerDay      int
	PushEnabled         bool
	PushAPIURL          string
	PushSendKey         string
	Templates           []models.MessageTemplate
}

// DefaultSettings returns the settings used when nothing has been
// stored yet.
func DefaultSettings() Settings {
	return Settings{
		PingEnabled:         true,
		PingInterval:        5 * time.Second,
		PingTimeout:         2 * time.Second,
		WarningThreshold:    100,
		CriticalThreshold:   200,
		ConsecutiveFailures: 1,
		AlertMaxPerDay:      100,
		PushEnabled:         false,
		PushAPIURL:          "https://sctapi.ftqq.com",
		Templates:           DefaultTemplates(),
	}
}

// DefaultTemplates returns the built-in notification templates.
func DefaultTemplates() []models.MessageTemplate {
	return []models.MessageTemplate{
		{
			Kind:    models.AlertTypeStatus,
			Title:   "Device {{deviceName}} is {{deviceStatus}}",
			Body:    "Device {{deviceName}} ({{deviceIp}}) changed to {{deviceStatus}} at {{timestamp}}.",
			Level:   models.AlertLevelCritical,
			Enabled: true,
		},
		{
			Kind:    models.AlertTypePingWarning,
			Title:   "High latency on {{deviceName}}",
			Body:    "Device {{deviceName}} ({{deviceIp}}) latency is {{pingTime}}ms at {{timestamp}}.",
			Level:   models.AlertLevelWarning,
			Enabled: true,
		},
		{
			Kind:    models.AlertTypePingCritical,
			Title:   "Critical latency on {{deviceName}}",
			Body:    "Device {{deviceName}} ({{deviceIp}}) latency is {{pingTime}}ms at {{timestamp}}.",
			Level:   models.AlertLevelCritical,
			Enabled: true,
		},
	}
}

// LoadSettings reads the runtime configuration from the gateway and
// applies defaults for anything missing or malformed. A gateway read
// failure degrades to pure defaults rather than failing the caller.
func LoadSettings(ctx context.Context, gw Gateway) Settings {
	s := DefaultSettings()
	raw, err := gw.AllConfig(ctx)
	if err != nil || len(raw) == 0 {
		return s
	}
	decodeBool(raw[KeyPingEnabled], &s.PingEnabled)
	decodeDurationMS(raw[KeyPingInterval], &s.PingInterval)
	decodeDurationMS(raw[KeyPingTimeout], &s.PingTimeout)
	decodeFloat(raw[KeyWarningThreshold], &s.WarningThreshold)
	decodeFloat(raw[KeyCriticalThreshold], &s.CriticalThreshold)
	decodeInt(raw[KeyConsecutiveFailures], &s.ConsecutiveFailures)
	decodeInt(raw[KeyAlertMaxPerDay], &s.AlertMaxPerDay)
	decodeBool(raw[KeyPushEnabled], &s.PushEnabled)
	decodeString(raw[KeyPushAPIURL], &s.PushAPIURL)
	decodeString(raw[KeyPushSendKey], &s.PushSendKey)
	if v, ok := raw[KeyMessageTemplates]; ok {
		var templates []models.MessageTemplate
		if err := json.Unmarshal(v, &templates); err == nil && len(templates) > 0 {
			s.Templates = templates
		}
	}
	if s.PingInterval <= 0 {
		s.PingInterval = DefaultSettings().PingInterval
	}
	if s.PingTimeout <= 0 {
		s.PingTimeout = DefaultSettings().PingTimeout
	}
	if s.ConsecutiveFailures < 1 {
		s.ConsecutiveFailures = 1
	}
	return s
}

func decodeBool(raw json.RawMessage, dst *bool) {
	if raw == nil {
		return
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

func decodeInt(raw json.RawMessage, dst *int) {
	if raw == nil {
		return
	}
	var v int
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

func decodeFloat(raw json.RawMessage, dst *float64) {
	if raw == nil {
		return
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

func decodeString(raw json.RawMessage, dst *string) {
	if raw == nil {
		return
	}
	var v string
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

func decodeDurationMS(raw json.RawMessage, dst *time.Duration) {
	if raw == nil {
		return
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}
