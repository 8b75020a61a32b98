package alert

import (
	"testing"
	"time"

	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/models"
)

func TestRenderTemplate(t *testing.T) {
	vars := TemplateVars{
		DeviceName:   "core-sw",
		DeviceIP:     "10.0.0.1",
		DeviceStatus: "warning",
		PingTime:     "150.0",
		Timestamp:    "2026-03-10 12:00:00",
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"all placeholders",
			"{{deviceName}} ({{deviceIp}}) is {{deviceStatus}}, ping {{pingTime}}ms at {{timestamp}}",
			"core-sw (10.0.0.1) is warning, ping 150.0ms at 2026-03-10 12:00:00",
		},
		{"unknown placeholder", "level: {{severity}}", "level: "},
		{"no placeholders", "plain text", "plain text"},
		{"repeated", "{{deviceName}}/{{deviceName}}", "core-sw/core-sw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTemplate(tt.text, vars); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTemplateVars(t *testing.T) {
	ping := 42.5
	d := &models.Device{
		ID:       "d1",
		Label:    "edge-1",
		IP:       "10.0.0.2",
		Status:   models.DeviceStatusUp,
		PingTime: &ping,
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	vars := NewTemplateVars(d, now)
	if vars.DeviceName != "edge-1" || vars.DeviceIP != "10.0.0.2" {
		t.Fatalf("identity vars wrong: %+v", vars)
	}
	if vars.PingTime != "42.5" {
		t.Fatalf("ping time = %q, want 42.5", vars.PingTime)
	}
	if vars.Timestamp != "2026-03-10 12:00:00" {
		t.Fatalf("timestamp = %q", vars.Timestamp)
	}

	d.PingTime = nil
	if vars := NewTemplateVars(d, now); vars.PingTime != "" {
		t.Fatalf("ping time for unmeasured device = %q, want empty", vars.PingTime)
	}
}

func TestFindTemplate(t *testing.T) {
	templates := topo.DefaultTemplates()

	got := FindTemplate(templates, models.AlertTypePingWarning)
	if got == nil || got.Kind != models.AlertTypePingWarning {
		t.Fatalf("got %+v, want the ping warning template", got)
	}

	for i := range templates {
		if templates[i].Kind == models.AlertTypeStatus {
			templates[i].Enabled = false
		}
	}
	if got := FindTemplate(templates, models.AlertTypeStatus); got != nil {
		t.Fatalf("disabled template still returned: %+v", got)
	}
	if got := FindTemplate(templates, models.AlertTypeRule); got != nil {
		t.Fatalf("missing kind returned a template: %+v", got)
	}
}
