package alert

import (
	"fmt"
	"regexp"
	"time"

	"github.com/HerbHall/netglance/pkg/models"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// TemplateVars are the named values substituted into message
// templates.
type TemplateVars struct {
	DeviceName   string
	DeviceIP     string
	DeviceStatus string
	PingTime     string
	Timestamp    string
}

// NewTemplateVars builds the substitution set for a device at fire
// time.
func NewTemplateVars(d *models.Device, now time.Time) TemplateVars {
	vars := TemplateVars{
		DeviceName:   d.Label,
		DeviceIP:     d.IP,
		DeviceStatus: string(d.Status),
		Timestamp:    now.Format("2006-01-02 15:04:05"),
	}
	if d.PingTime != nil {
		vars.PingTime = fmt.Sprintf("%.1f", *d.PingTime)
	}
	return vars
}

func (v TemplateVars) lookup(name string) string {
	switch name {
	case "deviceName":
		return v.DeviceName
	case "deviceIp":
		return v.DeviceIP
	case "deviceStatus":
		return v.DeviceStatus
	case "pingTime":
		return v.PingTime
	case "timestamp":
		return v.Timestamp
	default:
		return ""
	}
}

// RenderTemplate substitutes {{name}} placeholders in text. Unknown
// placeholders render as empty strings, never as errors.
func RenderTemplate(text string, vars TemplateVars) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		return vars.lookup(name)
	})
}

// FindTemplate returns the enabled template of the given kind, or nil.
func FindTemplate(templates []models.MessageTemplate, kind models.AlertType) *models.MessageTemplate {
	for i := range templates {
		if templates[i].Kind == kind {
			if !templates[i].Enabled {
				return nil
			}
			return &templates[i]
		}
	}
	return nil
}
