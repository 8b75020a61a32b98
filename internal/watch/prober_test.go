package watch

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/pkg/models"
)

// Invalid addresses must short-circuit to unknown before any socket
// work happens, so this is safe to run without network access.
func TestICMPProberInvalidAddress(t *testing.T) {
	p := NewICMPProber(zap.NewNop())
	for _, ip := range []string{"", "bogus", "fe80::1", "::ffff:10.0.0.5"} {
		res := p.Probe(context.Background(), ip, time.Second)
		if res.Status != models.DeviceStatusUnknown {
			t.Errorf("Probe(%q) status = %q, want unknown", ip, res.Status)
		}
		if res.PingTime != nil {
			t.Errorf("Probe(%q) ping time = %v, want nil", ip, res.PingTime)
		}
	}
}
