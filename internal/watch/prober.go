package watch

import (
	"context"
	"net/netip"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"

	"github.com/HerbHall/netglance/pkg/models"
)

// ProbeResult is the outcome of probing one address.
type ProbeResult struct {
	Status   models.DeviceStatus
	PingTime *float64 // milliseconds, set only when up
}

// Prober checks reachability of a single IPv4 address. The timeout is
// passed per call because it is runtime-configurable.
type Prober interface {
	Probe(ctx context.Context, ip string, timeout time.Duration) ProbeResult
}

// ICMPProber probes hosts with a single ICMP echo request.
type ICMPProber struct {
	logger *zap.Logger
}

// NewICMPProber creates an ICMP prober.
func NewICMPProber(logger *zap.Logger) *ICMPProber {
	return &ICMPProber{logger: logger}
}

// Probe sends one echo request to ip. An empty or non-IPv4 address is
// reported unknown without any network traffic. Every other failure is
// down.
func (p *ICMPProber) Probe(ctx context.Context, ip string, timeout time.Duration) ProbeResult {
	if !ValidIPv4(ip) {
		p.logger.Debug("address empty or invalid, marking unknown", zap.String("ip", ip))
		return ProbeResult{Status: models.DeviceStatusUnknown}
	}

	pinger, err := probing.NewPinger(ip)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("ip", ip), zap.Error(err))
		return ProbeResult{Status: models.DeviceStatusDown}
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("ip", ip), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return ProbeResult{Status: models.DeviceStatusDown}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		ms := float64(stats.AvgRtt) / float64(time.Millisecond)
		return ProbeResult{Status: models.DeviceStatusUp, PingTime: &ms}
	}
	return ProbeResult{Status: models.DeviceStatusDown}
}

// ValidIPv4 reports whether s is a plain dotted-quad IPv4 address.
// IPv4-mapped IPv6 forms like "::ffff:10.0.0.5" do not qualify.
func ValidIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}
