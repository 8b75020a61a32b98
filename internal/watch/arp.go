package watch

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ARPResolver resolves MAC addresses to IP addresses from the system
// ARP cache. Devices tracked by MAC get probed at whatever address the
// network last saw them on.
type ARPResolver struct {
	logger *zap.Logger
}

// NewARPResolver creates a new ARP cache resolver.
func NewARPResolver(logger *zap.Logger) *ARPResolver {
	return &ARPResolver{logger: logger}
}

// IPForMAC returns the IP currently associated with mac in the ARP
// cache, or "" when the MAC is not present or the cache is unreadable.
func (r *ARPResolver) IPForMAC(ctx context.Context, mac string) string {
	table := r.ReadTable(ctx)
	return table[NormalizeMAC(mac)]
}

// ReadTable returns the system ARP cache as a MAC-to-IP map with
// normalized MAC keys. Unavailable platforms yield an empty map, not an
// error.
func (r *ARPResolver) ReadTable(ctx context.Context) map[string]string {
	switch runtime.GOOS {
	case "linux":
		return r.readLinux()
	case "windows", "darwin":
		return r.readARPCommand(ctx)
	default:
		r.logger.Warn("ARP cache not supported on this platform", zap.String("os", runtime.GOOS))
		return map[string]string{}
	}
}

func (r *ARPResolver) readLinux() map[string]string {
	data, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		r.logger.Debug("failed to read /proc/net/arp", zap.Error(err))
		return map[string]string{}
	}
	return ParseARPOutput(string(data), "linux")
}

func (r *ARPResolver) readARPCommand(ctx context.Context) map[string]string {
	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		r.logger.Debug("failed to run arp -a", zap.Error(err))
		return map[string]string{}
	}
	return ParseARPOutput(string(out), runtime.GOOS)
}

// ParseARPOutput parses platform-specific ARP cache text into a
// MAC-to-IP map. Exported for testing.
func ParseARPOutput(output, platform string) map[string]string {
	switch platform {
	case "linux":
		return parseLinuxARP(output)
	case "windows":
		return parseWindowsARP(output)
	case "darwin":
		return parseDarwinARP(output)
	default:
		return map[string]string{}
	}
}

// parseLinuxARP parses /proc/net/arp.
// Format: IP address HW type Flags HW address Mask Device
func parseLinuxARP(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		addEntry(table, fields[3], fields[0])
	}
	return table
}

// parseWindowsARP parses `arp -a`.
// Lines look like: 192.168.1.1 aa-bb-cc-dd-ee-ff dynamic
func parseWindowsARP(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) < 3 {
			continue
		}
		ip := fields[0]
		if ip == "" || ip[0] < '0' || ip[0] > '9' {
			continue
		}
		addEntry(table, fields[1], ip)
	}
	return table
}

// parseDarwinARP parses `arp -a`.
// Format: hostname (ip) at mac on iface [...]
func parseDarwinARP(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		start := strings.Index(line, "(")
		end := strings.Index(line, ")")
		if start < 0 || end <= start {
			continue
		}
		ip := line[start+1 : end]

		atIdx := strings.Index(line[end:], " at ")
		if atIdx < 0 {
			continue
		}
		fields := strings.Fields(line[end+atIdx+4:])
		if len(fields) == 0 {
			continue
		}
		addEntry(table, fields[0], ip)
	}
	return table
}

func addEntry(table map[string]string, rawMAC, ip string) {
	mac := NormalizeMAC(rawMAC)
	// Skip incomplete and broadcast entries.
	if mac == "" || mac == "00:00:00:00:00:00" || mac == "FF:FF:FF:FF:FF:FF" {
		return
	}
	if _, ok := table[mac]; !ok {
		table[mac] = ip
	}
}

// NormalizeMAC upper-cases a MAC address and converts dash separators
// to colons so cache lookups are format-insensitive.
func NormalizeMAC(mac string) string {
	mac = strings.ToUpper(strings.TrimSpace(mac))
	mac = strings.ReplaceAll(mac, "-", ":")
	if strings.Contains(mac, "INCOMPLETE") {
		return ""
	}
	return mac
}
