package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/pkg/models"
	"github.com/HerbHall/netglance/pkg/plugin"
)

// ErrCycleActive is returned when a sweep is requested while the
// previous cycle is still running.
var ErrCycleActive = errors.New("sweep cycle already running")

// MACResolver resolves a MAC address to its current IP, or "".
type MACResolver interface {
	IPForMAC(ctx context.Context, mac string) string
}

// Observation pairs a device's post-cycle state with the state it had
// before the cycle, for transition detection downstream.
type Observation struct {
	Device       *models.Device
	PrevStatus   models.DeviceStatus
	PrevPingTime *float64
}

// CycleResult summarizes one sweep cycle.
type CycleResult struct {
	Skipped      bool
	Devices      []*models.Device
	Observations []Observation
	Duration     time.Duration
}

// Sweeper probes every stored device once per cycle and persists the
// observed state. Only one cycle runs at a time; a cycle requested
// while another is active is rejected, never queued.
type Sweeper struct {
	gateway     topo.Gateway
	prober      Prober
	resolver    MACResolver
	bus         plugin.EventBus
	logger      *zap.Logger
	concurrency int

	active atomic.Bool
}

// NewSweeper creates a sweep coordinator.
func NewSweeper(gw topo.Gateway, prober Prober, resolver MACResolver, bus plugin.EventBus, concurrency int, logger *zap.Logger) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{
		gateway:     gw,
		prober:      prober,
		resolver:    resolver,
		bus:         bus,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Active reports whether a cycle is currently running.
func (s *Sweeper) Active() bool {
	return s.active.Load()
}

// RunCycle executes one sweep. When probing is disabled in the runtime
// config the cycle is skipped outright, without loading devices. The
// full post-cycle device set is published on the bus when the cycle
// ran.
func (s *Sweeper) RunCycle(ctx context.Context) (*CycleResult, error) {
	settings := topo.LoadSettings(ctx, s.gateway)
	if !settings.PingEnabled {
		s.logger.Debug("probing disabled, skipping sweep cycle")
		return &CycleResult{Skipped: true}, nil
	}
	if !s.active.CompareAndSwap(false, true) {
		return nil, ErrCycleActive
	}
	defer s.active.Store(false)

	started := time.Now()
	devices, err := s.gateway.Devices(ctx)
	if err != nil {
		return nil, err
	}

	patches := make([]*models.DevicePatch, len(devices))
	prev := make([]Observation, len(devices))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)
	for i, d := range devices {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, d *models.Device) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				// A panic while probing degrades this one device to
				// down; the rest of the cycle keeps going.
				if r := recover(); r != nil {
					s.logger.Error("probe panicked",
						zap.String("device_id", d.ID), zap.Any("panic", r))
					down := models.DeviceStatusDown
					patches[i] = &models.DevicePatch{ID: d.ID, Status: &down, ClearPingTime: true}
				}
			}()
			snapshot := d.Clone()
			prev[i] = Observation{PrevStatus: snapshot.Status, PrevPingTime: snapshot.PingTime}
			patches[i] = s.probeDevice(ctx, snapshot, settings)
		}(i, d)
	}
	wg.Wait()

	result := &CycleResult{}
	for i, patch := range patches {
		if patch == nil {
			result.Devices = append(result.Devices, devices[i])
			continue
		}
		updated, err := s.gateway.SaveDevice(ctx, patch)
		if err != nil {
			// One device failing to persist must not sink the cycle.
			s.logger.Warn("failed to persist sweep result",
				zap.String("device_id", patch.ID), zap.Error(err))
			result.Devices = append(result.Devices, devices[i])
			continue
		}
		obs := prev[i]
		obs.Device = updated
		result.Devices = append(result.Devices, updated)
		result.Observations = append(result.Observations, obs)
	}
	result.Duration = time.Since(started)

	s.logger.Debug("sweep cycle completed",
		zap.Int("devices", len(result.Devices)),
		zap.Duration("duration", result.Duration))

	s.bus.PublishAsync(ctx, plugin.Event{
		Topic:  TopicSweepCompleted,
		Source: "watch",
		Payload: SweepPayload{
			Devices:      result.Devices,
			Observations: result.Observations,
		},
	})
	return result, nil
}

// probeDevice probes one device and its VMs and returns the state
// patch to persist. VM probes update status and latency only; the VM
// set itself is never grown or shrunk by the sweep.
func (s *Sweeper) probeDevice(ctx context.Context, d *models.Device, settings topo.Settings) *models.DevicePatch {
	ip := d.IP
	if !ValidIPv4(ip) && d.MAC != "" {
		if resolved := s.resolver.IPForMAC(ctx, d.MAC); resolved != "" {
			s.logger.Debug("resolved device address from ARP cache",
				zap.String("device_id", d.ID), zap.String("mac", d.MAC), zap.String("ip", resolved))
			ip = resolved
		}
	}

	res := s.prober.Probe(ctx, ip, settings.PingTimeout)
	patch := &models.DevicePatch{ID: d.ID, Status: &res.Status}
	if res.PingTime != nil {
		patch.PingTime = res.PingTime
	} else {
		patch.ClearPingTime = true
	}
	if ip != d.IP {
		patch.IP = &ip
	}

	if d.Type == models.DeviceTypeVMHost && len(d.VirtualMachines) > 0 {
		patch.VirtualMachines = s.probeVMs(ctx, d.VirtualMachines, settings)
	}
	return patch
}

func (s *Sweeper) probeVMs(ctx context.Context, vms []models.VirtualMachine, settings topo.Settings) []models.VirtualMachinePatch {
	patches := make([]models.VirtualMachinePatch, len(vms))
	var wg sync.WaitGroup
	for i, vm := range vms {
		wg.Add(1)
		go func(i int, vm models.VirtualMachine) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("vm probe panicked",
						zap.String("vm", vm.Name), zap.Any("panic", r))
					down := models.DeviceStatusDown
					patches[i] = models.VirtualMachinePatch{Name: vm.Name, Status: &down, ClearPingTime: true}
				}
			}()
			res := s.prober.Probe(ctx, vm.IP, settings.PingTimeout)
			p := models.VirtualMachinePatch{Name: vm.Name, Status: &res.Status}
			if res.PingTime != nil {
				p.PingTime = res.PingTime
			} else {
				p.ClearPingTime = true
			}
			patches[i] = p
		}(i, vm)
	}
	wg.Wait()
	return patches
}
