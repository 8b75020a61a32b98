// Package metrics samples process health and aggregates API and
// storage outcomes. The aggregates feed both the Prometheus registry
// and the alert rule engine, which evaluates them as point-in-time
// snapshots.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// OpStats aggregates outcomes for one class of operations.
type OpStats struct {
	Total        int64   `json:"total"`
	Succeeded    int64   `json:"succeeded"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// SuccessRate returns the success percentage. An empty window counts
// as fully healthy.
func (o OpStats) SuccessRate() float64 {
	if o.Total == 0 {
		return 100
	}
	return float64(o.Succeeded) / float64(o.Total) * 100
}

// Snapshot is a point-in-time view of process and workload health.
type Snapshot struct {
	CPUPercent      float64   `json:"cpu_percent"`
	MemoryPercent   float64   `json:"memory_percent"`
	MemoryUsedBytes uint64    `json:"memory_used_bytes"`
	Goroutines      int       `json:"goroutines"`
	SchedulerLagMs  float64   `json:"scheduler_lag_ms"`
	API             OpStats   `json:"api"`
	Storage         OpStats   `json:"storage"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Collector accumulates operation outcomes and samples system load on
// an interval. Safe for concurrent use.
type Collector struct {
	logger *zap.Logger

	mu             sync.Mutex
	apiTotal       int64
	apiSucceeded   int64
	apiLatency     time.Duration
	storeTotal     int64
	storeSucceeded int64
	storeLatency   time.Duration
	cpuPercent     float64
	memPercent     float64
	memUsed        uint64
	schedLagMs     float64

	cancel context.CancelFunc
	done   chan struct{}

	apiRequests     *prometheus.CounterVec
	apiDuration     prometheus.Histogram
	storageOps      *prometheus.CounterVec
	storageDuration prometheus.Histogram
	goroutineGauge  prometheus.Gauge
}

// NewCollector creates a collector registered against reg.
func NewCollector(reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		logger: logger,
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netglance_api_requests_total",
			Help: "API requests by outcome.",
		}, []string{"outcome"}),
		apiDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "netglance_api_request_duration_seconds",
			Help:    "API request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		storageOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netglance_storage_operations_total",
			Help: "Storage operations by outcome.",
		}, []string{"outcome"}),
		storageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "netglance_storage_operation_duration_seconds",
			Help:    "Storage operation latency.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		goroutineGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netglance_goroutines",
			Help: "Current goroutine count.",
		}),
	}
}

// RecordAPIRequest accounts one handled API request.
func (c *Collector) RecordAPIRequest(status int, d time.Duration) {
	ok := status < 500
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.apiRequests.WithLabelValues(outcome).Inc()
	c.apiDuration.Observe(d.Seconds())

	c.mu.Lock()
	c.apiTotal++
	if ok {
		c.apiSucceeded++
	}
	c.apiLatency += d
	c.mu.Unlock()
}

// RecordStorageOp accounts one persistence operation.
func (c *Collector) RecordStorageOp(d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.storageOps.WithLabelValues(outcome).Inc()
	c.storageDuration.Observe(d.Seconds())

	c.mu.Lock()
	c.storeTotal++
	if err == nil {
		c.storeSucceeded++
	}
	c.storeLatency += d
	c.mu.Unlock()
}

// Start launches the periodic system sampler.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sample(ctx)
			}
		}
	}()
}

// Stop halts the sampler, if started.
func (c *Collector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Collector) sample(ctx context.Context) {
	var cpuPct float64
	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		cpuPct = percentages[0]
	} else if err != nil {
		c.logger.Debug("cpu sampling failed", zap.Error(err))
	}

	var memPct float64
	var memUsed uint64
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memPct = vm.UsedPercent
		memUsed = vm.Used
	} else {
		c.logger.Debug("memory sampling failed", zap.Error(err))
	}

	lag := measureSchedulerLag()
	c.goroutineGauge.Set(float64(runtime.NumGoroutine()))

	c.mu.Lock()
	c.cpuPercent = cpuPct
	c.memPercent = memPct
	c.memUsed = memUsed
	c.schedLagMs = lag
	c.mu.Unlock()
}

// measureSchedulerLag times how late a short timer fires. Large drift
// means the runtime is starved.
func measureSchedulerLag() float64 {
	const probe = 10 * time.Millisecond
	start := time.Now()
	<-time.After(probe)
	lag := time.Since(start) - probe
	if lag < 0 {
		lag = 0
	}
	return float64(lag) / float64(time.Millisecond)
}

// Snapshot returns the current aggregate view.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		CPUPercent:      c.cpuPercent,
		MemoryPercent:   c.memPercent,
		MemoryUsedBytes: c.memUsed,
		Goroutines:      runtime.NumGoroutine(),
		SchedulerLagMs:  c.schedLagMs,
		API:             OpStats{Total: c.apiTotal, Succeeded: c.apiSucceeded},
		Storage:         OpStats{Total: c.storeTotal, Succeeded: c.storeSucceeded},
		CollectedAt:     time.Now(),
	}
	if c.apiTotal > 0 {
		snap.API.AvgLatencyMs = float64(c.apiLatency) / float64(c.apiTotal) / float64(time.Millisecond)
	}
	if c.storeTotal > 0 {
		snap.Storage.AvgLatencyMs = float64(c.storeLatency) / float64(c.storeTotal) / float64(time.Millisecond)
	}
	return snap
}
