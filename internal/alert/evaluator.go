package alert

import (
	"sync"

	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/internal/watch"
	"github.com/HerbHall/netglance/pkg/models"
)

// Candidate is an alert the evaluator wants dispatched. It still has
// to clear the dispatch gates before any notification goes out.
type Candidate struct {
	Device *models.Device
	Type   models.AlertType
	Level  models.AlertLevel
}

// Evaluator turns sweep observations into alert candidates. Alerts are
// edge-triggered: a condition fires when it has held for exactly N
// consecutive observations (N = the consecutive-failure setting,
// default 1) and cannot fire again until the condition clears. With
// N=1 this reduces to firing on the transition into the condition.
type Evaluator struct {
	mu    sync.Mutex
	state map[string]*deviceCounters
}

type deviceCounters struct {
	down     int
	warning  int
	critical int
}

// NewEvaluator creates an evaluator with empty per-device state.
func NewEvaluator() *Evaluator {
	return &Evaluator{state: make(map[string]*deviceCounters)}
}

// Evaluate inspects one cycle's observations and returns the alert
// candidates. Per device and cycle at most one latency candidate is
// produced, with critical taking precedence over warning.
func (e *Evaluator) Evaluate(observations []watch.Observation, settings topo.Settings) []Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := settings.ConsecutiveFailures
	if n < 1 {
		n = 1
	}

	var candidates []Candidate
	seen := make(map[string]struct{}, len(observations))
	for _, obs := range observations {
		d := obs.Device
		if d == nil {
			continue
		}
		seen[d.ID] = struct{}{}
		counters := e.state[d.ID]
		if counters == nil {
			// First sight of this device: seed counters from its
			// pre-cycle state so a condition that already held does
			// not fire as if it had just begun.
			counters = &deviceCounters{}
			if obs.PrevStatus == models.DeviceStatusDown {
				counters.down = n
			}
			if obs.PrevPingTime != nil && *obs.PrevPingTime > settings.CriticalThreshold {
				counters.critical = n
			}
			if obs.PrevPingTime != nil && *obs.PrevPingTime > settings.WarningThreshold {
				counters.warning = n
			}
			e.state[d.ID] = counters
		}

		if d.Status == models.DeviceStatusDown {
			counters.down++
		} else {
			counters.down = 0
		}
		if d.PingTime != nil && *d.PingTime > settings.CriticalThreshold {
			counters.critical++
		} else {
			counters.critical = 0
		}
		if d.PingTime != nil && *d.PingTime > settings.WarningThreshold {
			counters.warning++
		} else {
			counters.warning = 0
		}

		if counters.down == n {
			candidates = append(candidates, Candidate{
				Device: d,
				Type:   models.AlertTypeStatus,
				Level:  models.AlertLevelCritical,
			})
		}
		switch {
		case counters.critical == n:
			candidates = append(candidates, Candidate{
				Device: d,
				Type:   models.AlertTypePingCritical,
				Level:  models.AlertLevelCritical,
			})
		case counters.warning == n && counters.critical == 0:
			candidates = append(candidates, Candidate{
				Device: d,
				Type:   models.AlertTypePingWarning,
				Level:  models.AlertLevelWarning,
			})
		}
	}

	// Devices no longer observed drop their counters.
	for id := range e.state {
		if _, ok := seen[id]; !ok {
			delete(e.state, id)
		}
	}
	return candidates
}
