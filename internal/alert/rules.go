package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/metrics"
	"github.com/HerbHall/netglance/pkg/models"
)

// Rule is one system or business health check. The predicate runs over
// a metrics snapshot; Message renders the fired alert text from the
// same snapshot.
type Rule struct {
	ID       string
	Name     string
	Category string // "system" or "business"
	Severity models.AlertLevel
	Cooldown time.Duration

	Condition func(metrics.Snapshot) bool
	Message   func(metrics.Snapshot) string
}

// RuleAlert is one fired rule, kept in a bounded in-memory buffer.
type RuleAlert struct {
	ID       string            `json:"id"`
	RuleID   string            `json:"rule_id"`
	RuleName string            `json:"rule_name"`
	Severity models.AlertLevel `json:"severity"`
	Message  string            `json:"message"`
	FiredAt  time.Time         `json:"fired_at"`
}

// ruleState tracks the mutable part of a rule.
type ruleState struct {
	rule      Rule
	enabled   bool
	lastFired time.Time
}

// maxRuleAlerts bounds the in-memory fired-alert buffer.
const maxRuleAlerts = 1000

// Snapshotter supplies metrics snapshots to the rule engine.
type Snapshotter interface {
	Snapshot() metrics.Snapshot
}

// RuleEngine evaluates the fixed rule set against metrics snapshots on
// its own timer, decoupled from the device sweep. Each rule has an
// independent cooldown; once fired it stays quiet for the cooldown
// even if the condition persists.
type RuleEngine struct {
	collector Snapshotter
	logger    *zap.Logger

	mu     sync.Mutex
	rules  []*ruleState
	fired  []RuleAlert
	cancel context.CancelFunc
	done   chan struct{}

	// OnFired, when set before Start, receives every fired alert.
	OnFired func(RuleAlert)

	now func() time.Time
}

// NewRuleEngine creates an engine with the built-in rule set.
func NewRuleEngine(collector Snapshotter, logger *zap.Logger) *RuleEngine {
	e := &RuleEngine{
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
	for _, r := range defaultRules() {
		e.rules = append(e.rules, &ruleState{rule: r, enabled: true})
	}
	return e
}

func defaultRules() []Rule {
	return []Rule{
		{
			ID: "high-cpu-usage", Name: "High CPU Usage", Category: "system",
			Severity: models.AlertLevelWarning, Cooldown: time.Minute,
			Condition: func(s metrics.Snapshot) bool { return s.CPUPercent > 80 },
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("High CPU Usage: CPU usage is %.1f%%", s.CPUPercent)
			},
		},
		{
			ID: "critical-cpu-usage", Name: "Critical CPU Usage", Category: "system",
			Severity: models.AlertLevelCritical, Cooldown: 30 * time.Second,
			Condition: func(s metrics.Snapshot) bool { return s.CPUPercent > 90 },
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("Critical CPU Usage: CPU usage is %.1f%%", s.CPUPercent)
			},
		},
		{
			ID: "high-memory-usage", Name: "High Memory Usage", Category: "system",
			Severity: models.AlertLevelWarning, Cooldown: time.Minute,
			Condition: func(s metrics.Snapshot) bool { return s.MemoryPercent > 80 },
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("High Memory Usage: memory usage is %.1f%%", s.MemoryPercent)
			},
		},
		{
			ID: "critical-memory-usage", Name: "Critical Memory Usage", Category: "system",
			Severity: models.AlertLevelCritical, Cooldown: 30 * time.Second,
			Condition: func(s metrics.Snapshot) bool { return s.MemoryPercent > 90 },
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("Critical Memory Usage: memory usage is %.1f%%", s.MemoryPercent)
			},
		},
		{
			ID: "high-scheduler-lag", Name: "High Scheduler Lag", Category: "system",
			Severity: models.AlertLevelWarning, Cooldown: time.Minute,
			Condition: func(s metrics.Snapshot) bool { return s.SchedulerLagMs > 1000 },
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("High Scheduler Lag: lag is %.0fms", s.SchedulerLagMs)
			},
		},
		{
			ID: "low-api-success-rate", Name: "Low API Success Rate", Category: "business",
			Severity: models.AlertLevelWarning, Cooldown: 2 * time.Minute,
			Condition: func(s metrics.Snapshot) bool {
				return s.API.Total > 10 && s.API.SuccessRate() < 95
			},
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("Low API Success Rate: success rate is %.1f%%", s.API.SuccessRate())
			},
		},
		{
			ID: "high-api-response-time", Name: "High API Response Time", Category: "business",
			Severity: models.AlertLevelWarning, Cooldown: time.Minute,
			Condition: func(s metrics.Snapshot) bool { return s.API.AvgLatencyMs > 1000 },
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("High API Response Time: average response time is %.0fms", s.API.AvgLatencyMs)
			},
		},
		{
			ID: "low-storage-success-rate", Name: "Low Storage Success Rate", Category: "business",
			Severity: models.AlertLevelWarning, Cooldown: 2 * time.Minute,
			Condition: func(s metrics.Snapshot) bool {
				return s.Storage.Total > 10 && s.Storage.SuccessRate() < 95
			},
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("Low Storage Success Rate: success rate is %.1f%%", s.Storage.SuccessRate())
			},
		},
		{
			ID: "high-storage-latency", Name: "High Storage Latency", Category: "business",
			Severity: models.AlertLevelWarning, Cooldown: time.Minute,
			Condition: func(s metrics.Snapshot) bool { return s.Storage.AvgLatencyMs > 500 },
			Message: func(s metrics.Snapshot) string {
				return fmt.Sprintf("High Storage Latency: average operation time is %.0fms", s.Storage.AvgLatencyMs)
			},
		},
	}
}

// Start launches the evaluation loop.
func (e *RuleEngine) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go func() {
		defer close(e.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.EvaluateOnce()
			}
		}
	}()
}

// Stop halts the loop, if started.
func (e *RuleEngine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// EvaluateOnce runs every enabled rule against a fresh snapshot.
func (e *RuleEngine) EvaluateOnce() []RuleAlert {
	snap := e.collector.Snapshot()
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []RuleAlert
	for _, state := range e.rules {
		if !state.enabled {
			continue
		}
		if now.Sub(state.lastFired) < state.rule.Cooldown {
			continue
		}
		if !state.rule.Condition(snap) {
			continue
		}
		state.lastFired = now
		alert := RuleAlert{
			ID:       fmt.Sprintf("alert-%d-%s", now.UnixMilli(), state.rule.ID),
			RuleID:   state.rule.ID,
			RuleName: state.rule.Name,
			Severity: state.rule.Severity,
			Message:  state.rule.Message(snap),
			FiredAt:  now,
		}
		fired = append(fired, alert)
		e.fired = append(e.fired, alert)

		log := e.logger.Warn
		if state.rule.Severity == models.AlertLevelCritical {
			log = e.logger.Error
		}
		log("health rule fired",
			zap.String("rule_id", state.rule.ID),
			zap.String("severity", string(state.rule.Severity)),
			zap.String("message", alert.Message))
	}
	if len(e.fired) > maxRuleAlerts {
		e.fired = e.fired[len(e.fired)-maxRuleAlerts:]
	}
	if e.OnFired != nil {
		for _, a := range fired {
			e.OnFired(a)
		}
	}
	return fired
}

// SetRuleEnabled toggles a rule at runtime. Unknown ids are a no-op
// returning false.
func (e *RuleEngine) SetRuleEnabled(ruleID string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, state := range e.rules {
		if state.rule.ID == ruleID {
			state.enabled = enabled
			e.logger.Info("health rule toggled",
				zap.String("rule_id", ruleID), zap.Bool("enabled", enabled))
			return true
		}
	}
	return false
}

// RuleInfo is the read-only view of a rule's state.
type RuleInfo struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Severity   models.AlertLevel `json:"severity"`
	Enabled    bool              `json:"enabled"`
	CooldownMs int64             `json:"cooldown_ms"`
	LastFired  time.Time         `json:"last_fired,omitempty"`
}

// Rules lists every rule with its current state.
func (e *RuleEngine) Rules() []RuleInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RuleInfo, 0, len(e.rules))
	for _, state := range e.rules {
		out = append(out, RuleInfo{
			ID:         state.rule.ID,
			Name:       state.rule.Name,
			Category:   state.rule.Category,
			Severity:   state.rule.Severity,
			Enabled:    state.enabled,
			CooldownMs: state.rule.Cooldown.Milliseconds(),
			LastFired:  state.lastFired,
		})
	}
	return out
}

// FiredAlerts returns the newest fired rule alerts, capped at limit.
func (e *RuleEngine) FiredAlerts(limit int) []RuleAlert {
	if limit <= 0 {
		limit = 100
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RuleAlert, 0, limit)
	for i := len(e.fired) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.fired[i])
	}
	return out
}
