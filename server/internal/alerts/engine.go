package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/config"
)

// Alert states.
const (
	stateFiring   = "firing"
	stateResolved = "resolved"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	BumpID     string     `json:"bump_id"`
	StreetName string     `json:"street_name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against records as they change and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:bumpID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client *http.Client
	now    func() time.Time
	send   func(*Alert) // async delivery; replaced in tests
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid: Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.send = func(a *Alert) { go e.deliver(a) }
	e.SetConfig(cfg)
	return e
}

// SetConfig replaces rules and webhooks, e.g. after a config reload.
// Alerts of rules that no longer exist are dropped without a resolve
// notification.
func (e *Engine) SetConfig(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]config.AlertRule(nil), cfg.Rules...)
	e.webhooks = append([]config.WebhookConfig(nil), cfg.Webhooks...)

	names := make(map[string]bool, len(e.rules))
	for _, r := range e.rules {
		names[r.Name] = true
	}
	for key, a := range e.active {
		if !names[a.RuleName] {
			delete(e.active, key)
		}
	}
}

// Observe adapts Evaluate to a change listener.
func (e *Engine) Observe(c bump.Change) { e.Evaluate(c.Record) }

// EvaluateAll evaluates every record in recs.
func (e *Engine) EvaluateAll(recs []bump.Record) {
	for _, rec := range recs {
		e.Evaluate(rec)
	}
}

// Evaluate tests all configured rules against rec.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(rec bump.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range e.rules {
		key := rule.Name + ":" + rec.ID
		fires, value := evalCondition(rule.Condition, rec, now)

		if fires {
			if _, firing := e.active[key]; firing {
				continue
			}
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if now.Sub(e.lastFire[key]) <= cooldown {
				continue
			}
			sev := rule.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:         uuid.NewString(),
				RuleName:   rule.Name,
				BumpID:     rec.ID,
				StreetName: rec.StreetName,
				Severity:   sev,
				Value:      value,
				Message: fmt.Sprintf("[%s] %s fired on %s (%s): %s, now %s",
					sev, rule.Name, rec.StreetName, rec.ID, rule.Condition, rec.Condition),
				FiredAt: now,
				State:   stateFiring,
			}
			e.active[key] = a
			e.lastFire[key] = now
			alertCopy := *a

			slog.Warn("alert fired",
				"rule", rule.Name,
				"bump", rec.ID,
				"value", value,
				"severity", sev,
			)
			e.send(&alertCopy)
			continue
		}

		if a, ok := e.active[key]; ok {
			resolved := now
			a.State = stateResolved
			a.ResolvedAt = &resolved
			delete(e.active, key)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			alertCopy := *a

			slog.Info("alert resolved",
				"rule", rule.Name,
				"bump", rec.ID,
			)
			e.send(&alertCopy)
		}
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return latest(out[i]).After(latest(out[j])) })
	return out
}

func latest(a *Alert) time.Time {
	if a.ResolvedAt != nil {
		return *a.ResolvedAt
	}
	return a.FiredAt
}

// targets returns a snapshot of the webhook list.
func (e *Engine) targets() []config.WebhookConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]config.WebhookConfig(nil), e.webhooks...)
}
