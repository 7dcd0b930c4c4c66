// Package alerts evaluates score readings against severity thresholds and
// change rules, publishes the resulting alerts, and keeps a bounded
// in-memory history.
package alerts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/metrics"
)

const (
	// changeThreshold is the minimum absolute score movement between two
	// consecutive readings that triggers a change alert. Deltas are compared
	// with a small tolerance so exact boundary movements like 0.20 to 0.30
	// fire despite float64 rounding.
	changeThreshold = 0.10
	changeEpsilon   = 1e-9

	defaultCooldown   = 5 * time.Minute
	defaultMaxHistory = 100
)

type emissionKey struct {
	objectID  string
	alertType string
}

type lastEmission struct {
	at    time.Time
	level domain.Severity
}

// Stats summarises the current alert history by severity.
type Stats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// Notifier turns score readings into alerts. Emissions per (object, alert
// type) are rate-limited by a cooldown window; a strictly higher severity
// breaks through an active cooldown. Suppressed emissions never refresh
// the window.
type Notifier struct {
	mu         sync.Mutex
	publisher  domain.Publisher
	clock      clockwork.Clock
	cooldown   time.Duration
	maxHistory int

	history []domain.AlertRecord
	last    map[emissionKey]lastEmission
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithCooldown overrides the per-(object, type) emission cooldown.
func WithCooldown(d time.Duration) NotifierOption {
	return func(n *Notifier) { n.cooldown = d }
}

// WithMaxHistory overrides the history retention count.
func WithMaxHistory(max int) NotifierOption {
	return func(n *Notifier) { n.maxHistory = max }
}

func NewNotifier(publisher domain.Publisher, clock clockwork.Clock, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		publisher:  publisher,
		clock:      clock,
		cooldown:   defaultCooldown,
		maxHistory: defaultMaxHistory,
		last:       make(map[emissionKey]lastEmission),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Evaluate runs every alert rule against the given readings and returns
// the alerts that were actually emitted. Threshold and change rules fire
// independently, so one reading can produce two alerts.
func (n *Notifier) Evaluate(readings []domain.ScoreReading) []domain.AlertRecord {
	n.mu.Lock()
	now := n.clock.Now()

	var emitted []domain.AlertRecord
	for _, r := range readings {
		if rec, ok := n.thresholdAlert(r, now); ok {
			emitted = append(emitted, rec)
		}
		if rec, ok := n.changeAlert(r, now); ok {
			emitted = append(emitted, rec)
		}
	}
	n.mu.Unlock()

	for _, rec := range emitted {
		n.publish(rec, now)
	}
	return emitted
}

// thresholdAlert maps the current score onto the severity ladder and emits
// if no unexpired alert of equal or higher severity exists for the object.
func (n *Notifier) thresholdAlert(r domain.ScoreReading, now time.Time) (domain.AlertRecord, bool) {
	var (
		level domain.Severity
		text  string
	)
	switch {
	case r.Current >= domain.CriticalThreshold:
		level = domain.SeverityCritical
		text = fmt.Sprintf("CRITICAL THREAT: object %s reached threat level %.1f%%", r.ObjectID, r.Current*100)
	case r.Current >= domain.HighThreshold:
		level = domain.SeverityHigh
		text = fmt.Sprintf("HIGH THREAT: object %s reached threat level %.1f%%", r.ObjectID, r.Current*100)
	case r.Current >= domain.MediumThreshold:
		level = domain.SeverityWarning
		text = fmt.Sprintf("ELEVATED THREAT: object %s reached threat level %.1f%%", r.ObjectID, r.Current*100)
	default:
		return domain.AlertRecord{}, false
	}

	return n.emit(domain.AlertRecord{
		Type:          domain.AlertTypeThreshold,
		Level:         level,
		ObjectID:      r.ObjectID,
		Message:       text,
		Score:         r.Current,
		PreviousScore: r.Previous,
	}, now)
}

// changeAlert fires on any score movement of at least changeThreshold
// between consecutive readings, regardless of absolute level. Objects
// without a previous reading never move, so they are skipped.
func (n *Notifier) changeAlert(r domain.ScoreReading, now time.Time) (domain.AlertRecord, bool) {
	if r.FirstSeen {
		return domain.AlertRecord{}, false
	}
	delta := r.Current - r.Previous

	var alertType, text string
	switch {
	case delta >= changeThreshold-changeEpsilon:
		alertType = domain.AlertTypeIncrease
		text = fmt.Sprintf("THREAT INCREASE: object %s rose from %.1f%% to %.1f%%", r.ObjectID, r.Previous*100, r.Current*100)
	case delta <= -(changeThreshold - changeEpsilon):
		alertType = domain.AlertTypeDecrease
		text = fmt.Sprintf("THREAT DECREASE: object %s fell from %.1f%% to %.1f%%", r.ObjectID, r.Previous*100, r.Current*100)
	default:
		return domain.AlertRecord{}, false
	}

	return n.emit(domain.AlertRecord{
		Type:          alertType,
		Level:         domain.SeverityInfo,
		ObjectID:      r.ObjectID,
		Message:       text,
		Score:         r.Current,
		PreviousScore: r.Previous,
	}, now)
}

// emit applies the cooldown and, if the alert survives, records it. The
// cooldown window is keyed on (object, alert type); it only refreshes on
// an actual emission, so a suppressed repeat cannot extend suppression.
func (n *Notifier) emit(rec domain.AlertRecord, now time.Time) (domain.AlertRecord, bool) {
	key := emissionKey{objectID: rec.ObjectID, alertType: rec.Type}
	if prev, ok := n.last[key]; ok {
		inCooldown := now.Sub(prev.at) < n.cooldown
		escalates := rec.Level.Rank() > prev.level.Rank()
		if inCooldown && !escalates {
			metrics.AlertsSuppressed.Inc()
			return domain.AlertRecord{}, false
		}
	}

	rec.ID = uuid.New()
	rec.CreatedAt = now
	n.last[key] = lastEmission{at: now, level: rec.Level}
	n.append(rec)

	metrics.AlertsEmitted.WithLabelValues(string(rec.Level)).Inc()
	return rec, true
}

// SystemAlert records and publishes an operational alert unrelated to any
// tracked object. System alerts bypass the cooldown.
func (n *Notifier) SystemAlert(level domain.Severity, message string) domain.AlertRecord {
	now := n.clock.Now()
	rec := domain.AlertRecord{
		ID:        uuid.New(),
		Type:      domain.AlertTypeSystem,
		Level:     level,
		Message:   message,
		CreatedAt: now,
	}

	n.mu.Lock()
	n.append(rec)
	n.mu.Unlock()

	metrics.AlertsEmitted.WithLabelValues(string(level)).Inc()
	n.publish(rec, now)
	return rec
}

// append adds a record to history, evicting the oldest past maxHistory.
func (n *Notifier) append(rec domain.AlertRecord) {
	n.history = append(n.history, rec)
	if len(n.history) > n.maxHistory {
		n.history = n.history[len(n.history)-n.maxHistory:]
	}
}

func (n *Notifier) publish(rec domain.AlertRecord, now time.Time) {
	msg, err := domain.NewMessage(domain.TopicAlerts, domain.MessageTypeAlert, rec, now)
	if err != nil {
		slog.Error("Failed to build alert message", "alert_id", rec.ID.String(), "error", err)
		return
	}
	n.publisher.Publish(msg)

	slog.Info("Alert emitted",
		"alert_id", rec.ID.String(),
		"type", rec.Type,
		"level", string(rec.Level),
		"object_id", rec.ObjectID,
	)
}

// History returns the most recent alerts, newest first. A limit of zero or
// less returns the full retained history.
func (n *Notifier) History(limit int) []domain.AlertRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	if limit <= 0 || limit > len(n.history) {
		limit = len(n.history)
	}
	out := make([]domain.AlertRecord, 0, limit)
	for i := len(n.history) - 1; i >= len(n.history)-limit; i-- {
		out = append(out, n.history[i])
	}
	return out
}

// Acknowledge marks an alert as seen. Acknowledging twice is a no-op.
func (n *Notifier) Acknowledge(id uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := range n.history {
		if n.history[i].ID != id {
			continue
		}
		if n.history[i].AcknowledgedAt == nil {
			now := n.clock.Now()
			n.history[i].AcknowledgedAt = &now
		}
		return nil
	}
	return domain.ErrAlertNotFound
}

// Stats counts the retained history by severity.
func (n *Notifier) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()

	stats := Stats{Total: len(n.history)}
	for _, rec := range n.history {
		switch rec.Level {
		case domain.SeverityCritical:
			stats.Critical++
		case domain.SeverityHigh:
			stats.High++
		case domain.SeverityWarning:
			stats.Warning++
		case domain.SeverityInfo:
			stats.Info++
		}
	}
	return stats
}
