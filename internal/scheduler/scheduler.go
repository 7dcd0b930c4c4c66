// Package scheduler drives the periodic update cycle: fetch current
// scores, snapshot them, evaluate alerts and broadcast the results to
// topic subscribers.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/analytics"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/metrics"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/correlation"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/registry"
)

const (
	defaultInterval      = 30 * time.Second
	defaultWatchlistSize = 5
	fetchTimeout         = 15 * time.Second
	mirrorTimeout        = 2 * time.Second

	// fetchFailureAlertAfter is how many consecutive failed fetches raise a
	// system alert. Counted per outage; a successful fetch resets it.
	fetchFailureAlertAfter = 3
)

// SnapshotAppender receives each cycle's aggregate snapshot.
type SnapshotAppender interface {
	Append(snapshot domain.Snapshot, points []domain.TimeSeriesPoint)
}

// AlertEvaluator turns score readings into emitted alerts and raises
// operational alerts for the scheduler itself.
type AlertEvaluator interface {
	Evaluate(readings []domain.ScoreReading) []domain.AlertRecord
	SystemAlert(level domain.Severity, message string) domain.AlertRecord
}

// StatsSource provides connection stats for the system status broadcast.
type StatsSource interface {
	Stats() registry.Stats
}

// Mirror persists cycle output to an external store, best effort.
type Mirror interface {
	MirrorSnapshot(ctx context.Context, snapshot domain.Snapshot) error
	MirrorAlert(ctx context.Context, alert domain.AlertRecord) error
}

// Scheduler runs the fetch-snapshot-alert-broadcast cycle on a fixed
// interval. Previous-cycle scores live only here; a fetch failure skips
// the whole cycle so stale data is never rebroadcast as fresh.
type Scheduler struct {
	scores    domain.ScoreSource
	store     SnapshotAppender
	notifier  AlertEvaluator
	publisher domain.Publisher
	stats     StatsSource
	mirror    Mirror
	clock     clockwork.Clock

	interval      time.Duration
	watchlistSize int

	previous      map[string]float64
	fetchFailures int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval overrides the cycle interval.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

// WithWatchlistSize overrides how many objects the watchlist broadcast
// carries.
func WithWatchlistSize(n int) SchedulerOption {
	return func(s *Scheduler) { s.watchlistSize = n }
}

// WithMirror attaches an external mirror. Nil disables mirroring.
func WithMirror(m Mirror) SchedulerOption {
	return func(s *Scheduler) { s.mirror = m }
}

func NewScheduler(
	scores domain.ScoreSource,
	store SnapshotAppender,
	notifier AlertEvaluator,
	publisher domain.Publisher,
	stats StatsSource,
	clock clockwork.Clock,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		scores:        scores,
		store:         store,
		notifier:      notifier,
		publisher:     publisher,
		stats:         stats,
		clock:         clock,
		interval:      defaultInterval,
		watchlistSize: defaultWatchlistSize,
		previous:      make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes cycles until the context is cancelled. It blocks, so
// callers run it in a goroutine or an errgroup.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Update scheduler started", "interval", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Update scheduler stopped")
			return ctx.Err()
		case <-ticker.Chan():
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one full update cycle under a fresh correlation ID.
func (s *Scheduler) runCycle(ctx context.Context) {
	ctx = correlation.WithID(ctx, correlation.NewID())
	start := s.clock.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	scores, err := s.scores.GetCurrentScores(fetchCtx)
	cancel()
	if err != nil {
		slog.WarnContext(ctx, "Score fetch failed, skipping cycle", "error", err)
		metrics.SchedulerCycles.WithLabelValues("skipped").Inc()

		s.fetchFailures++
		if s.fetchFailures == fetchFailureAlertAfter {
			s.notifier.SystemAlert(domain.SeverityWarning,
				fmt.Sprintf("Scoring engine unreachable for %d consecutive cycles", s.fetchFailures))
		}
		return
	}
	s.fetchFailures = 0

	now := s.clock.Now()
	snapshot, points := analytics.BuildSnapshot(now, scores, s.previous)
	s.store.Append(snapshot, points)

	readings := s.buildReadings(scores)
	alerts := s.notifier.Evaluate(readings)

	s.publishThreatUpdate(ctx, points, now)
	s.publishWatchlist(ctx, points, now)
	s.publishSystemStatus(ctx, snapshot, now)

	if s.mirror != nil {
		s.mirrorCycle(ctx, snapshot, alerts)
	}

	s.previous = scores

	metrics.SchedulerCycles.WithLabelValues("ok").Inc()
	metrics.SchedulerCycleDuration.Observe(s.clock.Since(start).Seconds())

	slog.InfoContext(ctx, "Update cycle complete",
		"objects", snapshot.ObjectCount,
		"critical", snapshot.CriticalCount,
		"alerts", len(alerts),
		"duration", s.clock.Since(start),
	)
}

// buildReadings pairs each current score with the previous cycle's value.
// Objects seen for the first time get a zero previous score.
func (s *Scheduler) buildReadings(scores map[string]float64) []domain.ScoreReading {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	readings := make([]domain.ScoreReading, 0, len(ids))
	for _, id := range ids {
		previous, seen := s.previous[id]
		readings = append(readings, domain.ScoreReading{
			ObjectID:  id,
			Previous:  previous,
			Current:   scores[id],
			FirstSeen: !seen,
		})
	}
	return readings
}

type threatUpdatePayload struct {
	Objects     []domain.TimeSeriesPoint `json:"objects"`
	ObjectCount int                      `json:"object_count"`
}

func (s *Scheduler) publishThreatUpdate(ctx context.Context, points []domain.TimeSeriesPoint, now time.Time) {
	sorted := sortByScoreDesc(points)
	s.publish(ctx, domain.TopicThreatUpdates, domain.MessageTypeThreatUpdate, threatUpdatePayload{
		Objects:     sorted,
		ObjectCount: len(sorted),
	}, now)
}

type watchlistPayload struct {
	Objects []domain.TimeSeriesPoint `json:"objects"`
}

func (s *Scheduler) publishWatchlist(ctx context.Context, points []domain.TimeSeriesPoint, now time.Time) {
	sorted := sortByScoreDesc(points)
	if len(sorted) > s.watchlistSize {
		sorted = sorted[:s.watchlistSize]
	}
	s.publish(ctx, domain.TopicWatchlist, domain.MessageTypeWatchlist, watchlistPayload{Objects: sorted}, now)
}

type systemStatusPayload struct {
	ActiveConnections int            `json:"active_connections"`
	Subscriptions     map[string]int `json:"subscriptions"`
	DroppedMessages   uint64         `json:"dropped_messages"`
	ObjectCount       int            `json:"object_count"`
	CriticalCount     int            `json:"critical_count"`
	LastUpdate        time.Time      `json:"last_update"`
}

func (s *Scheduler) publishSystemStatus(ctx context.Context, snapshot domain.Snapshot, now time.Time) {
	stats := s.stats.Stats()
	s.publish(ctx, domain.TopicSystemStatus, domain.MessageTypeSystemStatus, systemStatusPayload{
		ActiveConnections: stats.ActiveConnections,
		Subscriptions:     stats.Subscriptions,
		DroppedMessages:   stats.DroppedMessages,
		ObjectCount:       snapshot.ObjectCount,
		CriticalCount:     snapshot.CriticalCount,
		LastUpdate:        now,
	}, now)
}

func (s *Scheduler) publish(ctx context.Context, topic domain.Topic, msgType string, payload any, now time.Time) {
	msg, err := domain.NewMessage(topic, msgType, payload, now)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build broadcast message", "type", msgType, "error", err)
		return
	}
	s.publisher.Publish(msg)
}

// mirrorCycle writes the snapshot and alerts to the external mirror.
// Failures are counted and logged, never propagated.
func (s *Scheduler) mirrorCycle(ctx context.Context, snapshot domain.Snapshot, alerts []domain.AlertRecord) {
	mirrorCtx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	if err := s.mirror.MirrorSnapshot(mirrorCtx, snapshot); err != nil {
		metrics.MirrorErrors.WithLabelValues("snapshot").Inc()
		slog.WarnContext(ctx, "Snapshot mirror failed", "error", err)
	}
	for _, alert := range alerts {
		if err := s.mirror.MirrorAlert(mirrorCtx, alert); err != nil {
			metrics.MirrorErrors.WithLabelValues("alert").Inc()
			slog.WarnContext(ctx, "Alert mirror failed", "alert_id", alert.ID.String(), "error", err)
		}
	}
}

func sortByScoreDesc(points []domain.TimeSeriesPoint) []domain.TimeSeriesPoint {
	sorted := append([]domain.TimeSeriesPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ObjectID < sorted[j].ObjectID
	})
	return sorted
}
