// Package analytics keeps a rolling in-memory window of population
// snapshots and answers trend, top-mover and export queries over it.
package analytics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/metrics"
)

const defaultRetention = 30 * 24 * time.Hour

// record pairs a snapshot with its per-object points, sorted by object ID.
type record struct {
	snapshot domain.Snapshot
	points   []domain.TimeSeriesPoint
}

// Store is the rolling snapshot window. Records are strictly append-only
// and time-ordered; eviction is a pure function of the current time and
// the retention window, so queries also filter by cutoff and never return
// data older than the window even between appends.
type Store struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	retention time.Duration
	records   []record
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetention overrides the retention window.
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) { s.retention = d }
}

func NewStore(clock clockwork.Clock, opts ...StoreOption) *Store {
	s := &Store{
		clock:     clock,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds one snapshot with its per-object points and evicts records
// that have aged out of the retention window.
func (s *Store) Append(snapshot domain.Snapshot, points []domain.TimeSeriesPoint) {
	sorted := append([]domain.TimeSeriesPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ObjectID < sorted[j].ObjectID })

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(s.clock.Now())
	s.records = append(s.records, record{snapshot: snapshot, points: sorted})

	metrics.AnalyticsSnapshots.Set(float64(len(s.records)))
}

// evict drops records older than the retention cutoff. Caller holds the
// write lock.
func (s *Store) evict(now time.Time) {
	cutoff := now.Add(-s.retention)
	idx := 0
	for idx < len(s.records) && !s.records[idx].snapshot.TakenAt.After(cutoff) {
		idx++
	}
	if idx == 0 {
		return
	}
	metrics.AnalyticsEvictions.Add(float64(idx))
	s.records = s.records[idx:]
}

// Len returns the number of retained snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Latest returns the most recent snapshot, or false when the store is
// empty or the newest record has aged out.
func (s *Store) Latest() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.clock.Now().Add(-s.retention)
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].snapshot.TakenAt.After(cutoff) {
			return s.records[i].snapshot, true
		}
	}
	return domain.Snapshot{}, false
}

// TrendPoint is one step of a single object's score history.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Delta     float64   `json:"delta"`
}

// Trend returns an object's score history since the given time, oldest
// first. The retention cutoff applies even if since is older.
func (s *Store) Trend(objectID string, since time.Time) []TrendPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.clock.Now().Add(-s.retention)
	if since.After(cutoff) {
		cutoff = since
	}

	var out []TrendPoint
	for _, rec := range s.records {
		if !rec.snapshot.TakenAt.After(cutoff) {
			continue
		}
		for _, p := range rec.points {
			if p.ObjectID == objectID {
				out = append(out, TrendPoint{
					Timestamp: rec.snapshot.TakenAt,
					Score:     p.Score,
					Delta:     p.Delta,
				})
				break
			}
		}
	}
	return out
}

// Direction selects which movers a TopMovers query returns.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// ParseDirection validates a query-string direction value.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case DirectionIncrease, DirectionDecrease:
		return Direction(raw), nil
	default:
		return "", domain.ErrUnknownDirection
	}
}

// roundDelta collapses float64 noise so decimal-equal movements (0.2 to
// 0.5 and 0.5 to 0.8 are both +0.3) compare as ties.
func roundDelta(d float64) float64 {
	return math.Round(d*1e9) / 1e9
}

// Mover is one object's net score movement over a query window.
type Mover struct {
	ObjectID   string  `json:"object_id"`
	FirstScore float64 `json:"first_score"`
	LastScore  float64 `json:"last_score"`
	Delta      float64 `json:"delta"`
}

// TopMovers returns the objects with the largest net score movement in
// the requested direction over the window, largest magnitude first. Ties
// break on object ID ascending so results are stable.
func (s *Store) TopMovers(direction Direction, limit int, window time.Duration) []Mover {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	cutoff := now.Add(-window)
	if retCutoff := now.Add(-s.retention); retCutoff.After(cutoff) {
		cutoff = retCutoff
	}

	first := make(map[string]float64)
	last := make(map[string]float64)
	var order []string
	for _, rec := range s.records {
		if !rec.snapshot.TakenAt.After(cutoff) {
			continue
		}
		for _, p := range rec.points {
			if _, seen := first[p.ObjectID]; !seen {
				first[p.ObjectID] = p.Score
				order = append(order, p.ObjectID)
			}
			last[p.ObjectID] = p.Score
		}
	}

	var movers []Mover
	for _, id := range order {
		delta := last[id] - first[id]
		switch direction {
		case DirectionIncrease:
			if delta <= 0 {
				continue
			}
		case DirectionDecrease:
			if delta >= 0 {
				continue
			}
		}
		movers = append(movers, Mover{
			ObjectID:   id,
			FirstScore: first[id],
			LastScore:  last[id],
			Delta:      delta,
		})
	}

	sort.Slice(movers, func(i, j int) bool {
		di, dj := roundDelta(movers[i].Delta), roundDelta(movers[j].Delta)
		if direction == DirectionDecrease {
			di, dj = -di, -dj
		}
		if di != dj {
			return di > dj
		}
		return movers[i].ObjectID < movers[j].ObjectID
	})

	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}

// ChartSeries is the aggregate history shaped for time-series charting,
// one parallel slice per metric.
type ChartSeries struct {
	Timestamps     []time.Time `json:"timestamps"`
	MeanScores     []float64   `json:"mean_scores"`
	MaxScores      []float64   `json:"max_scores"`
	CriticalCounts []int       `json:"critical_counts"`
	ObjectCounts   []int       `json:"object_counts"`
}

// Series returns the aggregate history over the window, oldest first.
func (s *Store) Series(window time.Duration) ChartSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	cutoff := now.Add(-window)
	if retCutoff := now.Add(-s.retention); retCutoff.After(cutoff) {
		cutoff = retCutoff
	}

	var series ChartSeries
	for _, rec := range s.records {
		if !rec.snapshot.TakenAt.After(cutoff) {
			continue
		}
		series.Timestamps = append(series.Timestamps, rec.snapshot.TakenAt)
		series.MeanScores = append(series.MeanScores, rec.snapshot.MeanScore)
		series.MaxScores = append(series.MaxScores, rec.snapshot.MaxScore)
		series.CriticalCounts = append(series.CriticalCounts, rec.snapshot.CriticalCount)
		series.ObjectCounts = append(series.ObjectCounts, rec.snapshot.ObjectCount)
	}
	return series
}

// SystemStats summarises the newest snapshot plus store-level counters.
type SystemStats struct {
	SnapshotCount int              `json:"snapshot_count"`
	Latest        *domain.Snapshot `json:"latest,omitempty"`
	OldestTakenAt *time.Time       `json:"oldest_taken_at,omitempty"`
}

func (s *Store) SystemStats() SystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SystemStats{SnapshotCount: len(s.records)}
	if len(s.records) > 0 {
		latest := s.records[len(s.records)-1].snapshot
		oldest := s.records[0].snapshot.TakenAt
		stats.Latest = &latest
		stats.OldestTakenAt = &oldest
	}
	return stats
}
