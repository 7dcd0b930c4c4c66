package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/alerts"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/analytics"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/registry"
)

// scriptedScores returns one prepared result per call, then repeats the
// last one.
type scriptedScores struct {
	mu      sync.Mutex
	results []map[string]float64
	errs    []error
	calls   int
}

func (s *scriptedScores) GetCurrentScores(_ context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	if s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return s.results[idx], nil
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (p *capturePublisher) Publish(msg domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *capturePublisher) byType(msgType string) []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Message
	for _, m := range p.messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type staticStats struct{}

func (staticStats) Stats() registry.Stats {
	return registry.Stats{ActiveConnections: 2, Subscriptions: map[string]int{"alerts": 1}}
}

type recordingMirror struct {
	mu        sync.Mutex
	snapshots []domain.Snapshot
	alerts    []domain.AlertRecord
	fail      bool
}

func (m *recordingMirror) MirrorSnapshot(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("mirror down")
	}
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func (m *recordingMirror) MirrorAlert(_ context.Context, rec domain.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("mirror down")
	}
	m.alerts = append(m.alerts, rec)
	return nil
}

type fixture struct {
	clock     *clockwork.FakeClock
	scores    *scriptedScores
	store     *analytics.Store
	notifier  *alerts.Notifier
	publisher *capturePublisher
	scheduler *Scheduler
	cancel    context.CancelFunc
}

func newFixture(t *testing.T, scores *scriptedScores, opts ...SchedulerOption) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	publisher := &capturePublisher{}
	store := analytics.NewStore(clock)
	notifier := alerts.NewNotifier(publisher, clock)

	f := &fixture{
		clock:     clock,
		scores:    scores,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		scheduler: NewScheduler(scores, store, notifier, publisher, staticStats{}, clock, opts...),
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	t.Cleanup(cancel)
	go f.scheduler.Run(ctx)

	// Wait for the ticker to register before advancing.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	return f
}

func (f *fixture) tick(t *testing.T, wantSnapshots int) {
	t.Helper()
	f.clock.Advance(defaultInterval)
	waitFor(t, func() bool { return f.store.Len() >= wantSnapshots })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for range 500 {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func decodeData(t *testing.T, msg domain.Message, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Encoded(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestScheduler_CycleBroadcastsAndSnapshots(t *testing.T) {
	scores := &scriptedScores{
		results: []map[string]float64{
			{"2024-AB5": 0.42, "2024-CD7": 0.30},
			{"2024-AB5": 0.93, "2024-CD7": 0.30},
		},
		errs: []error{nil, nil},
	}
	f := newFixture(t, scores)

	f.tick(t, 1)
	assert.Empty(t, f.publisher.byType(domain.MessageTypeAlert), "first cycle is below every threshold")
	require.Len(t, f.publisher.byType(domain.MessageTypeThreatUpdate), 1)
	require.Len(t, f.publisher.byType(domain.MessageTypeWatchlist), 1)
	require.Len(t, f.publisher.byType(domain.MessageTypeSystemStatus), 1)

	// Second cycle: the jump to 0.93 crosses critical and moves more than
	// the change threshold, so two alerts go out.
	f.tick(t, 2)
	waitFor(t, func() bool { return len(f.publisher.byType(domain.MessageTypeAlert)) == 2 })

	assert.Equal(t, 2, f.store.Len())
	history := f.notifier.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, domain.AlertTypeIncrease, history[0].Type)
	assert.Equal(t, domain.AlertTypeThreshold, history[1].Type)
	assert.Equal(t, domain.SeverityCritical, history[1].Level)
}

func TestScheduler_ThreatUpdateSortedByScore(t *testing.T) {
	scores := &scriptedScores{
		results: []map[string]float64{{"low": 0.1, "high": 0.8, "mid": 0.4}},
		errs:    []error{nil},
	}
	f := newFixture(t, scores)
	f.tick(t, 1)

	updates := f.publisher.byType(domain.MessageTypeThreatUpdate)
	require.Len(t, updates, 1)

	var payload struct {
		Objects     []domain.TimeSeriesPoint `json:"objects"`
		ObjectCount int                      `json:"object_count"`
	}
	decodeData(t, updates[0], &payload)

	require.Equal(t, 3, payload.ObjectCount)
	assert.Equal(t, "high", payload.Objects[0].ObjectID)
	assert.Equal(t, "mid", payload.Objects[1].ObjectID)
	assert.Equal(t, "low", payload.Objects[2].ObjectID)
}

func TestScheduler_WatchlistCarriesTopN(t *testing.T) {
	scores := &scriptedScores{
		results: []map[string]float64{{"a": 0.1, "b": 0.8, "c": 0.4, "d": 0.6}},
		errs:    []error{nil},
	}
	f := newFixture(t, scores, WithWatchlistSize(2))
	f.tick(t, 1)

	lists := f.publisher.byType(domain.MessageTypeWatchlist)
	require.Len(t, lists, 1)

	var payload struct {
		Objects []domain.TimeSeriesPoint `json:"objects"`
	}
	decodeData(t, lists[0], &payload)

	require.Len(t, payload.Objects, 2)
	assert.Equal(t, "b", payload.Objects[0].ObjectID)
	assert.Equal(t, "d", payload.Objects[1].ObjectID)
}

func TestScheduler_FetchFailureSkipsCycle(t *testing.T) {
	scores := &scriptedScores{
		results: []map[string]float64{nil, {"2024-AB5": 0.42}},
		errs:    []error{errors.New("engine unreachable"), nil},
	}
	f := newFixture(t, scores)

	// First tick fails: no snapshot, no broadcasts.
	f.clock.Advance(defaultInterval)
	waitFor(t, func() bool {
		scores.mu.Lock()
		defer scores.mu.Unlock()
		return scores.calls == 1
	})
	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.publisher.byType(domain.MessageTypeThreatUpdate))

	// The next tick recovers.
	f.tick(t, 1)
	assert.Equal(t, 1, f.store.Len())
}

func TestScheduler_RepeatedFetchFailuresRaiseSystemAlert(t *testing.T) {
	engineDown := errors.New("engine unreachable")
	scores := &scriptedScores{
		results: []map[string]float64{nil, nil, nil, {"2024-AB5": 0.42}},
		errs:    []error{engineDown, engineDown, engineDown, nil},
	}
	f := newFixture(t, scores)

	failedCycles := func(n int) {
		f.clock.Advance(defaultInterval)
		waitFor(t, func() bool {
			scores.mu.Lock()
			defer scores.mu.Unlock()
			return scores.calls == n
		})
	}

	// Two failures stay quiet; the third raises one system alert.
	failedCycles(1)
	failedCycles(2)
	assert.Empty(t, f.notifier.History(0))

	failedCycles(3)
	waitFor(t, func() bool { return len(f.publisher.byType(domain.MessageTypeAlert)) == 1 })
	history := f.notifier.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, domain.AlertTypeSystem, history[0].Type)
	assert.Equal(t, domain.SeverityWarning, history[0].Level)

	// Recovery resets the counter, so no further system alerts.
	f.tick(t, 1)
	assert.Len(t, f.notifier.History(0), 1)
}

func TestScheduler_FirstCycleDeltasAreFullScores(t *testing.T) {
	scores := &scriptedScores{
		results: []map[string]float64{{"2024-AB5": 0.42}},
		errs:    []error{nil},
	}
	f := newFixture(t, scores)
	f.tick(t, 1)

	trend := f.store.Trend("2024-AB5", time.Time{})
	require.Len(t, trend, 1)
	assert.InDelta(t, 0.42, trend[0].Delta, 1e-9, "no previous cycle means the delta is the full score")
}

func TestScheduler_MirrorReceivesCycleOutput(t *testing.T) {
	mirror := &recordingMirror{}
	scores := &scriptedScores{
		results: []map[string]float64{{"2024-AB5": 0.95}},
		errs:    []error{nil},
	}
	f := newFixture(t, scores, WithMirror(mirror))
	f.tick(t, 1)

	// First sighting at 0.95: threshold alert only, no change alert.
	waitFor(t, func() bool {
		mirror.mu.Lock()
		defer mirror.mu.Unlock()
		return len(mirror.snapshots) == 1 && len(mirror.alerts) == 1
	})
}

func TestScheduler_MirrorFailureDoesNotBreakCycle(t *testing.T) {
	mirror := &recordingMirror{fail: true}
	scores := &scriptedScores{
		results: []map[string]float64{{"2024-AB5": 0.42}},
		errs:    []error{nil},
	}
	f := newFixture(t, scores, WithMirror(mirror))
	f.tick(t, 1)

	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.publisher.byType(domain.MessageTypeThreatUpdate), 1)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	scores := &scriptedScores{
		results: []map[string]float64{{"2024-AB5": 0.42}},
		errs:    []error{nil},
	}

	clock := clockwork.NewFakeClock()
	publisher := &capturePublisher{}
	sched := NewScheduler(scores, analytics.NewStore(clock), alerts.NewNotifier(publisher, clock), publisher, staticStats{}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
