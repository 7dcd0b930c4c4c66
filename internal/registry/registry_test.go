package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
)

// fakeTransport records sent frames in memory.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Ping() error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) sentAt(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.sent[i])
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// blockingTransport parks Send until released, signalling once the first
// send is in flight.
type blockingTransport struct {
	fakeTransport
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingTransport) Send(data []byte) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.fakeTransport.Send(data)
}

func testRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	reg := NewRegistry(clockwork.NewRealClock(), opts...)
	t.Cleanup(reg.Stop)
	return reg
}

func testMessage(t *testing.T, payload string) domain.Message {
	t.Helper()
	msg, err := domain.NewMessage(domain.TopicThreatUpdates, domain.MessageTypeThreatUpdate, payload, time.Now())
	require.NoError(t, err)
	return msg
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

func TestRegistry_AttachAssignsDistinctIDs(t *testing.T) {
	reg := testRegistry(t)

	a, err := reg.Attach(&fakeTransport{})
	require.NoError(t, err)
	b, err := reg.Attach(&fakeTransport{})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, reg.Stats().ActiveConnections)
}

func TestRegistry_DeliverReachesTransportInOrder(t *testing.T) {
	reg := testRegistry(t)
	transport := &fakeTransport{}

	id, err := reg.Attach(transport)
	require.NoError(t, err)

	for i := range 5 {
		require.NoError(t, reg.Deliver(id, testMessage(t, fmt.Sprintf("payload-%d", i))))
	}

	waitFor(t, func() bool { return transport.sentCount() == 5 })
	for i := range 5 {
		assert.Contains(t, transport.sentAt(i), fmt.Sprintf("payload-%d", i))
	}
}

func TestRegistry_DeliverUnknownConnection(t *testing.T) {
	reg := testRegistry(t)

	err := reg.Deliver(uuid.New(), testMessage(t, "x"))
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestRegistry_SubscribeAndUnsubscribe(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Attach(&fakeTransport{})
	require.NoError(t, err)

	require.NoError(t, reg.Subscribe(id, domain.TopicAlerts))
	require.NoError(t, reg.Subscribe(id, domain.TopicAlerts)) // idempotent

	stats := reg.Stats()
	assert.Equal(t, 1, stats.Subscriptions[string(domain.TopicAlerts)])

	ids := reg.ConnectionsSubscribedTo(domain.TopicAlerts)
	require.Len(t, ids, 1)
	assert.Equal(t, id, ids[0])

	require.NoError(t, reg.Unsubscribe(id, domain.TopicAlerts))
	assert.Empty(t, reg.ConnectionsSubscribedTo(domain.TopicAlerts))
}

func TestRegistry_SubscribeUnknownConnectionIsNoOp(t *testing.T) {
	reg := testRegistry(t)

	assert.NoError(t, reg.Subscribe(uuid.New(), domain.TopicAlerts))
	assert.NoError(t, reg.Unsubscribe(uuid.New(), domain.TopicAlerts))
	assert.Empty(t, reg.ConnectionsSubscribedTo(domain.TopicAlerts))
}

func TestRegistry_DetachRemovesSubscriptions(t *testing.T) {
	reg := testRegistry(t)
	transport := &fakeTransport{}

	id, err := reg.Attach(transport)
	require.NoError(t, err)
	require.NoError(t, reg.Subscribe(id, domain.TopicWatchlist))

	reg.Detach(id)

	waitFor(t, func() bool { return reg.Stats().ActiveConnections == 0 })
	assert.Empty(t, reg.ConnectionsSubscribedTo(domain.TopicWatchlist))
	assert.True(t, transport.isClosed())

	// Detaching again is a no-op.
	reg.Detach(id)
	assert.Equal(t, 0, reg.Stats().ActiveConnections)
}

func TestRegistry_BackpressureDropsOldest(t *testing.T) {
	reg := testRegistry(t, WithQueueCapacity(100))
	transport := newBlockingTransport()

	id, err := reg.Attach(transport)
	require.NoError(t, err)

	// The first message is popped and parked inside Send, leaving the
	// queue empty.
	require.NoError(t, reg.Deliver(id, testMessage(t, "msg-0")))
	<-transport.started

	// 101 more deliveries into a capacity-100 queue: exactly one drop.
	for i := 1; i <= 101; i++ {
		require.NoError(t, reg.Deliver(id, testMessage(t, fmt.Sprintf("msg-%d", i))))
	}

	stats := reg.Stats()
	assert.Equal(t, uint64(1), stats.DroppedMessages)

	close(transport.release)
	waitFor(t, func() bool { return transport.sentCount() == 101 })

	// msg-1 was the oldest queued entry and was evicted.
	assert.Contains(t, transport.sentAt(0), "msg-0")
	assert.Contains(t, transport.sentAt(1), "msg-2")
}

func TestRegistry_RejectsWhenFull(t *testing.T) {
	reg := testRegistry(t, WithMaxConnections(1))

	_, err := reg.Attach(&fakeTransport{})
	require.NoError(t, err)

	rejected := &fakeTransport{}
	_, err = reg.Attach(rejected)
	assert.ErrorIs(t, err, domain.ErrRegistryFull)
	assert.True(t, rejected.isClosed())
}

func TestRegistry_TransportFailureDetaches(t *testing.T) {
	reg := testRegistry(t)
	transport := &fakeTransport{sendErr: errors.New("broken pipe")}

	id, err := reg.Attach(transport)
	require.NoError(t, err)

	require.NoError(t, reg.Deliver(id, testMessage(t, "x")))

	waitFor(t, func() bool { return reg.Stats().ActiveConnections == 0 })
}

func TestRegistry_HeartbeatEviction(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := NewRegistry(clock, WithHeartbeatTimeout(90*time.Second))
	t.Cleanup(reg.Stop)

	id, err := reg.Attach(&fakeTransport{})
	require.NoError(t, err)
	require.Equal(t, 1, reg.Stats().ActiveConnections)

	// A heartbeat inside the window keeps the connection alive. The Stats
	// call drains the command channel so the heartbeat lands before the
	// clock moves again.
	clock.Advance(60 * time.Second)
	reg.Heartbeat(id)
	_ = reg.Stats()
	clock.Advance(60 * time.Second)
	waitFor(t, func() bool { return reg.Stats().ActiveConnections == 1 })

	// Silence past the timeout evicts it on the next sweep.
	clock.Advance(120 * time.Second)
	waitFor(t, func() bool { return reg.Stats().ActiveConnections == 0 })
}
