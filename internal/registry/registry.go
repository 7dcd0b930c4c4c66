package registry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	pingInterval   = 30 * time.Second
	sweepInterval  = 30 * time.Second
)

// ConnState is the lifecycle state of a registered connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type connection struct {
	id            uuid.UUID
	state         ConnState
	topics        map[domain.Topic]struct{}
	queue         *outQueue
	writer        *clientWriter
	lastHeartbeat time.Time
}

// Stats is a point-in-time summary of registry state.
type Stats struct {
	ActiveConnections int            `json:"active_connections"`
	Subscriptions     map[string]int `json:"subscriptions"`
	DroppedMessages   uint64         `json:"dropped_messages"`
}

// registryCmd is the command interface for the Registry actor.
type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type attachCmd struct {
	baseRegistryCmd
	transport Transport
	replyCh   chan attachReply
}

type attachReply struct {
	id  uuid.UUID
	err error
}

type subscribeCmd struct {
	baseRegistryCmd
	id    uuid.UUID
	topic domain.Topic
	errCh chan error
}

type unsubscribeCmd struct {
	baseRegistryCmd
	id    uuid.UUID
	topic domain.Topic
	errCh chan error
}

type detachCmd struct {
	baseRegistryCmd
	id uuid.UUID
}

type deliverCmd struct {
	baseRegistryCmd
	id    uuid.UUID
	data  []byte
	errCh chan error
}

type heartbeatCmd struct {
	baseRegistryCmd
	id uuid.UUID
}

type subscribersCmd struct {
	baseRegistryCmd
	topic   domain.Topic
	replyCh chan []uuid.UUID
}

type statsCmd struct {
	baseRegistryCmd
	replyCh chan Stats
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry tracks every live client connection and its topic
// subscriptions. All state is owned by a single goroutine; the public
// methods send commands to it, so registrations, subscription changes
// and deliveries to the same connection are totally ordered.
type Registry struct {
	cmdCh chan registryCmd
	clock clockwork.Clock
	done  chan struct{}

	conns       map[uuid.UUID]*connection
	subscribers map[domain.Topic]map[uuid.UUID]struct{}

	queueCapacity    int
	maxConnections   int
	heartbeatTimeout time.Duration
	droppedTotal     uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithQueueCapacity sets the per-connection outbound queue capacity.
func WithQueueCapacity(n int) Option {
	return func(r *Registry) { r.queueCapacity = n }
}

// WithMaxConnections limits the number of simultaneous connections.
func WithMaxConnections(n int) Option {
	return func(r *Registry) { r.maxConnections = n }
}

// WithHeartbeatTimeout sets how long a connection may stay silent before
// the sweep evicts it. Zero disables eviction.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(r *Registry) { r.heartbeatTimeout = d }
}

// NewRegistry creates a registry and starts its actor goroutine.
func NewRegistry(clock clockwork.Clock, opts ...Option) *Registry {
	r := &Registry{
		cmdCh:            make(chan registryCmd, 256),
		clock:            clock,
		done:             make(chan struct{}),
		conns:            make(map[uuid.UUID]*connection),
		subscribers:      make(map[domain.Topic]map[uuid.UUID]struct{}),
		queueCapacity:    100,
		maxConnections:   10000,
		heartbeatTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Attach registers a new connection and returns its identifier. The
// transport is closed and ErrRegistryFull returned when the connection
// limit is reached.
func (r *Registry) Attach(transport Transport) (uuid.UUID, error) {
	replyCh := make(chan attachReply, 1)
	r.cmdCh <- attachCmd{transport: transport, replyCh: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.id, reply.err
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("attach command timed out after %v", commandTimeout)
	}
}

// Subscribe adds the connection to a topic. Subscribing twice is a no-op.
func (r *Registry) Subscribe(id uuid.UUID, topic domain.Topic) error {
	errCh := make(chan error, 1)
	r.cmdCh <- subscribeCmd{id: id, topic: topic, errCh: errCh}
	return r.awaitError(errCh)
}

// Unsubscribe removes the connection from a topic.
func (r *Registry) Unsubscribe(id uuid.UUID, topic domain.Topic) error {
	errCh := make(chan error, 1)
	r.cmdCh <- unsubscribeCmd{id: id, topic: topic, errCh: errCh}
	return r.awaitError(errCh)
}

func (r *Registry) awaitError(errCh chan error) error {
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("registry command timed out after %v", commandTimeout)
	}
}

// Detach removes a connection, drops its subscriptions and closes its
// transport. Detaching an unknown connection is a no-op.
func (r *Registry) Detach(id uuid.UUID) {
	r.cmdCh <- detachCmd{id: id}
}

// Deliver enqueues an encoded message for one connection. When the queue
// is full the oldest entry is dropped to make room.
func (r *Registry) Deliver(id uuid.UUID, msg domain.Message) error {
	errCh := make(chan error, 1)
	r.cmdCh <- deliverCmd{id: id, data: msg.Encoded(), errCh: errCh}
	return r.awaitError(errCh)
}

// Heartbeat records activity on a connection so the sweep keeps it alive.
// Unknown connections are ignored.
func (r *Registry) Heartbeat(id uuid.UUID) {
	r.cmdCh <- heartbeatCmd{id: id}
}

// ConnectionsSubscribedTo returns a point-in-time copy of the connection
// IDs subscribed to a topic.
func (r *Registry) ConnectionsSubscribedTo(topic domain.Topic) []uuid.UUID {
	replyCh := make(chan []uuid.UUID, 1)
	r.cmdCh <- subscribersCmd{topic: topic, replyCh: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case ids := <-replyCh:
		return ids
	case <-timer.Chan():
		slog.Warn("ConnectionsSubscribedTo timed out", "timeout", commandTimeout)
		return nil
	}
}

// Stats returns current connection and subscription counts.
func (r *Registry) Stats() Stats {
	replyCh := make(chan Stats, 1)
	r.cmdCh <- statsCmd{replyCh: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case stats := <-replyCh:
		return stats
	case <-timer.Chan():
		slog.Warn("Stats timed out", "timeout", commandTimeout)
		return Stats{Subscriptions: map[string]int{}}
	}
}

// Stop closes every connection and shuts the actor down. Blocks until
// the goroutine has exited or the stop timeout is reached.
func (r *Registry) Stop() {
	r.cmdCh <- stopCmd{}

	timeout := r.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-r.done:
		slog.Info("Registry stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Registry stop timeout exceeded, forcing exit", "timeout", stopTimeout)
		close(r.done)
	}
}

func (r *Registry) run() {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Registry panic recovered", "panic", rec)
			r.closeAllConnections()
		}
	}()

	sweeper := r.clock.NewTicker(sweepInterval)
	defer sweeper.Stop()
	defer close(r.done)

	for {
		select {
		case <-sweeper.Chan():
			metrics.RegistryCommandChannelDepth.Set(float64(len(r.cmdCh)))
			r.sweepStale()

		case cmd := <-r.cmdCh:
			switch c := cmd.(type) {
			case attachCmd:
				r.handleAttach(c)
			case subscribeCmd:
				c.errCh <- r.handleSubscribe(c)
			case unsubscribeCmd:
				c.errCh <- r.handleUnsubscribe(c)
			case detachCmd:
				r.handleDetach(c.id)
			case deliverCmd:
				c.errCh <- r.handleDeliver(c)
			case heartbeatCmd:
				r.handleHeartbeat(c.id)
			case subscribersCmd:
				c.replyCh <- r.subscriberIDs(c.topic)
			case statsCmd:
				c.replyCh <- r.buildStats()
			case stopCmd:
				r.handleStop()
				return
			default:
				slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (r *Registry) handleAttach(c attachCmd) {
	if len(r.conns) >= r.maxConnections {
		slog.Warn("Rejecting connection: registry full", "max_connections", r.maxConnections)
		c.transport.Close()
		c.replyCh <- attachReply{id: uuid.Nil, err: domain.ErrRegistryFull}
		return
	}

	id := uuid.New()
	conn := &connection{
		id:            id,
		state:         StateConnecting,
		topics:        make(map[domain.Topic]struct{}),
		queue:         newOutQueue(r.queueCapacity),
		lastHeartbeat: r.clock.Now(),
	}
	conn.writer = newClientWriter(c.transport, conn.queue, r.clock, pingInterval, func() {
		metrics.RegistryTransportFailures.Inc()
		r.Detach(id)
	})
	conn.writer.start()
	conn.state = StateOpen
	r.conns[id] = conn

	metrics.RegistryActiveConnections.Set(float64(len(r.conns)))

	slog.Debug("Connection attached", "connection_id", id.String(), "total_connections", len(r.conns))
	c.replyCh <- attachReply{id: id}
}

func (r *Registry) handleSubscribe(c subscribeCmd) error {
	conn, ok := r.conns[c.id]
	if !ok || conn.state != StateOpen {
		// closed connections race their own late subscribe commands
		return nil
	}

	if _, dup := conn.topics[c.topic]; dup {
		return nil
	}
	conn.topics[c.topic] = struct{}{}

	set, ok := r.subscribers[c.topic]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.subscribers[c.topic] = set
	}
	set[c.id] = struct{}{}

	metrics.RegistryTopicSubscribers.WithLabelValues(string(c.topic)).Set(float64(len(set)))
	slog.Debug("Subscribed", "connection_id", c.id.String(), "topic", string(c.topic))
	return nil
}

func (r *Registry) handleUnsubscribe(c unsubscribeCmd) error {
	conn, ok := r.conns[c.id]
	if !ok || conn.state != StateOpen {
		return nil
	}

	delete(conn.topics, c.topic)
	r.dropSubscriber(c.topic, c.id)

	slog.Debug("Unsubscribed", "connection_id", c.id.String(), "topic", string(c.topic))
	return nil
}

func (r *Registry) handleDetach(id uuid.UUID) {
	conn, ok := r.conns[id]
	if !ok {
		return
	}

	conn.state = StateClosing
	for topic := range conn.topics {
		r.dropSubscriber(topic, id)
	}
	conn.writer.stop()
	conn.state = StateClosed
	delete(r.conns, id)

	metrics.RegistryActiveConnections.Set(float64(len(r.conns)))
	slog.Debug("Connection detached", "connection_id", id.String(), "remaining_connections", len(r.conns))
}

func (r *Registry) handleDeliver(c deliverCmd) error {
	conn, ok := r.conns[c.id]
	if !ok || conn.state != StateOpen {
		return domain.ErrConnectionNotFound
	}

	if conn.queue.push(c.data) {
		r.droppedTotal++
		metrics.RegistryMessagesDropped.Inc()
		slog.Warn("Queue full, dropped oldest message", "connection_id", c.id.String())
	}
	metrics.RegistryMessagesDelivered.Inc()
	return nil
}

func (r *Registry) handleHeartbeat(id uuid.UUID) {
	conn, ok := r.conns[id]
	if !ok {
		return
	}
	conn.lastHeartbeat = r.clock.Now()
}

// sweepStale evicts connections that have been silent past the heartbeat
// timeout.
func (r *Registry) sweepStale() {
	if r.heartbeatTimeout <= 0 {
		return
	}

	now := r.clock.Now()
	var stale []uuid.UUID
	for id, conn := range r.conns {
		if now.Sub(conn.lastHeartbeat) > r.heartbeatTimeout {
			stale = append(stale, id)
		}
	}

	for _, id := range stale {
		slog.Info("Evicting stale connection", "connection_id", id.String(), "timeout", r.heartbeatTimeout)
		metrics.RegistryHeartbeatEvictions.Inc()
		r.handleDetach(id)
	}
}

func (r *Registry) dropSubscriber(topic domain.Topic, id uuid.UUID) {
	set, ok := r.subscribers[topic]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.subscribers, topic)
	}
	metrics.RegistryTopicSubscribers.WithLabelValues(string(topic)).Set(float64(len(set)))
}

func (r *Registry) subscriberIDs(topic domain.Topic) []uuid.UUID {
	set := r.subscribers[topic]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) buildStats() Stats {
	subs := make(map[string]int, len(r.subscribers))
	for topic, set := range r.subscribers {
		subs[string(topic)] = len(set)
	}
	return Stats{
		ActiveConnections: len(r.conns),
		Subscriptions:     subs,
		DroppedMessages:   r.droppedTotal,
	}
}

func (r *Registry) handleStop() {
	slog.Info("Registry shutting down", "connections", len(r.conns))
	r.closeAllConnections()
	slog.Info("Registry shutdown complete")
}

func (r *Registry) closeAllConnections() {
	for id, conn := range r.conns {
		conn.writer.stop()
		delete(r.conns, id)
	}
	r.subscribers = make(map[domain.Topic]map[uuid.UUID]struct{})
	metrics.RegistryActiveConnections.Set(0)
}
