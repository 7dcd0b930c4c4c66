package registry

import "sync"

// outQueue is the bounded outbound message queue for one connection.
// When full, the oldest entry is dropped to make room (drop-oldest
// backpressure) and the drop counter is incremented.
type outQueue struct {
	mu       sync.Mutex
	items    [][]byte
	capacity int
	dropped  uint64
	closed   bool
	signal   chan struct{}
}

func newOutQueue(capacity int) *outQueue {
	return &outQueue{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// push enqueues data, evicting the oldest entry if the queue is at capacity.
// Returns true if an entry was dropped.
func (q *outQueue) push(data []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	var dropped bool
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, data)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return dropped
}

// tryPop removes and returns the oldest entry, or (nil, false) if empty.
func (q *outQueue) tryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	data := q.items[0]
	q.items = q.items[1:]
	return data, true
}

func (q *outQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *outQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// close rejects all further pushes. Queued entries stay readable so an
// in-flight drain can finish.
func (q *outQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
