package registry

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// clientWriter owns all writes to a single transport. It drains the
// connection's queue in FIFO order and sends periodic pings so the peer
// can detect a dead link.
type clientWriter struct {
	transport Transport
	queue     *outQueue
	clock     clockwork.Clock

	pingInterval time.Duration
	onFailure    func()

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClientWriter(transport Transport, queue *outQueue, clock clockwork.Clock, pingInterval time.Duration, onFailure func()) *clientWriter {
	return &clientWriter{
		transport:    transport,
		queue:        queue,
		clock:        clock,
		pingInterval: pingInterval,
		onFailure:    onFailure,
		done:         make(chan struct{}),
	}
}

func (cw *clientWriter) start() {
	cw.wg.Add(1)
	go cw.run()
}

func (cw *clientWriter) run() {
	defer cw.wg.Done()

	ticker := cw.clock.NewTicker(cw.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cw.done:
			return
		case <-cw.queue.signal:
			if !cw.drain() {
				return
			}
		case <-ticker.Chan():
			if err := cw.transport.Ping(); err != nil {
				cw.fail()
				return
			}
		}
	}
}

// drain sends queued messages until the queue is empty. Returns false if
// the transport failed.
func (cw *clientWriter) drain() bool {
	for {
		data, ok := cw.queue.tryPop()
		if !ok {
			return true
		}
		if err := cw.transport.Send(data); err != nil {
			cw.fail()
			return false
		}
	}
}

// fail reports a transport failure unless the writer is already stopping.
// The callback runs on its own goroutine because it re-enters the registry.
func (cw *clientWriter) fail() {
	select {
	case <-cw.done:
	default:
		if cw.onFailure != nil {
			go cw.onFailure()
		}
	}
}

// stop shuts the writer down and closes the transport. Safe to call
// multiple times.
func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.queue.close()
		cw.transport.Close()
		cw.wg.Wait()
	})
}
