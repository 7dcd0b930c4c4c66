// Package broadcast fans messages out to every connection subscribed to
// a topic. It snapshots the subscriber set before iterating, so
// connections attached mid-broadcast receive nothing and connections
// detached mid-broadcast are skipped silently.
package broadcast

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/metrics"
)

// ConnectionSource is the slice of the registry the broadcaster needs.
type ConnectionSource interface {
	ConnectionsSubscribedTo(topic domain.Topic) []uuid.UUID
	Deliver(id uuid.UUID, msg domain.Message) error
}

// Broadcaster implements domain.Publisher on top of a connection source.
type Broadcaster struct {
	source ConnectionSource
	clock  clockwork.Clock
}

func NewBroadcaster(source ConnectionSource, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{source: source, clock: clock}
}

// Publish delivers one message to every current subscriber of its topic.
// A failed delivery to one connection never affects the others.
func (b *Broadcaster) Publish(msg domain.Message) {
	start := b.clock.Now()

	ids := b.source.ConnectionsSubscribedTo(msg.Topic)
	delivered := 0
	for _, id := range ids {
		if err := b.source.Deliver(id, msg); err != nil {
			// Detached between snapshot and delivery.
			slog.Debug("Skipping stale subscriber", "connection_id", id.String(), "topic", string(msg.Topic))
			continue
		}
		delivered++
	}

	metrics.BroadcastFanoutDuration.Observe(b.clock.Since(start).Seconds())
	metrics.BroadcastMessagesPublished.WithLabelValues(string(msg.Topic)).Inc()

	slog.Debug("Broadcast complete",
		"topic", string(msg.Topic),
		"type", msg.Type,
		"subscribers", len(ids),
		"delivered", delivered,
	)
}
