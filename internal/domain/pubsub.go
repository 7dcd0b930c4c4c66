package domain

import "context"

// Publisher fans a message out to every connection subscribed to its topic.
// Publishing is fire-and-forget: it blocks on enqueue only, never on any
// individual connection's send completing.
type Publisher interface {
	Publish(msg Message)
}

// ScoreSource is the external scoring engine: a mapping from object id to a
// risk score in [0,1]. A returned error marks the scheduler cycle as
// skippable, not fatal.
type ScoreSource interface {
	GetCurrentScores(ctx context.Context) (map[string]float64, error)
}
