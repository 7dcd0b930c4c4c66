package domain

import "time"

// Severity score bands used for snapshot aggregation and alerting.
const (
	CriticalThreshold = 0.9
	HighThreshold     = 0.7
	MediumThreshold   = 0.5
)

// Snapshot is one timestamped aggregate reading of the entire monitored
// population. Immutable once appended to the analytics store.
type Snapshot struct {
	TakenAt       time.Time      `json:"taken_at"`
	ObjectCount   int            `json:"object_count"`
	MeanScore     float64        `json:"mean_score"`
	MaxScore      float64        `json:"max_score"`
	CriticalCount int            `json:"critical_count"`
	HighCount     int            `json:"high_count"`
	MediumCount   int            `json:"medium_count"`
	LowCount      int            `json:"low_count"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TimeSeriesPoint is one per-object record attached to a snapshot. Delta is
// the signed score change against the previous cycle, kept for trend and
// top-mover queries.
type TimeSeriesPoint struct {
	ObjectID string  `json:"object_id"`
	Score    float64 `json:"score"`
	Delta    float64 `json:"delta"`
}
