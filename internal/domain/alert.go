package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity orders alert levels from least to most urgent.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering position of a severity. Unknown severities rank
// lowest so a malformed level can never break a cooldown.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

// Alert types. Threshold crossings share one type so repeated crossings for
// the same object deduplicate against each other and a higher level can
// escalate through an active cooldown.
const (
	AlertTypeThreshold = "threshold"
	AlertTypeIncrease  = "threat_increase"
	AlertTypeDecrease  = "threat_decrease"
	AlertTypeSystem    = "system"
)

// AlertRecord is an emitted alert. Never mutated after creation except to
// set the acknowledgement timestamp.
type AlertRecord struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Level          Severity   `json:"level"`
	ObjectID       string     `json:"object_id,omitempty"`
	Message        string     `json:"message"`
	Score          float64    `json:"score"`
	PreviousScore  float64    `json:"previous_score"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// ScoreReading is one per-object input to alert evaluation: the score from
// the previous scheduler cycle and the score from the current one.
// FirstSeen marks objects with no previous cycle; change rules skip them
// since there is no real movement to report.
type ScoreReading struct {
	ObjectID  string
	Previous  float64
	Current   float64
	FirstSeen bool
}
