package analytics

import (
	"sort"
	"time"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
)

// BuildSnapshot aggregates one cycle's scores into a snapshot plus the
// per-object points, with deltas against the previous cycle. Points come
// back sorted by object ID. Objects absent from the previous cycle get a
// delta equal to their full score.
func BuildSnapshot(now time.Time, scores, previous map[string]float64) (domain.Snapshot, []domain.TimeSeriesPoint) {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snapshot := domain.Snapshot{
		TakenAt:     now,
		ObjectCount: len(ids),
	}

	points := make([]domain.TimeSeriesPoint, 0, len(ids))
	var sum float64
	for _, id := range ids {
		score := scores[id]
		points = append(points, domain.TimeSeriesPoint{
			ObjectID: id,
			Score:    score,
			Delta:    score - previous[id],
		})

		sum += score
		if score > snapshot.MaxScore {
			snapshot.MaxScore = score
		}
		switch {
		case score >= domain.CriticalThreshold:
			snapshot.CriticalCount++
		case score >= domain.HighThreshold:
			snapshot.HighCount++
		case score >= domain.MediumThreshold:
			snapshot.MediumCount++
		default:
			snapshot.LowCount++
		}
	}

	if len(ids) > 0 {
		snapshot.MeanScore = sum / float64(len(ids))
	}
	return snapshot, points
}
