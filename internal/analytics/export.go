package analytics

import (
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
)

// ExportCSV renders retained per-object points as CSV, one row per object
// per snapshot. An empty objectID exports everything. Rows are ordered by
// snapshot time, then object ID, so identical store contents always
// produce identical output.
func (s *Store) ExportCSV(objectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"timestamp", "object_id", "score", "delta"}); err != nil {
		return "", err
	}

	cutoff := s.clock.Now().Add(-s.retention)
	for _, rec := range s.records {
		if !rec.snapshot.TakenAt.After(cutoff) {
			continue
		}
		ts := rec.snapshot.TakenAt.UTC().Format(time.RFC3339)
		for _, p := range rec.points {
			if objectID != "" && p.ObjectID != objectID {
				continue
			}
			row := []string{
				ts,
				p.ObjectID,
				strconv.FormatFloat(p.Score, 'f', 4, 64),
				strconv.FormatFloat(p.Delta, 'f', 4, 64),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type exportSnapshot struct {
	Snapshot domain.Snapshot          `json:"snapshot"`
	Points   []domain.TimeSeriesPoint `json:"points"`
}

type exportDocument struct {
	WindowHours float64          `json:"window_hours"`
	Snapshots   []exportSnapshot `json:"snapshots"`
}

// ExportJSON renders the snapshots inside the window as a single JSON
// document, oldest first.
func (s *Store) ExportJSON(window time.Duration) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	cutoff := now.Add(-window)
	if retCutoff := now.Add(-s.retention); retCutoff.After(cutoff) {
		cutoff = retCutoff
	}

	doc := exportDocument{
		WindowHours: window.Hours(),
		Snapshots:   []exportSnapshot{},
	}
	for _, rec := range s.records {
		if !rec.snapshot.TakenAt.After(cutoff) {
			continue
		}
		doc.Snapshots = append(doc.Snapshots, exportSnapshot{
			Snapshot: rec.snapshot,
			Points:   rec.points,
		})
	}
	return json.Marshal(doc)
}
