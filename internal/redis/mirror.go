package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
)

const (
	alertHistoryKey   = "alerts:history"
	latestSnapshotKey = "analytics:latest_snapshot"

	// alertHistoryLen matches the notifier's in-memory history bound.
	alertHistoryLen = 100
)

// MirrorAlert prepends an alert to the Redis history list, trimmed to the
// retention bound.
func (c *Client) MirrorAlert(ctx context.Context, alert domain.AlertRecord) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", alert.ID, err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, alertHistoryKey, data)
	pipe.LTrim(ctx, alertHistoryKey, 0, alertHistoryLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror alert %s: %w", alert.ID, err)
	}
	return nil
}

// MirrorSnapshot stores the latest population snapshot.
func (c *Client) MirrorSnapshot(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, latestSnapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("mirror snapshot: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit mirrored alerts, newest first.
func (c *Client) RecentAlerts(ctx context.Context, limit int) ([]domain.AlertRecord, error) {
	if limit <= 0 || limit > alertHistoryLen {
		limit = alertHistoryLen
	}

	raw, err := c.rdb.LRange(ctx, alertHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read mirrored alerts: %w", err)
	}

	alerts := make([]domain.AlertRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.AlertRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode mirrored alert: %w", err)
		}
		alerts = append(alerts, rec)
	}
	return alerts, nil
}

// LatestSnapshot returns the most recently mirrored snapshot, or false
// when none has been written yet.
func (c *Client) LatestSnapshot(ctx context.Context) (domain.Snapshot, bool, error) {
	raw, err := c.rdb.Get(ctx, latestSnapshotKey).Result()
	if err != nil {
		if isNil(err) {
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, fmt.Errorf("read mirrored snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode mirrored snapshot: %w", err)
	}
	return snapshot, true, nil
}
