package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/domain"
)

func testAlert(objectID string) domain.AlertRecord {
	return domain.AlertRecord{
		ID:        uuid.New(),
		Type:      domain.AlertTypeThreshold,
		Level:     domain.SeverityCritical,
		ObjectID:  objectID,
		Message:   "CRITICAL THREAT: object " + objectID + " reached threat level 93.0%",
		Score:     0.93,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestMirrorAlert_RoundTrip(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	first := testAlert("2024-AB5")
	second := testAlert("2024-CD7")
	require.NoError(t, client.MirrorAlert(ctx, first))
	require.NoError(t, client.MirrorAlert(ctx, second))

	alerts, err := client.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	// Newest first.
	assert.Equal(t, second.ID, alerts[0].ID)
	assert.Equal(t, first.ID, alerts[1].ID)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Level)
}

func TestMirrorAlert_TrimsHistory(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	for i := range alertHistoryLen + 10 {
		require.NoError(t, client.MirrorAlert(ctx, testAlert(fmt.Sprintf("obj-%d", i))))
	}

	alerts, err := client.RecentAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, alertHistoryLen)
	assert.Equal(t, fmt.Sprintf("obj-%d", alertHistoryLen+9), alerts[0].ObjectID)
}

func TestMirrorSnapshot_RoundTrip(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	_, ok, err := client.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "no snapshot mirrored yet")

	snapshot := domain.Snapshot{
		TakenAt:       time.Now().UTC().Truncate(time.Second),
		ObjectCount:   3,
		MeanScore:     0.51,
		MaxScore:      0.93,
		CriticalCount: 1,
		LowCount:      2,
	}
	require.NoError(t, client.MirrorSnapshot(ctx, snapshot))

	got, ok, err := client.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot.ObjectCount, got.ObjectCount)
	assert.Equal(t, snapshot.CriticalCount, got.CriticalCount)
	assert.True(t, snapshot.TakenAt.Equal(got.TakenAt))
}

func TestPing(t *testing.T) {
	client := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}
