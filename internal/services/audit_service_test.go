package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/requestinfo"
)

func TestAppend_AssignsIncreasingSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := env.audit.Append(ctx, models.AuditEntry{
			Action:     models.AuditCreate,
			EntityType: "parcel",
			EntityID:   "p1",
		})
		require.NoError(t, err)
	}

	entries, err := env.audit.RecentEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first, strictly decreasing sequence.
	assert.Greater(t, entries[0].Seq, entries[1].Seq)
	assert.Greater(t, entries[1].Seq, entries[2].Seq)
}

func TestAppend_RejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t)

	err := env.audit.Append(context.Background(), models.AuditEntry{
		Action:     "reticulate",
		EntityType: "parcel",
	})
	assert.Error(t, err)
}

func TestAppend_DefaultsActorAndTimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.audit.Append(ctx, models.AuditEntry{
		Action:     models.AuditUpdate,
		EntityType: "owner",
		EntityID:   "o1",
	})
	require.NoError(t, err)

	entries, err := env.audit.RecentEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, requestinfo.AnonymousActor, entries[0].ActorID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestRecord_CapturesContextIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := requestinfo.WithActorID(context.Background(), "board-chair")
	ctx = requestinfo.WithOrigin(ctx, "10.0.0.5")

	env.audit.Record(ctx, models.AuditUpdate, "parcel", "p1",
		map[string]string{"plot": "1"}, map[string]string{"plot": "1a"})

	entries, err := env.audit.RecentEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "board-chair", entries[0].ActorID)
	assert.Equal(t, "10.0.0.5", entries[0].OriginAddress)
	assert.JSONEq(t, `{"plot":"1"}`, string(entries[0].Before))
	assert.JSONEq(t, `{"plot":"1a"}`, string(entries[0].After))
}

func TestRecord_NeverFailsCaller(t *testing.T) {
	env := newTestEnv(t)

	// An invalid action makes the underlying append fail; Record must
	// swallow it.
	env.audit.Record(context.Background(), "bogus", "parcel", "p1", nil, nil)

	entries, err := env.audit.RecentEntries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntriesForUser_FiltersByActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.audit.Record(requestinfo.WithActorID(ctx, "alice"), models.AuditCreate, "parcel", "p1", nil, nil)
	env.audit.Record(requestinfo.WithActorID(ctx, "bob"), models.AuditCreate, "parcel", "p2", nil, nil)
	env.audit.Record(requestinfo.WithActorID(ctx, "alice"), models.AuditDelete, "parcel", "p1", nil, nil)

	entries, err := env.audit.EntriesForUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "alice", e.ActorID)
	}
}

func TestFilter_ByActionAndEntityType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.audit.Record(ctx, models.AuditCreate, "parcel", "p1", nil, nil)
	env.audit.Record(ctx, models.AuditCreate, "owner", "o1", nil, nil)
	env.audit.Record(ctx, models.AuditDelete, "parcel", "p1", nil, nil)

	entries, err := env.audit.Filter(ctx, models.AuditFilter{
		Action:     models.AuditCreate,
		EntityType: "parcel",
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].EntityID)
	assert.Equal(t, models.AuditCreate, entries[0].Action)
}

func TestStatistics_TracksIncrementalCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.audit.Record(ctx, models.AuditCreate, "parcel", "p1", nil, nil)
	env.audit.Record(ctx, models.AuditCreate, "parcel", "p2", nil, nil)
	env.audit.Record(ctx, models.AuditUpdate, "parcel", "p1", nil, nil)

	stats, err := env.audit.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalEntries)
	assert.Equal(t, uint64(3), stats.Last24h)
	assert.Equal(t, uint64(2), stats.ByAction[models.AuditCreate])
	assert.Equal(t, uint64(1), stats.ByAction[models.AuditUpdate])
}

func TestStatistics_RollingWindowExcludesOldEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.audit.Append(ctx, models.AuditEntry{
		Action:     models.AuditCreate,
		EntityType: "parcel",
		EntityID:   "p1",
		Timestamp:  time.Now().UTC().Add(-48 * time.Hour),
	}))
	require.NoError(t, env.audit.Append(ctx, models.AuditEntry{
		Action:     models.AuditCreate,
		EntityType: "parcel",
		EntityID:   "p2",
	}))

	stats, err := env.audit.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalEntries)
	assert.Equal(t, uint64(1), stats.Last24h)
}

func TestVerifyStatistics_ConsistentCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.audit.Record(ctx, models.AuditCreate, "parcel", "p1", nil, nil)
	env.audit.Record(ctx, models.AuditDelete, "parcel", "p1", nil, nil)

	stats, consistent, err := env.audit.VerifyStatistics(ctx)
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Equal(t, uint64(2), stats.TotalEntries)
	assert.Equal(t, uint64(1), stats.ByAction[models.AuditCreate])
	assert.Equal(t, uint64(1), stats.ByAction[models.AuditDelete])
}

func TestVerifyStatistics_ResyncsDivergedCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Write behind the service's back so the incremental cache misses an
	// entry, the way a second process sharing the store would.
	entry := models.AuditEntry{
		ActorID:    "migration",
		Action:     models.AuditBackup,
		EntityType: "ledger",
		EntityID:   "all",
		Timestamp:  time.Now().UTC(),
	}
	require.NoError(t, env.mem.Audit.Append(ctx, &entry))

	_, consistent, err := env.audit.VerifyStatistics(ctx)
	require.NoError(t, err)
	assert.False(t, consistent)

	// The scan resynced the totals; a second pass agrees.
	stats, consistent, err := env.audit.VerifyStatistics(ctx)
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Equal(t, uint64(1), stats.TotalEntries)
}
