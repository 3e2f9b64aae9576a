package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelousov/sntledger/internal/models"
)

func TestMemoryParcels_ListOrderedByPlotNumber(t *testing.T) {
	s := NewMemoryParcels()
	ctx := context.Background()

	for _, plot := range []string{"17", "3", "9a"} {
		require.NoError(t, s.Save(ctx, models.Parcel{ID: uuid.New(), PlotNumber: plot}))
	}

	parcels, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, parcels, 3)
	assert.Equal(t, "17", parcels[0].PlotNumber)
	assert.Equal(t, "3", parcels[1].PlotNumber)
	assert.Equal(t, "9a", parcels[2].PlotNumber)
}

func TestMemoryParcels_ListSkipsSoftDeleted(t *testing.T) {
	s := NewMemoryParcels()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Save(ctx, models.Parcel{ID: uuid.New(), PlotNumber: "1"}))
	require.NoError(t, s.Save(ctx, models.Parcel{ID: uuid.New(), PlotNumber: "2", DeletedAt: &now}))

	active, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "1", active[0].PlotNumber)

	all, err := s.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryParcels_MissingID(t *testing.T) {
	s := NewMemoryParcels()
	ctx := context.Background()

	_, err := s.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, uuid.New()), ErrNotFound)
}

func TestMemoryDues_CreateRejectsDuplicateYear(t *testing.T) {
	s := NewMemoryDues()
	ctx := context.Background()
	parcelID := uuid.New()

	require.NoError(t, s.Create(ctx, models.DueRecord{
		ID: uuid.New(), ParcelID: parcelID, FiscalYear: 2024, Amount: 500000, Version: 1,
	}))
	err := s.Create(ctx, models.DueRecord{
		ID: uuid.New(), ParcelID: parcelID, FiscalYear: 2024, Amount: 600000, Version: 1,
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// A different year on the same parcel is fine.
	require.NoError(t, s.Create(ctx, models.DueRecord{
		ID: uuid.New(), ParcelID: parcelID, FiscalYear: 2025, Amount: 500000, Version: 1,
	}))
}

func TestMemoryDues_UpdateChecksVersion(t *testing.T) {
	s := NewMemoryDues()
	ctx := context.Background()
	parcelID := uuid.New()

	require.NoError(t, s.Create(ctx, models.DueRecord{
		ID: uuid.New(), ParcelID: parcelID, FiscalYear: 2024, Amount: 500000, Version: 1,
	}))

	current, err := s.Find(ctx, parcelID, 2024)
	require.NoError(t, err)

	current.AmountPaid = 250000
	require.NoError(t, s.Update(ctx, current))

	updated, err := s.Find(ctx, parcelID, 2024)
	require.NoError(t, err)
	assert.Equal(t, current.Version+1, updated.Version)

	// A writer holding the stale version loses.
	current.AmountPaid = 999999
	assert.ErrorIs(t, s.Update(ctx, current), ErrVersionConflict)

	kept, err := s.Find(ctx, parcelID, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(250000), kept.AmountPaid)
}

func TestMemoryDues_ListPaidBetweenIsInclusive(t *testing.T) {
	s := NewMemoryDues()
	ctx := context.Background()

	paidOn := func(day time.Time) models.DueRecord {
		return models.DueRecord{
			ID: uuid.New(), ParcelID: uuid.New(), FiscalYear: 2024,
			Amount: 500000, AmountPaid: 500000, PaidDate: &day, Version: 1,
		}
	}
	before := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	lower := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	upper := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	after := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, day := range []time.Time{before, lower, upper, after} {
		require.NoError(t, s.Create(ctx, paidOn(day)))
	}

	march, err := s.ListPaidBetween(ctx, lower, upper)
	require.NoError(t, err)
	require.Len(t, march, 2)
}

func TestMemoryTimeline_ReplaceSortsByStartDate(t *testing.T) {
	s := NewMemoryTimeline()
	ctx := context.Background()
	parcelID := uuid.New()

	late := models.OwnershipInterval{
		ID: uuid.New(), ParcelID: parcelID,
		StartDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	earlyEnd := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	early := models.OwnershipInterval{
		ID: uuid.New(), ParcelID: parcelID,
		StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   &earlyEnd,
	}

	require.NoError(t, s.ReplaceTimeline(ctx, parcelID, []models.OwnershipInterval{late, early}))

	timeline, err := s.ListByParcel(ctx, parcelID)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, early.ID, timeline[0].ID)
	assert.Equal(t, late.ID, timeline[1].ID)

	count, err := s.CountByParcel(ctx, parcelID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryTimeline_ReplaceWithEmptyClears(t *testing.T) {
	s := NewMemoryTimeline()
	ctx := context.Background()
	parcelID := uuid.New()

	interval := models.OwnershipInterval{
		ID: uuid.New(), ParcelID: parcelID,
		StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.ReplaceTimeline(ctx, parcelID, []models.OwnershipInterval{interval}))
	require.NoError(t, s.ReplaceTimeline(ctx, parcelID, nil))

	count, err := s.CountByParcel(ctx, parcelID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = s.FindByID(ctx, interval.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTimeline_ListReturnsCopy(t *testing.T) {
	s := NewMemoryTimeline()
	ctx := context.Background()
	parcelID := uuid.New()

	interval := models.OwnershipInterval{
		ID: uuid.New(), ParcelID: parcelID,
		StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.ReplaceTimeline(ctx, parcelID, []models.OwnershipInterval{interval}))

	listed, err := s.ListByParcel(ctx, parcelID)
	require.NoError(t, err)
	listed[0].OwnerID = uuid.New()

	again, err := s.ListByParcel(ctx, parcelID)
	require.NoError(t, err)
	assert.Equal(t, interval.OwnerID, again[0].OwnerID)
}

func TestMemoryAudit_WalkStopsOnCancelledContext(t *testing.T) {
	s := NewMemoryAudit()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := models.AuditEntry{Action: models.AuditCreate, EntityType: "parcel"}
		require.NoError(t, s.Append(ctx, &entry))
	}

	walkCtx, cancel := context.WithCancel(ctx)
	seen := 0
	err := s.Walk(walkCtx, func(models.AuditEntry) error {
		seen++
		if seen == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, seen)
}

func TestMemoryAudit_FilterByTimeRange(t *testing.T) {
	s := NewMemoryAudit()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		entry := models.AuditEntry{
			Action:     models.AuditCreate,
			EntityType: "parcel",
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.Append(ctx, &entry))
	}

	entries, err := s.Filter(ctx, models.AuditFilter{
		Since: base.Add(30 * time.Minute),
		Until: base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, base.Add(time.Hour), entries[0].Timestamp)
}

func TestParcelLocks_SerializesSameParcel(t *testing.T) {
	locks := NewParcelLocks()
	parcelID := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(parcelID)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestParcelLocks_IndependentParcelsDoNotBlock(t *testing.T) {
	locks := NewParcelLocks()
	a := uuid.New()
	b := uuid.New()

	unlockA := locks.Lock(a)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock(b)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on an unrelated parcel blocked")
	}
}
