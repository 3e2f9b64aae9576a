package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCovers_StartInclusiveEndExclusive(t *testing.T) {
	end := date(2023, 6, 1)
	interval := OwnershipInterval{StartDate: date(2020, 1, 1), EndDate: &end}

	assert.True(t, interval.Covers(date(2020, 1, 1)), "start day belongs to the interval")
	assert.True(t, interval.Covers(date(2023, 5, 31)), "last full day belongs to the interval")
	assert.False(t, interval.Covers(date(2023, 6, 1)), "end day belongs to the next owner")
	assert.False(t, interval.Covers(date(2019, 12, 31)))
}

func TestCovers_OpenInterval(t *testing.T) {
	interval := OwnershipInterval{StartDate: date(2020, 1, 1)}

	assert.True(t, interval.Covers(date(2020, 1, 1)))
	assert.True(t, interval.Covers(date(2099, 1, 1)))
	assert.False(t, interval.Covers(date(2019, 6, 1)))
}

func TestCovers_IgnoresTimeOfDay(t *testing.T) {
	end := date(2023, 6, 1)
	interval := OwnershipInterval{StartDate: date(2020, 1, 1), EndDate: &end}

	noon := time.Date(2023, 5, 31, 12, 30, 0, 0, time.UTC)
	assert.True(t, interval.Covers(noon))

	// A timestamp late on the end day in a western zone is still the end day
	// once normalized to UTC... unless the UTC date rolls over.
	moscow := time.FixedZone("MSK", 3*60*60)
	lateMoscow := time.Date(2023, 6, 1, 1, 0, 0, 0, moscow) // 2023-05-31T22:00Z
	assert.True(t, interval.Covers(lateMoscow))
}

func TestOverlaps_TouchingEndpointsDoNotOverlap(t *testing.T) {
	firstEnd := date(2023, 6, 1)
	first := OwnershipInterval{StartDate: date(2020, 1, 1), EndDate: &firstEnd}
	second := OwnershipInterval{StartDate: date(2023, 6, 1)}

	assert.False(t, first.Overlaps(second))
	assert.False(t, second.Overlaps(first))
}

func TestOverlaps_SharedDay(t *testing.T) {
	firstEnd := date(2023, 6, 2)
	first := OwnershipInterval{StartDate: date(2020, 1, 1), EndDate: &firstEnd}
	second := OwnershipInterval{StartDate: date(2023, 6, 1)}

	assert.True(t, first.Overlaps(second))
	assert.True(t, second.Overlaps(first))
}

func TestOverlaps_TwoOpenIntervals(t *testing.T) {
	first := OwnershipInterval{StartDate: date(2020, 1, 1)}
	second := OwnershipInterval{StartDate: date(2024, 1, 1)}

	assert.True(t, first.Overlaps(second))
}

func TestOverlaps_ZeroLengthInterval(t *testing.T) {
	// A same-day purchase and resale occupies no days at all.
	end := date(2023, 6, 1)
	zero := OwnershipInterval{StartDate: date(2023, 6, 1), EndDate: &end}
	open := OwnershipInterval{StartDate: date(2023, 6, 1)}

	assert.False(t, zero.Overlaps(open))
	assert.False(t, zero.Covers(date(2023, 6, 1)))
}

func TestDateOnly_NormalizesToMidnightUTC(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	stamp := time.Date(2024, 3, 15, 2, 45, 0, 0, moscow)

	got := DateOnly(stamp)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}
