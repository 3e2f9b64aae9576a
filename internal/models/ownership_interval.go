package models

import (
	"time"

	"github.com/google/uuid"
)

// OwnershipInterval records that an owner held a parcel from StartDate until
// EndDate. A nil EndDate marks the open interval, i.e. the current owner.
// For any parcel the intervals are ordered by start date, pairwise
// non-overlapping, and at most one of them is open.
type OwnershipInterval struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ParcelID  uuid.UUID  `gorm:"type:uuid;index;not null;column:parcel_id" json:"parcel_id"`
	OwnerID   uuid.UUID  `gorm:"type:uuid;index;not null;column:owner_id" json:"owner_id"`
	StartDate time.Time  `gorm:"not null;column:start_date" json:"start_date"`
	EndDate   *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table name in PostgreSQL.
func (OwnershipInterval) TableName() string {
	return "ownership_intervals"
}

// Open reports whether the interval has no recorded end date.
func (i OwnershipInterval) Open() bool {
	return i.EndDate == nil
}

// Covers reports whether the interval includes the given date. The start is
// inclusive and the end is exclusive, so a transfer on day S attributes S to
// the new owner.
func (i OwnershipInterval) Covers(date time.Time) bool {
	d := DateOnly(date)
	if d.Before(DateOnly(i.StartDate)) {
		return false
	}
	if i.EndDate == nil {
		return true
	}
	return d.Before(DateOnly(*i.EndDate))
}

// Overlaps reports whether two intervals share at least one day. Touching
// endpoints (one ends exactly where the other starts) do not overlap.
func (i OwnershipInterval) Overlaps(other OwnershipInterval) bool {
	aStart := DateOnly(i.StartDate)
	bStart := DateOnly(other.StartDate)

	aEnd := openEnd
	if i.EndDate != nil {
		aEnd = DateOnly(*i.EndDate)
	}
	bEnd := openEnd
	if other.EndDate != nil {
		bEnd = DateOnly(*other.EndDate)
	}

	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// openEnd stands in for the missing end date of an open interval when
// comparing ranges.
var openEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// DateOnly normalizes a timestamp to midnight UTC. Ownership and payment
// dates are calendar dates; normalizing at the model boundary keeps
// comparisons free of timezone and clock noise.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
