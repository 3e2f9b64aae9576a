package models

import (
	"time"

	"github.com/google/uuid"
)

// DueStatus is the payment state of a yearly due.
type DueStatus string

const (
	DueNotPaid DueStatus = "not_paid"
	DuePartial DueStatus = "partial"
	DuePaid    DueStatus = "paid"
)

// Valid reports whether the status is one of the known values.
func (s DueStatus) Valid() bool {
	switch s {
	case DueNotPaid, DuePartial, DuePaid:
		return true
	}
	return false
}

// DueRecord is the assessed annual fee obligation for a parcel. Exactly one
// record exists per (parcel, fiscal year). Amounts are stored in minor
// currency units (kopecks) so aggregation stays exact.
type DueRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ParcelID   uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_parcel_year;not null;column:parcel_id" json:"parcel_id"`
	FiscalYear int        `gorm:"uniqueIndex:idx_parcel_year;not null;column:fiscal_year" json:"fiscal_year"`
	Amount     int64      `gorm:"not null;column:amount" json:"amount"`
	AmountPaid int64      `gorm:"not null;default:0;column:amount_paid" json:"amount_paid"`
	Status     DueStatus  `gorm:"size:20;not null;default:'not_paid';column:status" json:"status"`
	PaidDate   *time.Time `gorm:"column:paid_date" json:"paid_date,omitempty"`
	Version    int64      `gorm:"not null;default:1;column:version" json:"-"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name in PostgreSQL.
func (DueRecord) TableName() string {
	return "due_records"
}

// DeriveStatus returns the status implied by the paid amount relative to the
// assessed amount.
func DeriveStatus(amount, amountPaid int64) DueStatus {
	switch {
	case amountPaid <= 0:
		return DueNotPaid
	case amountPaid < amount:
		return DuePartial
	default:
		return DuePaid
	}
}

// Outstanding returns the unpaid remainder, never negative.
func (d DueRecord) Outstanding() int64 {
	if rest := d.Amount - d.AmountPaid; rest > 0 {
		return rest
	}
	return 0
}

// Settled reports whether the due is fully paid.
func (d DueRecord) Settled() bool {
	return d.Status == DuePaid
}
