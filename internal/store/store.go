package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/obelousov/sntledger/internal/models"
)

// Store-level sentinel errors. Services translate these into their own
// domain errors; handlers never see them directly.
var (
	// ErrNotFound keeps storage 404s consistent across the in-memory and
	// postgres implementations.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists signals a uniqueness violation, e.g. a second due
	// record for the same (parcel, fiscal year).
	ErrAlreadyExists = errors.New("record already exists")

	// ErrVersionConflict signals a lost optimistic write: the record was
	// modified between read and update. Callers retry or surface a conflict.
	ErrVersionConflict = errors.New("version conflict")
)

// ParcelStore persists parcel identity records.
type ParcelStore interface {
	Save(ctx context.Context, parcel models.Parcel) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Parcel, error)
	List(ctx context.Context, includeDeleted bool) ([]models.Parcel, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OwnerStore persists owner identity records.
type OwnerStore interface {
	Save(ctx context.Context, owner models.Owner) error
	FindByID(ctx context.Context, id uuid.UUID) (models.Owner, error)
	List(ctx context.Context, includeDeleted bool) ([]models.Owner, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TimelineStore persists ownership intervals. ReplaceTimeline swaps the
// entire interval set of one parcel atomically, which is what both
// transfer-of-ownership and administrative correction need: either the new
// timeline is fully committed or nothing changes.
type TimelineStore interface {
	FindByID(ctx context.Context, intervalID uuid.UUID) (models.OwnershipInterval, error)
	ListByParcel(ctx context.Context, parcelID uuid.UUID) ([]models.OwnershipInterval, error)
	ReplaceTimeline(ctx context.Context, parcelID uuid.UUID, intervals []models.OwnershipInterval) error
	CountByParcel(ctx context.Context, parcelID uuid.UUID) (int, error)
}

// DueStore persists yearly due records. Update performs a compare-and-set on
// the record version and returns ErrVersionConflict when the stored version
// no longer matches.
type DueStore interface {
	Create(ctx context.Context, due models.DueRecord) error
	Find(ctx context.Context, parcelID uuid.UUID, fiscalYear int) (models.DueRecord, error)
	Update(ctx context.Context, due models.DueRecord) error
	ListByYear(ctx context.Context, fiscalYear int) ([]models.DueRecord, error)
	ListByParcel(ctx context.Context, parcelID uuid.UUID) ([]models.DueRecord, error)
	ListPaidBetween(ctx context.Context, from, to time.Time) ([]models.DueRecord, error)
}

// AuditStore persists the append-only compliance trail. Append assigns the
// strictly increasing sequence number. Walk streams every entry exactly once
// in sequence order; it exists so statistics can be reconciled without
// loading the whole trail into memory.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	Recent(ctx context.Context, limit int) ([]models.AuditEntry, error)
	Filter(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
	Walk(ctx context.Context, fn func(models.AuditEntry) error) error
}

// TemplateStore persists notification templates.
type TemplateStore interface {
	Save(ctx context.Context, tmpl models.NotificationTemplate) error
	FindByID(ctx context.Context, id uuid.UUID) (models.NotificationTemplate, error)
	List(ctx context.Context) ([]models.NotificationTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
