package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/metrics"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/store"
)

// Fiscal year sanity bounds. The community predates neither electricity nor
// this software by that much.
const (
	minFiscalYear = 1990
	maxFiscalYear = 2100
)

// DuesService maintains the yearly due record per parcel: exactly one per
// (parcel, fiscal year), assessed once, corrected rather than deleted.
type DuesService interface {
	// AssessDue creates the year's due record in not_paid status. Returns
	// ErrAlreadyAssessed when one exists for the (parcel, year) pair.
	AssessDue(ctx context.Context, parcelID uuid.UUID, fiscalYear int, amount int64) (models.DueRecord, error)

	// AssessYear batch-assesses every active parcel that has no record for
	// the year yet; parcels already assessed are skipped, not failed.
	// Returns the number of records created.
	AssessYear(ctx context.Context, fiscalYear int, amount int64) (int, error)

	// RecordPayment records the total amount paid toward the year's due and
	// rederives the status. Recording the identical (amountPaid, paidDate)
	// again is a no-op that produces no additional audit entry.
	RecordPayment(ctx context.Context, parcelID uuid.UUID, fiscalYear int, amountPaid int64, paidDate time.Time) (models.DueRecord, error)

	// StatusOf returns the due record, or ErrNotAssessed.
	StatusOf(ctx context.Context, parcelID uuid.UUID, fiscalYear int) (models.DueRecord, error)

	// AllForYear returns the year's records in deterministic order.
	AllForYear(ctx context.Context, fiscalYear int) ([]models.DueRecord, error)
}

type duesService struct {
	parcels store.ParcelStore
	dues    store.DueStore
	locks   *store.ParcelLocks
	audit   AuditService
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewDuesService creates a DuesService.
func NewDuesService(
	parcels store.ParcelStore,
	dues store.DueStore,
	locks *store.ParcelLocks,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
) DuesService {
	return &duesService{
		parcels: parcels,
		dues:    dues,
		locks:   locks,
		audit:   audit,
		metrics: m,
		log:     log,
	}
}

func (s *duesService) AssessDue(ctx context.Context, parcelID uuid.UUID, fiscalYear int, amount int64) (models.DueRecord, error) {
	if err := validateYear(fiscalYear); err != nil {
		return models.DueRecord{}, err
	}
	if amount <= 0 {
		return models.DueRecord{}, fmt.Errorf("%w: assessment amount must be positive, got %d", ErrInvalidAmount, amount)
	}

	parcel, err := s.parcels.FindByID(ctx, parcelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DueRecord{}, ErrParcelNotFound
		}
		return models.DueRecord{}, fmt.Errorf("failed to load parcel: %w", err)
	}
	if parcel.Deleted() {
		return models.DueRecord{}, ErrParcelNotFound
	}

	unlock := s.locks.Lock(parcelID)
	defer unlock()

	now := time.Now().UTC()
	due := models.DueRecord{
		ID:         uuid.New(),
		ParcelID:   parcelID,
		FiscalYear: fiscalYear,
		Amount:     amount,
		Status:     models.DueNotPaid,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.dues.Create(ctx, due); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return models.DueRecord{}, fmt.Errorf("%w: parcel %s, year %d", ErrAlreadyAssessed, parcel.PlotNumber, fiscalYear)
		}
		return models.DueRecord{}, fmt.Errorf("failed to create due record: %w", err)
	}

	s.log.Info("Due assessed", map[string]interface{}{
		"parcel_id":   parcelID.String(),
		"fiscal_year": fiscalYear,
		"amount":      amount,
	})
	s.audit.Record(ctx, models.AuditCreate, "due_record", due.ID.String(), nil, due)
	s.metrics.IncrementDuesAssessed()
	return due, nil
}

func (s *duesService) AssessYear(ctx context.Context, fiscalYear int, amount int64) (int, error) {
	if err := validateYear(fiscalYear); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: assessment amount must be positive, got %d", ErrInvalidAmount, amount)
	}

	parcels, err := s.parcels.List(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list parcels: %w", err)
	}

	created := 0
	for _, parcel := range parcels {
		_, err := s.AssessDue(ctx, parcel.ID, fiscalYear, amount)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrAlreadyAssessed):
			continue
		default:
			return created, fmt.Errorf("failed to assess parcel %s: %w", parcel.PlotNumber, err)
		}
	}

	s.log.Info("Batch assessment finished", map[string]interface{}{
		"fiscal_year": fiscalYear,
		"created":     created,
		"parcels":     len(parcels),
	})
	return created, nil
}

func (s *duesService) RecordPayment(ctx context.Context, parcelID uuid.UUID, fiscalYear int, amountPaid int64, paidDate time.Time) (models.DueRecord, error) {
	if amountPaid < 0 {
		return models.DueRecord{}, fmt.Errorf("%w: paid amount must not be negative, got %d", ErrInvalidAmount, amountPaid)
	}

	unlock := s.locks.Lock(parcelID)
	defer unlock()

	due, err := s.dues.Find(ctx, parcelID, fiscalYear)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DueRecord{}, fmt.Errorf("%w: parcel %s, year %d", ErrDueNotFound, parcelID, fiscalYear)
		}
		return models.DueRecord{}, fmt.Errorf("failed to load due record: %w", err)
	}

	before := due
	due.AmountPaid = amountPaid
	due.Status = models.DeriveStatus(due.Amount, amountPaid)
	if amountPaid > 0 {
		day := models.DateOnly(paidDate)
		due.PaidDate = &day
	} else {
		due.PaidDate = nil
	}

	// Idempotence: identical payment state means nothing to commit and no
	// second audit entry.
	if paymentStateEqual(before, due) {
		return before, nil
	}

	due.UpdatedAt = time.Now().UTC()
	if err := s.dues.Update(ctx, due); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return models.DueRecord{}, fmt.Errorf("%w: due record for parcel %s year %d", ErrConflict, parcelID, fiscalYear)
		}
		return models.DueRecord{}, fmt.Errorf("failed to update due record: %w", err)
	}
	due.Version++

	s.log.Info("Payment recorded", map[string]interface{}{
		"parcel_id":   parcelID.String(),
		"fiscal_year": fiscalYear,
		"amount_paid": amountPaid,
		"status":      string(due.Status),
	})
	s.audit.Record(ctx, models.AuditUpdate, "due_record", due.ID.String(), before, due)
	s.metrics.IncrementPaymentsRecorded()
	return due, nil
}

func (s *duesService) StatusOf(ctx context.Context, parcelID uuid.UUID, fiscalYear int) (models.DueRecord, error) {
	due, err := s.dues.Find(ctx, parcelID, fiscalYear)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DueRecord{}, fmt.Errorf("%w: parcel %s, year %d", ErrNotAssessed, parcelID, fiscalYear)
		}
		return models.DueRecord{}, fmt.Errorf("failed to load due record: %w", err)
	}
	return due, nil
}

func (s *duesService) AllForYear(ctx context.Context, fiscalYear int) ([]models.DueRecord, error) {
	dues, err := s.dues.ListByYear(ctx, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list dues for year %d: %w", fiscalYear, err)
	}
	return dues, nil
}

func validateYear(fiscalYear int) error {
	if fiscalYear < minFiscalYear || fiscalYear > maxFiscalYear {
		return fmt.Errorf("%w: fiscal year must be between %d and %d, got %d",
			ErrInvalidInput, minFiscalYear, maxFiscalYear, fiscalYear)
	}
	return nil
}

// paymentStateEqual compares the payment-relevant fields of two records.
func paymentStateEqual(a, b models.DueRecord) bool {
	if a.AmountPaid != b.AmountPaid || a.Status != b.Status {
		return false
	}
	if (a.PaidDate == nil) != (b.PaidDate == nil) {
		return false
	}
	if a.PaidDate != nil && !a.PaidDate.Equal(*b.PaidDate) {
		return false
	}
	return true
}
