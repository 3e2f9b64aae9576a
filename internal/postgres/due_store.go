package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/store"
)

// DueStore is the PostgreSQL-backed store.DueStore. Update is an optimistic
// compare-and-set on the version column.
type DueStore struct {
	db *Database
}

// NewDueStore creates a DueStore on the shared pool.
func NewDueStore(db *Database) *DueStore {
	return &DueStore{db: db}
}

func (s *DueStore) Create(ctx context.Context, due models.DueRecord) error {
	query := `
		INSERT INTO due_records
			(id, parcel_id, fiscal_year, amount, amount_paid, status, paid_date, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.Pool.Exec(ctx, query,
		due.ID, due.ParcelID, due.FiscalYear, due.Amount, due.AmountPaid,
		due.Status, due.PaidDate, due.Version, due.CreatedAt, due.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("creating due record %s: %w", due.ID, err)
	}
	return nil
}

func (s *DueStore) Find(ctx context.Context, parcelID uuid.UUID, fiscalYear int) (models.DueRecord, error) {
	query := dueSelect + ` WHERE parcel_id = $1 AND fiscal_year = $2`

	due, err := scanDue(s.db.Pool.QueryRow(ctx, query, parcelID, fiscalYear))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DueRecord{}, store.ErrNotFound
		}
		return models.DueRecord{}, fmt.Errorf("finding due for parcel %s year %d: %w", parcelID, fiscalYear, err)
	}
	return due, nil
}

func (s *DueStore) Update(ctx context.Context, due models.DueRecord) error {
	// The WHERE clause pins the version read by the caller; zero rows
	// affected means somebody else won the race.
	query := `
		UPDATE due_records SET
			amount = $1,
			amount_paid = $2,
			status = $3,
			paid_date = $4,
			version = version + 1,
			updated_at = $5
		WHERE id = $6 AND version = $7`

	tag, err := s.db.Pool.Exec(ctx, query,
		due.Amount, due.AmountPaid, due.Status, due.PaidDate,
		due.UpdatedAt, due.ID, due.Version)
	if err != nil {
		return fmt.Errorf("updating due record %s: %w", due.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrVersionConflict
	}
	return nil
}

func (s *DueStore) ListByYear(ctx context.Context, fiscalYear int) ([]models.DueRecord, error) {
	query := dueSelect + ` WHERE fiscal_year = $1 ORDER BY fiscal_year, parcel_id`
	return s.queryDues(ctx, query, fiscalYear)
}

func (s *DueStore) ListByParcel(ctx context.Context, parcelID uuid.UUID) ([]models.DueRecord, error) {
	query := dueSelect + ` WHERE parcel_id = $1 ORDER BY fiscal_year`
	return s.queryDues(ctx, query, parcelID)
}

func (s *DueStore) ListPaidBetween(ctx context.Context, from, to time.Time) ([]models.DueRecord, error) {
	query := dueSelect + `
		WHERE paid_date IS NOT NULL AND paid_date >= $1 AND paid_date <= $2
		ORDER BY paid_date, parcel_id`
	return s.queryDues(ctx, query, from, to)
}

const dueSelect = `
	SELECT id, parcel_id, fiscal_year, amount, amount_paid, status, paid_date, version, created_at, updated_at
	FROM due_records`

func (s *DueStore) queryDues(ctx context.Context, query string, args ...interface{}) ([]models.DueRecord, error) {
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying due records: %w", err)
	}
	defer rows.Close()

	var dues []models.DueRecord
	for rows.Next() {
		due, err := scanDue(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning due record row: %w", err)
		}
		dues = append(dues, due)
	}
	return dues, rows.Err()
}

func scanDue(row pgx.Row) (models.DueRecord, error) {
	var due models.DueRecord
	err := row.Scan(
		&due.ID, &due.ParcelID, &due.FiscalYear, &due.Amount, &due.AmountPaid,
		&due.Status, &due.PaidDate, &due.Version, &due.CreatedAt, &due.UpdatedAt)
	if err != nil {
		return models.DueRecord{}, err
	}
	if due.PaidDate != nil {
		paid := models.DateOnly(*due.PaidDate)
		due.PaidDate = &paid
	}
	return due, nil
}
