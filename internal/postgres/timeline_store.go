package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/store"
)

// TimelineStore is the PostgreSQL-backed store.TimelineStore. ReplaceTimeline
// runs as a single transaction so the parcel's interval set is swapped
// all-or-nothing.
type TimelineStore struct {
	db *Database
}

// NewTimelineStore creates a TimelineStore on the shared pool.
func NewTimelineStore(db *Database) *TimelineStore {
	return &TimelineStore{db: db}
}

func (s *TimelineStore) FindByID(ctx context.Context, intervalID uuid.UUID) (models.OwnershipInterval, error) {
	query := `
		SELECT id, parcel_id, owner_id, start_date, end_date, created_at
		FROM ownership_intervals WHERE id = $1`

	interval, err := scanInterval(s.db.Pool.QueryRow(ctx, query, intervalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OwnershipInterval{}, store.ErrNotFound
		}
		return models.OwnershipInterval{}, fmt.Errorf("finding interval %s: %w", intervalID, err)
	}
	return interval, nil
}

func (s *TimelineStore) ListByParcel(ctx context.Context, parcelID uuid.UUID) ([]models.OwnershipInterval, error) {
	query := `
		SELECT id, parcel_id, owner_id, start_date, end_date, created_at
		FROM ownership_intervals
		WHERE parcel_id = $1
		ORDER BY start_date, created_at`

	rows, err := s.db.Pool.Query(ctx, query, parcelID)
	if err != nil {
		return nil, fmt.Errorf("listing intervals for parcel %s: %w", parcelID, err)
	}
	defer rows.Close()

	var intervals []models.OwnershipInterval
	for rows.Next() {
		interval, err := scanInterval(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning interval row: %w", err)
		}
		intervals = append(intervals, interval)
	}
	return intervals, rows.Err()
}

func (s *TimelineStore) ReplaceTimeline(ctx context.Context, parcelID uuid.UUID, intervals []models.OwnershipInterval) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning timeline transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ownership_intervals WHERE parcel_id = $1`, parcelID); err != nil {
		return fmt.Errorf("clearing timeline for parcel %s: %w", parcelID, err)
	}

	for _, interval := range intervals {
		_, err := tx.Exec(ctx, `
			INSERT INTO ownership_intervals (id, parcel_id, owner_id, start_date, end_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			interval.ID, interval.ParcelID, interval.OwnerID,
			interval.StartDate, interval.EndDate, interval.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting interval %s: %w", interval.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing timeline for parcel %s: %w", parcelID, err)
	}
	return nil
}

func (s *TimelineStore) CountByParcel(ctx context.Context, parcelID uuid.UUID) (int, error) {
	var count int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ownership_intervals WHERE parcel_id = $1`, parcelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting intervals for parcel %s: %w", parcelID, err)
	}
	return count, nil
}

// scanInterval reads one interval row, normalizing DATE columns to UTC
// midnight so comparisons behave the same as with the in-memory store.
func scanInterval(row pgx.Row) (models.OwnershipInterval, error) {
	var interval models.OwnershipInterval
	err := row.Scan(
		&interval.ID, &interval.ParcelID, &interval.OwnerID,
		&interval.StartDate, &interval.EndDate, &interval.CreatedAt)
	if err != nil {
		return models.OwnershipInterval{}, err
	}
	interval.StartDate = models.DateOnly(interval.StartDate)
	if interval.EndDate != nil {
		end := models.DateOnly(*interval.EndDate)
		interval.EndDate = &end
	}
	return interval, nil
}
