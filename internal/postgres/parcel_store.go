package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/store"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// ParcelStore is the PostgreSQL-backed store.ParcelStore.
type ParcelStore struct {
	db *Database
}

// NewParcelStore creates a ParcelStore on the shared pool.
func NewParcelStore(db *Database) *ParcelStore {
	return &ParcelStore{db: db}
}

func (s *ParcelStore) Save(ctx context.Context, parcel models.Parcel) error {
	query := `
		INSERT INTO parcels (id, plot_number, address, area_sotka, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			plot_number = EXCLUDED.plot_number,
			address = EXCLUDED.address,
			area_sotka = EXCLUDED.area_sotka,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`

	_, err := s.db.Pool.Exec(ctx, query,
		parcel.ID, parcel.PlotNumber, parcel.Address, parcel.AreaSotka,
		parcel.CreatedAt, parcel.UpdatedAt, parcel.DeletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("saving parcel %s: %w", parcel.ID, err)
	}
	return nil
}

func (s *ParcelStore) FindByID(ctx context.Context, id uuid.UUID) (models.Parcel, error) {
	query := `
		SELECT id, plot_number, address, area_sotka, created_at, updated_at, deleted_at
		FROM parcels WHERE id = $1`

	var parcel models.Parcel
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&parcel.ID, &parcel.PlotNumber, &parcel.Address, &parcel.AreaSotka,
		&parcel.CreatedAt, &parcel.UpdatedAt, &parcel.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Parcel{}, store.ErrNotFound
		}
		return models.Parcel{}, fmt.Errorf("finding parcel %s: %w", id, err)
	}
	return parcel, nil
}

func (s *ParcelStore) List(ctx context.Context, includeDeleted bool) ([]models.Parcel, error) {
	query := `
		SELECT id, plot_number, address, area_sotka, created_at, updated_at, deleted_at
		FROM parcels`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY plot_number`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing parcels: %w", err)
	}
	defer rows.Close()

	var parcels []models.Parcel
	for rows.Next() {
		var parcel models.Parcel
		if err := rows.Scan(
			&parcel.ID, &parcel.PlotNumber, &parcel.Address, &parcel.AreaSotka,
			&parcel.CreatedAt, &parcel.UpdatedAt, &parcel.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning parcel row: %w", err)
		}
		parcels = append(parcels, parcel)
	}
	return parcels, rows.Err()
}

func (s *ParcelStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM parcels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting parcel %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
