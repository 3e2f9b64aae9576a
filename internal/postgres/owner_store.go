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

// OwnerStore is the PostgreSQL-backed store.OwnerStore.
type OwnerStore struct {
	db *Database
}

// NewOwnerStore creates an OwnerStore on the shared pool.
func NewOwnerStore(db *Database) *OwnerStore {
	return &OwnerStore{db: db}
}

func (s *OwnerStore) Save(ctx context.Context, owner models.Owner) error {
	query := `
		INSERT INTO owners (id, full_name, phone, email, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`

	_, err := s.db.Pool.Exec(ctx, query,
		owner.ID, owner.FullName, owner.Phone, owner.Email,
		owner.CreatedAt, owner.UpdatedAt, owner.DeletedAt)
	if err != nil {
		return fmt.Errorf("saving owner %s: %w", owner.ID, err)
	}
	return nil
}

func (s *OwnerStore) FindByID(ctx context.Context, id uuid.UUID) (models.Owner, error) {
	query := `
		SELECT id, full_name, phone, email, created_at, updated_at, deleted_at
		FROM owners WHERE id = $1`

	var owner models.Owner
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&owner.ID, &owner.FullName, &owner.Phone, &owner.Email,
		&owner.CreatedAt, &owner.UpdatedAt, &owner.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Owner{}, store.ErrNotFound
		}
		return models.Owner{}, fmt.Errorf("finding owner %s: %w", id, err)
	}
	return owner, nil
}

func (s *OwnerStore) List(ctx context.Context, includeDeleted bool) ([]models.Owner, error) {
	query := `
		SELECT id, full_name, phone, email, created_at, updated_at, deleted_at
		FROM owners`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY full_name`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	defer rows.Close()

	var owners []models.Owner
	for rows.Next() {
		var owner models.Owner
		if err := rows.Scan(
			&owner.ID, &owner.FullName, &owner.Phone, &owner.Email,
			&owner.CreatedAt, &owner.UpdatedAt, &owner.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning owner row: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (s *OwnerStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM owners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting owner %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
