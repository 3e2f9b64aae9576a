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

// TemplateStore is the PostgreSQL-backed store.TemplateStore.
type TemplateStore struct {
	db *Database
}

// NewTemplateStore creates a TemplateStore on the shared pool.
func NewTemplateStore(db *Database) *TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) Save(ctx context.Context, tmpl models.NotificationTemplate) error {
	query := `
		INSERT INTO notification_templates (id, name, channel, subject, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			channel = EXCLUDED.channel,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Pool.Exec(ctx, query,
		tmpl.ID, tmpl.Name, tmpl.Channel, tmpl.Subject, tmpl.Body,
		tmpl.CreatedAt, tmpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving template %s: %w", tmpl.ID, err)
	}
	return nil
}

func (s *TemplateStore) FindByID(ctx context.Context, id uuid.UUID) (models.NotificationTemplate, error) {
	query := `
		SELECT id, name, channel, subject, body, created_at, updated_at
		FROM notification_templates WHERE id = $1`

	var tmpl models.NotificationTemplate
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&tmpl.ID, &tmpl.Name, &tmpl.Channel, &tmpl.Subject, &tmpl.Body,
		&tmpl.CreatedAt, &tmpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.NotificationTemplate{}, store.ErrNotFound
		}
		return models.NotificationTemplate{}, fmt.Errorf("finding template %s: %w", id, err)
	}
	return tmpl, nil
}

func (s *TemplateStore) List(ctx context.Context) ([]models.NotificationTemplate, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, name, channel, subject, body, created_at, updated_at
		FROM notification_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []models.NotificationTemplate
	for rows.Next() {
		var tmpl models.NotificationTemplate
		if err := rows.Scan(
			&tmpl.ID, &tmpl.Name, &tmpl.Channel, &tmpl.Subject, &tmpl.Body,
			&tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning template row: %w", err)
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

func (s *TemplateStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM notification_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
