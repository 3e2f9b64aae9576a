package postgres

import (
	"context"
	"fmt"
)

// schema is applied on startup. Statements are idempotent so repeated boots
// against the same database are safe; real migrations would replace this
// once the schema starts evolving between releases.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS parcels (
		id UUID PRIMARY KEY,
		plot_number VARCHAR(50) NOT NULL,
		address VARCHAR(255) NOT NULL DEFAULT '',
		area_sotka DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_parcels_plot_number
		ON parcels (plot_number) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS owners (
		id UUID PRIMARY KEY,
		full_name VARCHAR(255) NOT NULL,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_owners_full_name ON owners (full_name)`,

	`CREATE TABLE IF NOT EXISTS ownership_intervals (
		id UUID PRIMARY KEY,
		parcel_id UUID NOT NULL REFERENCES parcels (id),
		owner_id UUID NOT NULL REFERENCES owners (id),
		start_date DATE NOT NULL,
		end_date DATE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ownership_intervals_parcel
		ON ownership_intervals (parcel_id, start_date)`,

	`CREATE TABLE IF NOT EXISTS due_records (
		id UUID PRIMARY KEY,
		parcel_id UUID NOT NULL REFERENCES parcels (id),
		fiscal_year INT NOT NULL,
		amount BIGINT NOT NULL,
		amount_paid BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		paid_date DATE,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (parcel_id, fiscal_year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_due_records_year ON due_records (fiscal_year)`,
	`CREATE INDEX IF NOT EXISTS idx_due_records_paid_date
		ON due_records (paid_date) WHERE paid_date IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		seq BIGSERIAL PRIMARY KEY,
		actor_id VARCHAR(255) NOT NULL,
		action VARCHAR(50) NOT NULL,
		entity_type VARCHAR(100) NOT NULL,
		entity_id VARCHAR(255) NOT NULL,
		before_state JSONB,
		after_state JSONB,
		origin_address VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_actor ON audit_log (actor_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log (created_at)`,

	`CREATE TABLE IF NOT EXISTS notification_templates (
		id UUID PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		channel VARCHAR(20) NOT NULL,
		subject VARCHAR(255) NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the ledger schema when it does not exist yet.
func (db *Database) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}
	return nil
}
