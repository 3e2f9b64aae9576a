package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/obelousov/sntledger/internal/models"
)

// AuditStore is the PostgreSQL-backed store.AuditStore. The sequence number
// comes from the BIGSERIAL primary key, so numbering stays strictly
// increasing across restarts.
type AuditStore struct {
	db *Database
}

// NewAuditStore creates an AuditStore on the shared pool.
func NewAuditStore(db *Database) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log
			(actor_id, action, entity_type, entity_id, before_state, after_state, origin_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`

	err := s.db.Pool.QueryRow(ctx, query,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Before, entry.After, entry.OriginAddress, entry.Timestamp).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (s *AuditStore) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	query := auditSelect + ` ORDER BY seq DESC LIMIT $1`

	rows, err := s.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent audit entries: %w", err)
	}
	defer rows.Close()
	return collectAuditRows(rows)
}

func (s *AuditStore) Filter(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at <= $%d", filter.Until)
	}

	query := auditSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filtering audit entries: %w", err)
	}
	defer rows.Close()
	return collectAuditRows(rows)
}

func (s *AuditStore) Walk(ctx context.Context, fn func(models.AuditEntry) error) error {
	rows, err := s.db.Pool.Query(ctx, auditSelect+` ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("walking audit trail: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return fmt.Errorf("scanning audit row: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

const auditSelect = `
	SELECT seq, actor_id, action, entity_type, entity_id, before_state, after_state, origin_address, created_at
	FROM audit_log`

func collectAuditRows(rows pgx.Rows) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanAudit(row pgx.Row) (models.AuditEntry, error) {
	var entry models.AuditEntry
	err := row.Scan(
		&entry.Seq, &entry.ActorID, &entry.Action, &entry.EntityType, &entry.EntityID,
		&entry.Before, &entry.After, &entry.OriginAddress, &entry.Timestamp)
	return entry, err
}
