package models

import (
	"encoding/json"
	"time"
)

// AuditAction classifies what a mutation (or externally reported activity)
// did. The send_notification, generate_report and backup values are recorded
// by consumers outside the ledger core through the same trail.
type AuditAction string

const (
	AuditCreate           AuditAction = "create"
	AuditUpdate           AuditAction = "update"
	AuditDelete           AuditAction = "delete"
	AuditSendNotification AuditAction = "send_notification"
	AuditGenerateReport   AuditAction = "generate_report"
	AuditBackup           AuditAction = "backup"
)

// Valid reports whether the action is one of the known values.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditCreate, AuditUpdate, AuditDelete,
		AuditSendNotification, AuditGenerateReport, AuditBackup:
		return true
	}
	return false
}

// AuditEntry is one immutable record in the compliance trail. Seq is assigned
// by the audit store and increases strictly, independent of timestamp ties.
// Before and After hold JSON snapshots of the mutated entity.
type AuditEntry struct {
	Seq           uint64          `gorm:"primaryKey;autoIncrement;column:seq" json:"seq"`
	ActorID       string          `gorm:"size:100;index;column:actor_id" json:"actor_id"`
	Action        AuditAction     `gorm:"size:50;index;not null;column:action" json:"action"`
	EntityType    string          `gorm:"size:100;index;column:entity_type" json:"entity_type"`
	EntityID      string          `gorm:"size:100;column:entity_id" json:"entity_id"`
	Before        json.RawMessage `gorm:"type:jsonb;column:before_state" json:"before,omitempty"`
	After         json.RawMessage `gorm:"type:jsonb;column:after_state" json:"after,omitempty"`
	Timestamp     time.Time       `gorm:"index;not null;column:created_at" json:"timestamp"`
	OriginAddress string          `gorm:"size:64;column:origin_address" json:"origin_address,omitempty"`
}

// TableName specifies the table name in PostgreSQL.
func (AuditEntry) TableName() string {
	return "audit_log"
}

// AuditFilter narrows audit projections. Zero-valued fields are ignored.
type AuditFilter struct {
	ActorID    string
	Action     AuditAction
	EntityType string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// AuditStatistics summarizes the trail: total size, per-action counts and
// the number of entries in the rolling 24-hour window.
type AuditStatistics struct {
	TotalEntries uint64                 `json:"total_entries"`
	Last24h      uint64                 `json:"last_24h"`
	ByAction     map[AuditAction]uint64 `json:"by_action"`
}
