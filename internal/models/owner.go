package models

import (
	"time"

	"github.com/google/uuid"
)

// Owner represents a person who owns (or used to own) one or more parcels.
// Phone doubles as the Telegram chat identifier for notifications, matching
// how the community stores contact details.
type Owner struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName  string     `gorm:"size:255;index;not null;column:full_name" json:"full_name"`
	Phone     string     `gorm:"size:20;column:phone" json:"phone,omitempty"`
	Email     string     `gorm:"size:255;column:email" json:"email,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index;column:deleted_at" json:"deleted_at,omitempty"`
}

// TableName specifies the table name in PostgreSQL.
func (Owner) TableName() string {
	return "owners"
}

// Deleted reports whether the owner has been soft-deleted.
func (o Owner) Deleted() bool {
	return o.DeletedAt != nil
}

// HasContact reports whether at least one notification channel is available.
func (o Owner) HasContact() bool {
	return o.Email != "" || o.Phone != ""
}
