package models

import (
	"time"

	"github.com/google/uuid"
)

// Parcel represents a land unit tracked by the community.
// Descriptive fields may be edited after registration; the record itself is
// never hard-deleted while ownership intervals or due records reference it.
type Parcel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PlotNumber string     `gorm:"size:50;uniqueIndex;not null;column:plot_number" json:"plot_number"`
	Address    string     `gorm:"type:text;column:address" json:"address,omitempty"`
	AreaSotka  *float64   `gorm:"column:area_sotka" json:"area_sotka,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt  *time.Time `gorm:"index;column:deleted_at" json:"deleted_at,omitempty"`
}

// TableName specifies the table name in PostgreSQL.
func (Parcel) TableName() string {
	return "parcels"
}

// Deleted reports whether the parcel has been soft-deleted.
func (p Parcel) Deleted() bool {
	return p.DeletedAt != nil
}
