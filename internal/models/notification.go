package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationChannel is the transport a message goes out on.
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "email"
	ChannelTelegram NotificationChannel = "telegram"
)

// NotificationTemplate is an operator-managed message template. The body may
// reference {{owner_name}}, {{plot_number}}, {{year}} and {{amount}};
// unknown placeholders are passed through verbatim.
type NotificationTemplate struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string              `gorm:"size:100;not null;column:name" json:"name"`
	Channel   NotificationChannel `gorm:"size:20;not null;column:channel" json:"channel"`
	Subject   string              `gorm:"size:255;column:subject" json:"subject,omitempty"`
	Body      string              `gorm:"type:text;not null;column:body" json:"body"`
	CreatedAt time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name in PostgreSQL.
func (NotificationTemplate) TableName() string {
	return "notification_templates"
}

// Recipient is a resolved notification target: the current owner of a parcel
// that still owes for the fiscal year. When neither contact channel is
// available the recipient is kept in the set with Excluded set, so callers
// can report it instead of silently dropping it.
type Recipient struct {
	ParcelID      uuid.UUID           `json:"parcel_id"`
	PlotNumber    string              `json:"plot_number"`
	OwnerID       uuid.UUID           `json:"owner_id"`
	OwnerName     string              `json:"owner_name"`
	Channel       NotificationChannel `json:"channel,omitempty"`
	Address       string              `json:"address,omitempty"`
	FiscalYear    int                 `json:"fiscal_year"`
	AmountDue     int64               `json:"amount_due"`
	Excluded      bool                `json:"excluded"`
	ExcludeReason string              `json:"exclude_reason,omitempty"`
}

// DispatchOutcome is the per-recipient result of a bulk send.
type DispatchOutcome struct {
	Recipient Recipient `json:"recipient"`
	Sent      bool      `json:"sent"`
	Reason    string    `json:"reason,omitempty"`
}

// DispatchReport aggregates a bulk send. A single failed recipient never
// fails the batch; it only shows up here.
type DispatchReport struct {
	Sent     int               `json:"sent"`
	Total    int               `json:"total"`
	Outcomes []DispatchOutcome `json:"outcomes"`
}
