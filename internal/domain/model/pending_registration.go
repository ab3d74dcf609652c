package model

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus tracks a pending registration's lifecycle.
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusCompleted RegistrationStatus = "completed"
)

// PendingRegistration holds signup details captured before checkout.
// The checkout-completed webhook finalizes it into a tenant and user.
type PendingRegistration struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string             `gorm:"not null;size:255" json:"email"`
	TenantName  string             `gorm:"not null;size:200" json:"tenant_name"`
	UserName    string             `gorm:"size:200" json:"user_name"`
	PlanID      int64              `gorm:"not null" json:"plan_id"`
	Status      RegistrationStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	CreatedAt   time.Time          `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (PendingRegistration) TableName() string {
	return "pending_registrations"
}
