package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the payment provider's subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Scan implements sql.Scanner.
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusPending
	}
	return nil
}

// Value implements driver.Valuer.
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsBillable reports whether the subscription currently entitles usage.
func (s SubscriptionStatus) IsBillable() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Subscription mirrors a payment-provider recurring-billing object for a
// tenant. ProviderSubscriptionID is assigned exactly once, on the first
// confirmation from the provider, and is thereafter the primary lookup
// key; ProviderCustomerID is the fallback key before it is known.
// Subscriptions are never deleted; canceled rows are kept for history.
type Subscription struct {
	ID                     int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID               uuid.UUID          `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID                 *uuid.UUID         `gorm:"type:uuid" json:"user_id,omitempty"`
	PlanID                 int64              `gorm:"not null;index" json:"plan_id"`
	ProviderCustomerID     string             `gorm:"column:provider_customer_id;not null;size:100;index" json:"provider_customer_id"`
	ProviderSubscriptionID *string            `gorm:"column:provider_subscription_id;unique;size:100" json:"provider_subscription_id,omitempty"`
	Status                 SubscriptionStatus `gorm:"type:subscription_status;not null;default:'pending'" json:"status"`
	CurrentPeriodStart     time.Time          `json:"current_period_start"`
	CurrentPeriodEnd       time.Time          `json:"current_period_end"`

	// CreditsGranted marks whether the plan allotment has been granted
	// for the current billing cycle.
	CreditsGranted bool `gorm:"default:false" json:"credits_granted"`

	CancelAtPeriodEnd bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CancelAt          *time.Time `json:"cancel_at,omitempty"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`

	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`

	// Relations
	Plan *Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// TableName specifies the table name for GORM.
func (Subscription) TableName() string {
	return "subscriptions"
}
