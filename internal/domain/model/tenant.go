package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the billing unit that owns a subscription and a credit
// balance. SubscriptionID points at the current subscription and is
// detached on cancellation; the subscription row itself is retained.
type Tenant struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name               string     `gorm:"not null;size:200" json:"name"`
	Email              string     `gorm:"size:255;index" json:"email"`
	ProviderCustomerID string     `gorm:"column:provider_customer_id;size:100;index" json:"provider_customer_id,omitempty"`
	SubscriptionID     *int64     `json:"subscription_id,omitempty"`
	AutoRenew          bool       `gorm:"default:true" json:"auto_renew"`
	CreatedAt          time.Time  `gorm:"default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Tenant) TableName() string {
	return "tenants"
}

// User belongs to a tenant. Email is indexed for the webhook repair path,
// which reverse-looks-up the owning tenant via the provider customer's
// email address.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Email     string    `gorm:"not null;size:255;index" json:"email"`
	Name      string    `gorm:"size:200" json:"name"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
