package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a purchasable tier with a fixed price and credit allotment.
// Plans are immutable once referenced by an active subscription; price
// changes create a new provider price reference. Plans are soft-deleted,
// never removed, while any subscription still points at them.
type Plan struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string          `gorm:"not null;size:200" json:"name"`
	Price             decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	Currency          string          `gorm:"not null;size:10;default:'usd'" json:"currency"`
	Credits           int             `gorm:"not null" json:"credits"`
	ProviderPriceID   string          `gorm:"column:provider_price_id;unique;not null;size:100" json:"provider_price_id"`
	ProviderProductID string          `gorm:"column:provider_product_id;size:100" json:"provider_product_id"`
	IsActive          bool            `gorm:"default:true" json:"is_active"`
	IsDeleted         bool            `gorm:"default:false" json:"is_deleted"`
	CreatedAt         time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Plan) TableName() string {
	return "plans"
}
