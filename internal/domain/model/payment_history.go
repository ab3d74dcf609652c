package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the outcome of a single invoice payment attempt.
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

// Scan implements sql.Scanner.
func (p *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*p = PaymentStatus(v)
	case []byte:
		*p = PaymentStatus(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer.
func (p PaymentStatus) Value() (driver.Value, error) {
	return string(p), nil
}

// PaymentHistoryEntry is an append-only record of one observed invoice
// payment attempt. It doubles as the idempotency source of truth: a paid
// entry for an invoice ref means that invoice has been processed, and a
// failed entry followed by a paid one for the same ref marks a retry.
type PaymentHistoryEntry struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SubscriptionID    int64           `gorm:"not null;index" json:"subscription_id"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProviderInvoiceID string          `gorm:"column:provider_invoice_id;not null;size:100;index" json:"provider_invoice_id"`
	ProviderPaymentID string          `gorm:"column:provider_payment_id;size:100" json:"provider_payment_id"`
	Status            PaymentStatus   `gorm:"type:payment_status;not null" json:"status"`
	AmountPaid        decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"amount_paid"`
	AmountDue         decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"amount_due"`
	Currency          string          `gorm:"size:10;default:'usd'" json:"currency"`
	IsRetry           bool            `gorm:"default:false" json:"is_retry"`
	FailureReason     *string         `json:"failure_reason,omitempty"`
	InvoicePDFURL     string          `gorm:"size:500" json:"invoice_pdf_url,omitempty"`
	HostedInvoiceURL  string          `gorm:"size:500" json:"hosted_invoice_url,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	FailedAt          *time.Time      `json:"failed_at,omitempty"`
	CreatedAt         time.Time       `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (PaymentHistoryEntry) TableName() string {
	return "payment_history"
}
