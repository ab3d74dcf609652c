package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// CreditReason classifies a ledger adjustment.
type CreditReason string

const (
	CreditReasonNewSubscription   CreditReason = "new_subscription"
	CreditReasonRenewal           CreditReason = "renewal"
	CreditReasonRetryAfterFailure CreditReason = "retry_after_failure"
	CreditReasonUpgrade           CreditReason = "upgrade"
	CreditReasonTrialConverted    CreditReason = "trial_converted"
	CreditReasonUsage             CreditReason = "usage"
	CreditReasonCancellation      CreditReason = "cancellation"
)

// GrantReasons are the reasons that count as a billing-cycle grant when
// checking whether credits were already granted this period.
var GrantReasons = []CreditReason{
	CreditReasonNewSubscription,
	CreditReasonRenewal,
	CreditReasonRetryAfterFailure,
	CreditReasonTrialConverted,
}

// Scan implements sql.Scanner.
func (r *CreditReason) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*r = CreditReason(v)
	case []byte:
		*r = CreditReason(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer.
func (r CreditReason) Value() (driver.Value, error) {
	return string(r), nil
}

// TenantCreditLedger is the mutable per-tenant credit balance. Invariant:
// Credits always equals StartCredits plus the sum of CreditLedgerEntry
// adjustments for the tenant, and never drops below zero.
type TenantCreditLedger struct {
	TenantID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	Credits          int          `gorm:"not null;default:0" json:"credits"`
	StartCredits     int          `gorm:"not null;default:0" json:"start_credits"`
	LastUpdated      time.Time    `json:"last_updated"`
	LastUpdateReason CreditReason `gorm:"size:50" json:"last_update_reason"`
	CreatedAt        time.Time    `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (TenantCreditLedger) TableName() string {
	return "tenant_credit_ledgers"
}

// CreditLedgerEntry is one append-only adjustment in a tenant's ledger
// history. CreditsAdded is negative for deductions.
type CreditLedgerEntry struct {
	ID           int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID     uuid.UUID    `gorm:"type:uuid;not null;index:idx_ledger_entries_tenant_created" json:"tenant_id"`
	CreditsAdded int          `gorm:"not null" json:"credits_added"`
	Reason       CreditReason `gorm:"size:50;not null" json:"reason"`
	BalanceAfter int          `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time    `gorm:"default:now();index:idx_ledger_entries_tenant_created" json:"date"`
}

// TableName specifies the table name for GORM.
func (CreditLedgerEntry) TableName() string {
	return "credit_ledger_entries"
}
