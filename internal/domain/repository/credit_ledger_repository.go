package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/domain/model"
)

// CreditLedgerRepository persists tenant credit balances and their
// append-only adjustment history. Mutations lock the balance row and
// append a ledger entry in the same database transaction, so the balance
// invariant holds under concurrent webhook and usage traffic.
type CreditLedgerRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) CreditLedgerRepository

	Get(ctx context.Context, tenantID uuid.UUID) (*model.TenantCreditLedger, error)

	// Init creates the ledger row for a new tenant with the given
	// starting balance. No-op if the ledger already exists.
	Init(ctx context.Context, tenantID uuid.UUID, startCredits int) error

	// Grant atomically adds credits and appends a history entry,
	// creating the ledger lazily on first grant. Amount must be positive.
	Grant(ctx context.Context, tenantID uuid.UUID, credits int, reason model.CreditReason) (*model.TenantCreditLedger, error)

	// Deduct atomically subtracts credits if and only if the balance
	// covers them, appending a negative history entry. Returns
	// InsufficientCreditsError otherwise.
	Deduct(ctx context.Context, tenantID uuid.UUID, credits int) (*model.TenantCreditLedger, error)

	// Zero sets the balance to zero, recording the removed amount as a
	// negative history entry with the given reason.
	Zero(ctx context.Context, tenantID uuid.UUID, reason model.CreditReason) error

	// HasGrantSince reports whether a billing-cycle grant (new
	// subscription, renewal or retry) was recorded at or after the given
	// time. Used to keep the retry-after-failure path idempotent within
	// a billing period.
	HasGrantSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (bool, error)

	ListEntries(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.CreditLedgerEntry, int64, error)
}
