package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stitchlane/billing-service/internal/domain/model"
)

// PaymentHistoryRepository persists the append-only payment attempt log.
type PaymentHistoryRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) PaymentHistoryRepository

	Create(ctx context.Context, entry *model.PaymentHistoryEntry) error

	// CountPaid counts successful payment entries for a subscription.
	CountPaid(ctx context.Context, subscriptionID int64) (int64, error)

	// HasPaidEntry reports whether a paid entry already exists for the
	// given invoice ref. This is the invoice-level idempotency key.
	HasPaidEntry(ctx context.Context, subscriptionID int64, providerInvoiceID string) (bool, error)

	// HasFailedEntry reports whether a failed entry exists for the given
	// invoice ref, marking a subsequent payment as a retry.
	HasFailedEntry(ctx context.Context, subscriptionID int64, providerInvoiceID string) (bool, error)

	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.PaymentHistoryEntry, int64, error)
}
