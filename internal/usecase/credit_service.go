package usecase

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stitchlane/billing-service/internal/domain/model"
	"github.com/stitchlane/billing-service/internal/domain/repository"
	"github.com/stitchlane/billing-service/internal/notify"
)

// CreditService exposes the tenant credit ledger to API consumers.
// Balance mutations delegate to the repository, which locks the balance
// row and appends the history entry atomically.
type CreditService struct {
	creditLedger repository.CreditLedgerRepository
	dispatcher   notify.Dispatcher
	warningRatio float64
	logger       *zap.Logger
}

// NewCreditService creates a new credit service. warningRatio is the
// fraction of the starting balance below which a low-balance warning is
// dispatched; zero disables the warning.
func NewCreditService(
	creditLedger repository.CreditLedgerRepository,
	dispatcher notify.Dispatcher,
	warningRatio float64,
	logger *zap.Logger,
) *CreditService {
	return &CreditService{
		creditLedger: creditLedger,
		dispatcher:   dispatcher,
		warningRatio: warningRatio,
		logger:       logger,
	}
}

// GetBalance returns the tenant's current ledger state.
func (s *CreditService) GetBalance(ctx context.Context, tenantID uuid.UUID) (*model.TenantCreditLedger, error) {
	return s.creditLedger.Get(ctx, tenantID)
}

// GetHistory returns a page of the tenant's ledger entries, newest first.
func (s *CreditService) GetHistory(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]model.CreditLedgerEntry, int64, error) {
	return s.creditLedger.ListEntries(ctx, tenantID, limit, offset)
}

// GrantCredits adds credits to the tenant's balance.
func (s *CreditService) GrantCredits(ctx context.Context, tenantID uuid.UUID, credits int, reason model.CreditReason) (*model.TenantCreditLedger, error) {
	return s.creditLedger.Grant(ctx, tenantID, credits, reason)
}

// DeductCredits consumes credits from the tenant's balance. When the
// remaining balance crosses below the warning threshold a low-balance
// notification is dispatched; notification failures never fail the
// deduction.
func (s *CreditService) DeductCredits(ctx context.Context, tenantID uuid.UUID, credits int) (*model.TenantCreditLedger, error) {
	ledger, err := s.creditLedger.Deduct(ctx, tenantID, credits)
	if err != nil {
		return nil, err
	}

	if threshold := s.threshold(ledger.StartCredits); threshold > 0 && ledger.Credits < threshold {
		s.dispatcher.LowCredits(ctx, notify.CreditNotice{
			TenantID:  tenantID,
			Credits:   ledger.Credits,
			Threshold: threshold,
		})
		s.logger.Info("Low credit balance",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("credits", ledger.Credits),
			zap.Int("threshold", threshold))
	}
	return ledger, nil
}

func (s *CreditService) threshold(startCredits int) int {
	if s.warningRatio <= 0 || startCredits <= 0 {
		return 0
	}
	return int(math.Floor(float64(startCredits) * s.warningRatio))
}
