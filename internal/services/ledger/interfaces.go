package ledger

import (
	"context"

	"agropay/internal/models"
)

// Service is the operation layer of the ledger core.
type Service interface {
	Deposit(ctx context.Context, req DepositRequest) (*OperationResult, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*OperationResult, error)
	RepayLoan(ctx context.Context, req RepayLoanRequest) (*RepaymentResult, error)

	CreateEscrow(ctx context.Context, req CreateEscrowRequest) (*EscrowResult, error)
	ReleaseEscrow(ctx context.Context, req EscrowActionRequest) (*EscrowResult, error)
	RefundEscrow(ctx context.Context, req EscrowActionRequest) (*EscrowResult, error)
	GetEscrow(ctx context.Context, escrowID uint) (*models.Escrow, error)

	// Annotation-only transitions: no balances move, the held amount stays
	// frozen pending external resolution.
	MarkEscrowDisputed(ctx context.Context, escrowID uint, reason string, actor Actor) (*models.Escrow, error)
	MarkEscrowCancelled(ctx context.Context, escrowID uint, note string, actor Actor) (*models.Escrow, error)

	MarkLoanDefaulted(ctx context.Context, loanID uint, actor Actor) (*models.CreditEvent, error)
}

// CacheInvalidator drops display-cache entries after a commit. The write path
// never reads the cache, so invalidation is best effort.
type CacheInvalidator interface {
	DeleteWallet(ctx context.Context, ownerID uint) error
}

type noopInvalidator struct{}

func (noopInvalidator) DeleteWallet(context.Context, uint) error { return nil }
