package repositories

import (
	"context"

	"agropay/internal/models"
)

// LedgerRepository is the write path of the ledger. All balance mutation goes
// through WithinTransaction, which opens a SERIALIZABLE database transaction
// and hands the callback a repository bound to it. LockWallet takes the
// exclusive row lock; UpdateWalletVersioned performs the version-checked
// update and reports ErrVersionConflict on a lost race.
type LedgerRepository interface {
	WithinTransaction(ctx context.Context, fn func(LedgerRepository) error) error

	GetWallet(ctx context.Context, walletID uint) (*models.Wallet, error)
	LockWallet(ctx context.Context, walletID uint) (*models.Wallet, error)
	UpdateWalletVersioned(ctx context.Context, wallet *models.Wallet) error

	CreateAuditLog(ctx context.Context, entry *models.WalletAuditLog) error

	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)

	CreateEscrow(ctx context.Context, escrow *models.Escrow) error
	GetEscrowByID(ctx context.Context, id uint) (*models.Escrow, error)
	GetEscrowByOrderID(ctx context.Context, orderID uint) (*models.Escrow, error)
	// TransitionEscrow updates an escrow guarded by its current status; it
	// reports ErrEscrowStateConflict when the row is no longer in `from`.
	TransitionEscrow(ctx context.Context, escrowID uint, from string, updates map[string]interface{}) error

	GetLoanForUpdate(ctx context.Context, loanID uint) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error

	CreateCreditEvent(ctx context.Context, event *models.CreditEvent) error
}
