package ledger

import (
	"time"

	"agropay/internal/models"

	"github.com/shopspring/decimal"
)

// Actor identifies who triggered an operation; recorded on every transaction
// and audit row.
type Actor struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
	IP   string `json:"ip"`
}

// Config holds the operation-layer knobs. Zero values are replaced with
// defaults by NewService.
type Config struct {
	TxTimeout              time.Duration
	VersionConflictRetries int
	VersionConflictBackoff time.Duration
}

// DepositRequest credits a wallet.
type DepositRequest struct {
	WalletID       uint
	Amount         decimal.Decimal
	Description    string
	DescriptionSw  string
	IdempotencyKey *string
	Actor          Actor
}

// WithdrawRequest debits a wallet, subject to all three limits.
type WithdrawRequest struct {
	WalletID       uint
	Amount         decimal.Decimal
	Description    string
	DescriptionSw  string
	IdempotencyKey *string
	PinVerified    bool
	Actor          Actor
}

// RepayLoanRequest settles part or all of an active loan from the wallet.
type RepayLoanRequest struct {
	WalletID       uint
	LoanID         uint
	Amount         decimal.Decimal
	IdempotencyKey *string
	PinVerified    bool
	Actor          Actor
}

// CreateEscrowRequest holds buyer funds against an order.
type CreateEscrowRequest struct {
	OrderID        uint
	BuyerWalletID  uint
	SellerWalletID uint
	Amount         decimal.Decimal
	Notes          string
	IdempotencyKey *string
	PinVerified    bool
	Actor          Actor
}

// EscrowActionRequest targets an existing escrow (release or refund).
type EscrowActionRequest struct {
	EscrowID       uint
	IdempotencyKey *string
	Actor          Actor
}

// OperationResult is returned by single-wallet operations. Wallet is the
// committed post-state; Duplicate marks an idempotent replay.
type OperationResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Wallet      *models.Wallet      `json:"wallet"`
	Duplicate   bool                `json:"duplicate"`
}

// RepaymentResult extends OperationResult with the loan and credit event.
type RepaymentResult struct {
	OperationResult
	Loan        *models.Loan        `json:"loan"`
	CreditEvent *models.CreditEvent `json:"credit_event,omitempty"`
}

// EscrowResult is returned by the escrow operations. Seller is nil for
// operations that leave the seller wallet untouched.
type EscrowResult struct {
	Escrow    *models.Escrow `json:"escrow"`
	Buyer     *models.Wallet `json:"buyer"`
	Seller    *models.Wallet `json:"seller,omitempty"`
	Duplicate bool           `json:"duplicate"`
}
