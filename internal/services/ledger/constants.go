package ledger

import "time"

// Default configuration values
const (
	DefaultTxTimeout              = 10 * time.Second
	DefaultVersionConflictRetries = 3
	DefaultVersionConflictBackoff = 25 * time.Millisecond
)

// Operation names used for metrics and logging
const (
	opDeposit       = "deposit"
	opWithdraw      = "withdraw"
	opRepayLoan     = "repay_loan"
	opCreateEscrow  = "create_escrow"
	opReleaseEscrow = "release_escrow"
	opRefundEscrow  = "refund_escrow"
	opDefaultLoan   = "default_loan"
)
