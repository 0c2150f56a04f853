package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypeDeposit          = "DEPOSIT"
	TransactionTypeWithdrawal       = "WITHDRAWAL"
	TransactionTypePurchase         = "PURCHASE"
	TransactionTypeSale             = "SALE"
	TransactionTypeLoanDisbursement = "LOAN_DISBURSEMENT"
	TransactionTypeLoanRepayment    = "LOAN_REPAYMENT"
	TransactionTypeFee              = "FEE"
	TransactionTypeRefund           = "REFUND"
	TransactionTypeEscrowHold       = "ESCROW_HOLD"
	TransactionTypeEscrowRelease    = "ESCROW_RELEASE"
	TransactionTypeEscrowRefund     = "ESCROW_REFUND"
	TransactionTypeTransferIn       = "TRANSFER_IN"
	TransactionTypeTransferOut      = "TRANSFER_OUT"
	TransactionTypeScheduledPayment = "SCHEDULED_PAYMENT"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

// Reference types linking a transaction to a domain object
const (
	ReferenceTypeOrder  = "order"
	ReferenceTypeLoan   = "loan"
	ReferenceTypeEscrow = "escrow"
)

// Transaction is an append-only ledger entry. Rows are never updated after
// insert except for status transitions out of pending. Amount is signed:
// credits are positive, debits negative. The idempotency key carries a
// partial unique index, which makes it the arbiter under concurrent replay.
type Transaction struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	TransactionID  string          `gorm:"size:64;uniqueIndex;not null" json:"transaction_id"`
	WalletID       uint            `gorm:"not null;index" json:"wallet_id"`
	Type           string          `gorm:"size:32;not null" json:"type"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	BalanceBefore  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"balance_before"`
	BalanceAfter   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"balance_after"`
	ReferenceID    *uint           `json:"reference_id,omitempty"`
	ReferenceType  string          `gorm:"size:32" json:"reference_type,omitempty"`
	Description    string          `json:"description"`
	DescriptionSw  string          `json:"description_sw"`
	Status         string          `gorm:"size:16;not null;default:'pending'" json:"status"`
	IdempotencyKey *string         `gorm:"size:128" json:"idempotency_key,omitempty"`
	ActorID        uint            `json:"actor_id"`
	ActorIP        string          `gorm:"size:45" json:"actor_ip"`
	Metadata       JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
