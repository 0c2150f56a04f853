package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit operation tags. Finer grained than transaction types: a two-wallet
// operation writes one row per side with a side-specific tag.
const (
	AuditOpDeposit             = "DEPOSIT"
	AuditOpWithdrawal          = "WITHDRAWAL"
	AuditOpLoanRepayment       = "LOAN_REPAYMENT"
	AuditOpEscrowHold          = "ESCROW_HOLD"
	AuditOpEscrowReleaseBuyer  = "ESCROW_RELEASE_BUYER_SIDE"
	AuditOpEscrowReleaseSeller = "ESCROW_RELEASE_SELLER_SIDE"
	AuditOpEscrowRefund        = "ESCROW_REFUND"
)

// WalletAuditLog is the tamper-evident trail: exactly one row per wallet per
// committed balance-mutating transaction, linked to the wallet version it
// observed and produced. Rows are append-only and never mutated.
type WalletAuditLog struct {
	ID                 uint             `gorm:"primarykey" json:"id"`
	WalletID           uint             `gorm:"not null;index:idx_wallet_audit_logs_wallet_created,priority:1" json:"wallet_id"`
	TransactionID      *uint            `json:"transaction_id,omitempty"`
	ActorID            uint             `json:"actor_id"`
	Operation          string           `gorm:"size:48;not null" json:"operation"`
	BalanceBefore      decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"balance_before"`
	BalanceAfter       decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"balance_after"`
	Amount             decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"amount"`
	EscrowBefore       *decimal.Decimal `gorm:"type:numeric(14,2)" json:"escrow_before,omitempty"`
	EscrowAfter        *decimal.Decimal `gorm:"type:numeric(14,2)" json:"escrow_after,omitempty"`
	VersionBefore      int64            `gorm:"not null" json:"version_before"`
	VersionAfter       int64            `gorm:"not null" json:"version_after"`
	IdempotencyKey     *string          `gorm:"size:128" json:"idempotency_key,omitempty"`
	ActorIP            string           `gorm:"size:45" json:"actor_ip"`
	Metadata           JSON             `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt          time.Time        `gorm:"index:idx_wallet_audit_logs_wallet_created,priority:2" json:"created_at"`
}
