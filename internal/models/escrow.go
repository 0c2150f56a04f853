package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Escrow statuses. HELD is the only state funds move out of; RELEASED and
// REFUNDED are terminal. DISPUTED and CANCELLED are frozen annotation states
// pending external resolution and never move balances.
const (
	EscrowStatusHeld      = "HELD"
	EscrowStatusReleased  = "RELEASED"
	EscrowStatusRefunded  = "REFUNDED"
	EscrowStatusDisputed  = "DISPUTED"
	EscrowStatusCancelled = "CANCELLED"
)

// Escrow holds funds on behalf of a pending marketplace order until release
// to the seller or refund to the buyer. One escrow per order. The held amount
// lives on the buyer wallet's escrow balance by convention.
type Escrow struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	OrderID        uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	BuyerWalletID  uint            `gorm:"not null;index" json:"buyer_wallet_id"`
	SellerWalletID uint            `gorm:"not null;index" json:"seller_wallet_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Status         string          `gorm:"size:16;not null;default:'HELD'" json:"status"`
	Notes          string          `json:"notes,omitempty"`
	DisputeReason  string          `json:"dispute_reason,omitempty"`
	ReleasedAt     *time.Time      `json:"released_at,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Terminal reports whether the escrow reached a final state.
func (e *Escrow) Terminal() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}
