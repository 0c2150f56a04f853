package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Owner classification tags
const (
	OwnerTypeFarmer      = "farmer"
	OwnerTypeBuyer       = "buyer"
	OwnerTypeCooperative = "cooperative"
	OwnerTypeAdmin       = "admin"
)

// Wallet is the per-owner custodial balance record and the unit of locking.
// Balance and EscrowBalance are fixed-scale decimals; the database enforces
// that neither goes negative and that Version increases by exactly one on
// every update. The daily withdrawal counter is tracked on the UTC calendar
// day and reset lazily inside the mutation path.
type Wallet struct {
	ID                     uint            `gorm:"primarykey" json:"id"`
	OwnerID                uint            `gorm:"uniqueIndex;not null" json:"owner_id"`
	OwnerType              string          `gorm:"size:32;not null;default:'farmer'" json:"owner_type"`
	Balance                decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"balance"`
	EscrowBalance          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"escrow_balance"`
	Version                int64           `gorm:"not null;default:0" json:"version"`
	DailyWithdrawLimit     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:100000" json:"daily_withdraw_limit"`
	SingleTransactionLimit decimal.Decimal `gorm:"type:numeric(14,2);not null;default:50000" json:"single_transaction_limit"`
	RequiresPinAbove       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:10000" json:"requires_pin_above"`
	DailyWithdrawnToday    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"daily_withdrawn_today"`
	LastWithdrawReset      time.Time       `json:"last_withdraw_reset"`
	Verified               bool            `gorm:"default:false" json:"verified"`
	PinHash                *string         `gorm:"size:128" json:"-"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	DeletedAt              gorm.DeletedAt  `gorm:"index" json:"-"`
}

// HasPin reports whether a PIN has been set on the wallet.
func (w *Wallet) HasPin() bool {
	return w.PinHash != nil && *w.PinHash != ""
}

// SameUTCDay reports whether the last daily-counter reset happened on the
// same UTC calendar day as now.
func (w *Wallet) SameUTCDay(now time.Time) bool {
	last := w.LastWithdrawReset.UTC()
	now = now.UTC()
	return last.Year() == now.Year() && last.YearDay() == now.YearDay()
}
