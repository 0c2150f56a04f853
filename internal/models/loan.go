package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan statuses
const (
	LoanStatusPending   = "PENDING"
	LoanStatusApproved  = "APPROVED"
	LoanStatusActive    = "ACTIVE"
	LoanStatusPaid      = "PAID"
	LoanStatusDefaulted = "DEFAULTED"
	LoanStatusRejected  = "REJECTED"
)

// Loan is the domain-side record the ledger settles repayments against. Only
// the ACTIVE -> PAID and ACTIVE -> DEFAULTED transitions touch the ledger.
type Loan struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	WalletID   uint            `gorm:"not null;index" json:"wallet_id"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	PaidAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"paid_amount"`
	DueDate    time.Time       `json:"due_date"`
	Status     string          `gorm:"size:16;not null;default:'PENDING'" json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Outstanding returns the unpaid remainder of the principal.
func (l *Loan) Outstanding() decimal.Decimal {
	return l.Amount.Sub(l.PaidAmount)
}
