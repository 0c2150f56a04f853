package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Credit event tags and their fixed score deltas. The external scoring
// service reads this stream asynchronously; the ledger only appends.
const (
	CreditEventLoanRepaidOntime = "LOAN_REPAID_ONTIME"
	CreditEventLoanRepaidLate   = "LOAN_REPAID_LATE"
	CreditEventLoanDefaulted    = "LOAN_DEFAULTED"
	CreditEventOrderCompleted   = "ORDER_COMPLETED"
	CreditEventOrderCancelled   = "ORDER_CANCELLED"
)

// CreditEventScores maps event tags to their fixed score impact.
var CreditEventScores = map[string]int{
	CreditEventLoanRepaidOntime: 15,
	CreditEventLoanRepaidLate:   -10,
	CreditEventLoanDefaulted:    -50,
	CreditEventOrderCompleted:   5,
	CreditEventOrderCancelled:   -5,
}

// CreditEvent records a payment-behaviour milestone for a wallet. Append-only;
// inserted in the same database transaction as the financial effect.
type CreditEvent struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	WalletID    uint             `gorm:"not null;index" json:"wallet_id"`
	EventType   string           `gorm:"size:32;not null" json:"event_type"`
	Amount      *decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount,omitempty"`
	ScoreImpact int              `gorm:"not null" json:"score_impact"`
	Metadata    JSON             `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
