package ledger

import (
	errs "agropay/internal/errors"
	"agropay/internal/models"

	"github.com/shopspring/decimal"
)

// checkDebitLimits evaluates the per-wallet caps against a prospective debit.
// The caller has already applied the lazy daily reset, so DailyWithdrawnToday
// reflects the current UTC day. A non-positive limit disables that cap.
func checkDebitLimits(wallet *models.Wallet, amount decimal.Decimal, pinVerified bool) error {
	if wallet.SingleTransactionLimit.IsPositive() && amount.GreaterThan(wallet.SingleTransactionLimit) {
		return errs.ErrAmountExceedsTransactionLimit
	}
	if wallet.RequiresPinAbove.IsPositive() && amount.GreaterThan(wallet.RequiresPinAbove) && !pinVerified {
		return errs.ErrPinRequired
	}
	if wallet.DailyWithdrawLimit.IsPositive() &&
		wallet.DailyWithdrawnToday.Add(amount).GreaterThan(wallet.DailyWithdrawLimit) {
		return errs.ErrDailyWithdrawLimitExceeded
	}
	return nil
}
