package ledger

import (
	"context"
	"errors"
	"time"

	errs "agropay/internal/errors"
	"agropay/internal/models"
	"agropay/internal/repositories"

	"github.com/shopspring/decimal"
)

// walletDelta describes one wallet's share of an operation. consumesLimits is
// set for withdrawal-class debits (withdraw, loan repayment, escrow hold);
// credits never consume limits.
type walletDelta struct {
	walletID       uint
	deltaBalance   decimal.Decimal
	deltaEscrow    decimal.Decimal
	consumesLimits bool
	pinVerified    bool
	operation      string
	idempotencyKey *string
	actor          Actor
	metadata       models.JSON
}

// applyWalletDelta is the single mutation primitive. It must be called inside
// an open SERIALIZABLE transaction. The sequence is fixed: exclusive row lock,
// lazy UTC daily reset, prospective balance checks after the lock, limit
// checks, version-predicated update, transaction insert (when txn is
// non-nil), and exactly one audit row. The returned wallet carries the
// committed post-state including the advanced version.
func (s *service) applyWalletDelta(ctx context.Context, repo repositories.LedgerRepository, d walletDelta, txn *models.Transaction) (*models.Wallet, error) {
	wallet, err := repo.LockWallet(ctx, d.walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errs.ErrWalletNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	if !wallet.SameUTCDay(now) {
		wallet.DailyWithdrawnToday = decimal.Zero
		wallet.LastWithdrawReset = now
	}

	balanceBefore := wallet.Balance
	escrowBefore := wallet.EscrowBalance
	newBalance := wallet.Balance.Add(d.deltaBalance)
	newEscrow := wallet.EscrowBalance.Add(d.deltaEscrow)

	// Negative-balance checks happen strictly after the lock is held.
	if newBalance.IsNegative() {
		return nil, errs.ErrInsufficientFunds
	}
	if newEscrow.IsNegative() {
		return nil, errs.ErrInsufficientEscrow
	}

	if d.consumesLimits {
		amount := d.deltaBalance.Abs()
		if err := checkDebitLimits(wallet, amount, d.pinVerified); err != nil {
			return nil, err
		}
		wallet.DailyWithdrawnToday = wallet.DailyWithdrawnToday.Add(amount)
	}

	versionBefore := wallet.Version
	wallet.Balance = newBalance
	wallet.EscrowBalance = newEscrow
	if err := repo.UpdateWalletVersioned(ctx, wallet); err != nil {
		return nil, err
	}

	var txnID *uint
	if txn != nil {
		txn.WalletID = wallet.ID
		txn.BalanceBefore = balanceBefore
		txn.BalanceAfter = newBalance
		txn.Status = models.TransactionStatusCompleted
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return nil, err
		}
		txnID = &txn.ID
	}

	entry := &models.WalletAuditLog{
		WalletID:       wallet.ID,
		TransactionID:  txnID,
		ActorID:        d.actor.ID,
		Operation:      d.operation,
		BalanceBefore:  balanceBefore,
		BalanceAfter:   newBalance,
		Amount:         d.deltaBalance,
		EscrowBefore:   &escrowBefore,
		EscrowAfter:    &newEscrow,
		VersionBefore:  versionBefore,
		VersionAfter:   wallet.Version,
		IdempotencyKey: d.idempotencyKey,
		ActorIP:        d.actor.IP,
		Metadata:       d.metadata,
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		return nil, err
	}

	return wallet, nil
}
