package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errs "agropay/internal/errors"
	"agropay/internal/models"
	"agropay/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func strPtr(s string) *string { return &s }

func testWallet(id uint, balance string) *models.Wallet {
	return &models.Wallet{
		ID:                     id,
		OwnerID:                id + 100,
		OwnerType:              models.OwnerTypeFarmer,
		Balance:                dec(balance),
		EscrowBalance:          decimal.Zero,
		DailyWithdrawLimit:     dec("100000"),
		SingleTransactionLimit: dec("50000"),
		RequiresPinAbove:       dec("10000"),
		DailyWithdrawnToday:    decimal.Zero,
		LastWithdrawReset:      time.Now().UTC(),
	}
}

func newTestService(repo repositories.LedgerRepository) Service {
	return NewService(repo, nil, Config{
		TxTimeout:              2 * time.Second,
		VersionConflictRetries: 3,
		VersionConflictBackoff: time.Millisecond,
	}, nil)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

// assertAuditChain verifies the append-only invariants on a wallet's audit
// rows: each row balances, versions advance by exactly one, and consecutive
// rows link through their version numbers.
func assertAuditChain(t *testing.T, rows []*models.WalletAuditLog) {
	t.Helper()
	for i, row := range rows {
		assert.True(t, row.BalanceBefore.Add(row.Amount).Equal(row.BalanceAfter),
			"row %d: %s + %s != %s", i, row.BalanceBefore, row.Amount, row.BalanceAfter)
		assert.Equal(t, row.VersionBefore+1, row.VersionAfter, "row %d", i)
		if i > 0 {
			assert.Equal(t, rows[i-1].VersionAfter, row.VersionBefore, "row %d not chained", i)
		}
	}
}

func TestDepositCreditsBalance(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "100.00"))
	svc := newTestService(repo)

	res, err := svc.Deposit(context.Background(), DepositRequest{
		WalletID:       1,
		Amount:         dec("250.50"),
		Description:    "maize sale payout",
		IdempotencyKey: strPtr("dep-1"),
		Actor:          Actor{ID: 9, IP: "10.0.0.1"},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Duplicate)
	assertDec(t, "350.50", res.Wallet.Balance)
	assert.Equal(t, int64(1), res.Wallet.Version)

	assert.Equal(t, models.TransactionTypeDeposit, res.Transaction.Type)
	assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
	assertDec(t, "100.00", res.Transaction.BalanceBefore)
	assertDec(t, "350.50", res.Transaction.BalanceAfter)
	assert.NotEmpty(t, res.Transaction.TransactionID)

	rows := repo.auditRowsFor(1)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AuditOpDeposit, rows[0].Operation)
	assert.Equal(t, uint(9), rows[0].ActorID)
	require.NotNil(t, rows[0].IdempotencyKey)
	assert.Equal(t, "dep-1", *rows[0].IdempotencyKey)
	require.NotNil(t, rows[0].TransactionID)
	assert.Equal(t, res.Transaction.ID, *rows[0].TransactionID)
	assertAuditChain(t, rows)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "100.00"))
	svc := newTestService(repo)

	_, err := svc.Deposit(context.Background(), DepositRequest{WalletID: 1, Amount: decimal.Zero})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)

	_, err = svc.Deposit(context.Background(), DepositRequest{WalletID: 1, Amount: dec("-5")})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)

	assertDec(t, "100.00", repo.walletSnapshot(1).Balance)
	assert.Empty(t, repo.auditRowsFor(1))
}

func TestDepositUnknownWallet(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newTestService(repo)

	_, err := svc.Deposit(context.Background(), DepositRequest{WalletID: 42, Amount: dec("10")})
	assert.ErrorIs(t, err, errs.ErrWalletNotFound)
}

func TestDepositIdempotentReplay(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "0.00"))
	svc := newTestService(repo)

	req := DepositRequest{WalletID: 1, Amount: dec("500.00"), IdempotencyKey: strPtr("dep-replay")}

	first, err := svc.Deposit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Deposit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.TransactionID, second.Transaction.TransactionID)

	assertDec(t, "500.00", repo.walletSnapshot(1).Balance)
	assert.Len(t, repo.transactionsFor(1), 1)
	assert.Len(t, repo.auditRowsFor(1), 1)
}

func TestWithdrawDebitsBalance(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	svc := newTestService(repo)

	res, err := svc.Withdraw(context.Background(), WithdrawRequest{
		WalletID: 1,
		Amount:   dec("300.00"),
	})
	require.NoError(t, err)
	assertDec(t, "700.00", res.Wallet.Balance)
	assertDec(t, "300.00", res.Wallet.DailyWithdrawnToday)
	assertDec(t, "-300.00", res.Transaction.Amount)
	assertAuditChain(t, repo.auditRowsFor(1))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "100.00"))
	svc := newTestService(repo)

	_, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("100.01")})
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)

	w := repo.walletSnapshot(1)
	assertDec(t, "100.00", w.Balance)
	assert.Equal(t, int64(0), w.Version)
	assert.Empty(t, repo.transactionsFor(1))
	assert.Empty(t, repo.auditRowsFor(1))
}

func TestWithdrawSingleTransactionLimit(t *testing.T) {
	repo := newFakeLedgerRepo()
	w := testWallet(1, "90000.00")
	w.SingleTransactionLimit = dec("50000")
	repo.addWallet(w)
	svc := newTestService(repo)

	_, err := svc.Withdraw(context.Background(), WithdrawRequest{
		WalletID:    1,
		Amount:      dec("50000.01"),
		PinVerified: true,
	})
	assert.ErrorIs(t, err, errs.ErrAmountExceedsTransactionLimit)
	assertDec(t, "90000.00", repo.walletSnapshot(1).Balance)
	assert.Empty(t, repo.auditRowsFor(1))
}

func TestWithdrawPinThreshold(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "20000.00"))
	svc := newTestService(repo)

	_, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("10000.01")})
	assert.ErrorIs(t, err, errs.ErrPinRequired)

	res, err := svc.Withdraw(context.Background(), WithdrawRequest{
		WalletID:    1,
		Amount:      dec("10000.01"),
		PinVerified: true,
	})
	require.NoError(t, err)
	assertDec(t, "9999.99", res.Wallet.Balance)
}

func TestWithdrawDailyLimit(t *testing.T) {
	repo := newFakeLedgerRepo()
	w := testWallet(1, "100000.00")
	w.DailyWithdrawLimit = dec("1000")
	w.DailyWithdrawnToday = dec("900")
	repo.addWallet(w)
	svc := newTestService(repo)

	_, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("100.01")})
	assert.ErrorIs(t, err, errs.ErrDailyWithdrawLimitExceeded)

	res, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("100.00")})
	require.NoError(t, err)
	assertDec(t, "1000", res.Wallet.DailyWithdrawnToday)
}

func TestWithdrawDailyCounterResetsAcrossUTCDays(t *testing.T) {
	repo := newFakeLedgerRepo()
	w := testWallet(1, "5000.00")
	w.DailyWithdrawLimit = dec("1000")
	w.DailyWithdrawnToday = dec("1000")
	w.LastWithdrawReset = time.Now().UTC().Add(-48 * time.Hour)
	repo.addWallet(w)
	svc := newTestService(repo)

	res, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("400.00")})
	require.NoError(t, err)
	assertDec(t, "400.00", res.Wallet.DailyWithdrawnToday)
	assertDec(t, "4600.00", res.Wallet.Balance)
}

// An escrow hold and a withdrawal race for the same 500 of funds; only one
// debit may land and the total money in the system must be conserved.
func TestEscrowHoldRacesWithdrawOnSameFunds(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "500.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)

	var (
		wg           sync.WaitGroup
		successes    int32
		insufficient int32
	)
	run := func(fn func() error) {
		defer wg.Done()
		err := fn()
		switch {
		case err == nil:
			atomic.AddInt32(&successes, 1)
		case errors.Is(err, errs.ErrInsufficientFunds):
			atomic.AddInt32(&insufficient, 1)
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	wg.Add(2)
	go run(func() error {
		_, err := svc.CreateEscrow(context.Background(), CreateEscrowRequest{
			OrderID: 900, BuyerWalletID: 1, SellerWalletID: 2, Amount: dec("400.00"),
		})
		return err
	})
	go run(func() error {
		_, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("400.00")})
		return err
	})
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(1), insufficient)

	w := repo.walletSnapshot(1)
	total := w.Balance.Add(w.EscrowBalance)
	assert.True(t, total.Equal(dec("100.00")) || total.Equal(dec("500.00")),
		"balance %s + escrow %s neither 100 nor 500", w.Balance, w.EscrowBalance)
	assert.Equal(t, int64(1), w.Version)
	assert.Len(t, repo.auditRowsFor(1), 1)
	assertAuditChain(t, repo.auditRowsFor(1))
}

// Eight workers submit the same withdrawal under one idempotency key. The
// unique index arbitrates: exactly one commits, every loser reads the
// winner's result back as a duplicate.
func TestWithdrawConcurrentSameKeyArbitration(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	svc := newTestService(repo)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*OperationResult
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Withdraw(context.Background(), WithdrawRequest{
				WalletID:       1,
				Amount:         dec("200.00"),
				IdempotencyKey: strPtr("wd-race"),
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, results, workers)

	winners := 0
	winnerTxnID := ""
	for _, res := range results {
		if !res.Duplicate {
			winners++
			winnerTxnID = res.Transaction.TransactionID
		}
	}
	assert.Equal(t, 1, winners)
	for _, res := range results {
		assert.Equal(t, winnerTxnID, res.Transaction.TransactionID)
	}

	w := repo.walletSnapshot(1)
	assertDec(t, "800.00", w.Balance)
	assert.Equal(t, int64(1), w.Version)
	assert.Len(t, repo.transactionsFor(1), 1)
	assert.Len(t, repo.auditRowsFor(1), 1)
}

// Ten workers race to withdraw 200 from a balance of 1000. Exactly five must
// succeed, the rest fail with insufficient funds, and the final state must
// show no lost updates.
func TestWithdrawConcurrentDrain(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	svc := newTestService(repo)

	const workers = 10
	var (
		wg           sync.WaitGroup
		successes    int32
		insufficient int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("200.00")})
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, errs.ErrInsufficientFunds):
				atomic.AddInt32(&insufficient, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), successes)
	assert.Equal(t, int32(5), insufficient)

	w := repo.walletSnapshot(1)
	assertDec(t, "0.00", w.Balance)
	assert.Equal(t, int64(5), w.Version)
	assert.Len(t, repo.transactionsFor(1), 5)
	rows := repo.auditRowsFor(1)
	assert.Len(t, rows, 5)
	assertAuditChain(t, rows)
}

func TestRepayLoanOntime(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addLoan(&models.Loan{
		ID:       7,
		WalletID: 1,
		Amount:   dec("600.00"),
		DueDate:  time.Now().UTC().Add(72 * time.Hour),
		Status:   models.LoanStatusActive,
	})
	svc := newTestService(repo)

	res, err := svc.RepayLoan(context.Background(), RepayLoanRequest{
		WalletID: 1,
		LoanID:   7,
		Amount:   dec("200.00"),
	})
	require.NoError(t, err)
	assertDec(t, "800.00", res.Wallet.Balance)
	assertDec(t, "200.00", res.Loan.PaidAmount)
	assert.Equal(t, models.LoanStatusActive, res.Loan.Status)

	require.NotNil(t, res.CreditEvent)
	assert.Equal(t, models.CreditEventLoanRepaidOntime, res.CreditEvent.EventType)
	assert.Equal(t, 15, res.CreditEvent.ScoreImpact)

	// Settling the remainder flips the loan to PAID.
	res, err = svc.RepayLoan(context.Background(), RepayLoanRequest{
		WalletID: 1,
		LoanID:   7,
		Amount:   dec("400.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusPaid, res.Loan.Status)
	assertDec(t, "0.00", res.Loan.Outstanding())
	assert.Len(t, repo.eventsFor(1), 2)
}

func TestRepayLoanLate(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addLoan(&models.Loan{
		ID:       7,
		WalletID: 1,
		Amount:   dec("600.00"),
		DueDate:  time.Now().UTC().Add(-24 * time.Hour),
		Status:   models.LoanStatusActive,
	})
	svc := newTestService(repo)

	res, err := svc.RepayLoan(context.Background(), RepayLoanRequest{WalletID: 1, LoanID: 7, Amount: dec("600.00")})
	require.NoError(t, err)
	assert.Equal(t, models.CreditEventLoanRepaidLate, res.CreditEvent.EventType)
	assert.Equal(t, -10, res.CreditEvent.ScoreImpact)
	assert.Equal(t, models.LoanStatusPaid, res.Loan.Status)
}

func TestRepayLoanGuards(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addLoan(&models.Loan{ID: 7, WalletID: 1, Amount: dec("600.00"), Status: models.LoanStatusActive})
	repo.addLoan(&models.Loan{ID: 8, WalletID: 1, Amount: dec("600.00"), Status: models.LoanStatusPaid})
	svc := newTestService(repo)

	_, err := svc.RepayLoan(context.Background(), RepayLoanRequest{WalletID: 1, LoanID: 99, Amount: dec("10")})
	assert.ErrorIs(t, err, errs.ErrLoanNotFound)

	_, err = svc.RepayLoan(context.Background(), RepayLoanRequest{WalletID: 1, LoanID: 8, Amount: dec("10")})
	assert.ErrorIs(t, err, errs.ErrLoanNotActive)

	// Overpayment past the outstanding principal is rejected before any debit.
	_, err = svc.RepayLoan(context.Background(), RepayLoanRequest{WalletID: 1, LoanID: 7, Amount: dec("600.01")})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
	assertDec(t, "1000.00", repo.walletSnapshot(1).Balance)
	assert.Empty(t, repo.eventsFor(1))
}

func TestCreateEscrowHoldsFunds(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)

	res, err := svc.CreateEscrow(context.Background(), CreateEscrowRequest{
		OrderID:        501,
		BuyerWalletID:  1,
		SellerWalletID: 2,
		Amount:         dec("400.00"),
		IdempotencyKey: strPtr("esc-501"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, res.Escrow.Status)
	assertDec(t, "600.00", res.Buyer.Balance)
	assertDec(t, "400.00", res.Buyer.EscrowBalance)
	assert.Nil(t, res.Seller)

	rows := repo.auditRowsFor(1)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AuditOpEscrowHold, rows[0].Operation)
	require.NotNil(t, rows[0].EscrowAfter)
	assertDec(t, "400.00", *rows[0].EscrowAfter)
}

func TestCreateEscrowDuplicateOrder(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)

	_, err := svc.CreateEscrow(context.Background(), CreateEscrowRequest{
		OrderID: 501, BuyerWalletID: 1, SellerWalletID: 2, Amount: dec("100.00"),
	})
	require.NoError(t, err)

	_, err = svc.CreateEscrow(context.Background(), CreateEscrowRequest{
		OrderID: 501, BuyerWalletID: 1, SellerWalletID: 2, Amount: dec("100.00"),
	})
	assert.ErrorIs(t, err, errs.ErrEscrowAlreadyExists)
	assertDec(t, "900.00", repo.walletSnapshot(1).Balance)
}

func TestCreateEscrowInsufficientFunds(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "50.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)

	_, err := svc.CreateEscrow(context.Background(), CreateEscrowRequest{
		OrderID: 501, BuyerWalletID: 1, SellerWalletID: 2, Amount: dec("100.00"),
	})
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)

	// The escrow row from the failed attempt must have rolled back with the
	// hold, so the order ID is still free.
	_, err = repo.GetEscrowByOrderID(context.Background(), 501)
	assert.ErrorIs(t, err, repositories.ErrEscrowNotFound)
}

func TestCreateEscrowSameWalletRejected(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	svc := newTestService(repo)

	_, err := svc.CreateEscrow(context.Background(), CreateEscrowRequest{
		OrderID: 501, BuyerWalletID: 1, SellerWalletID: 1, Amount: dec("100.00"),
	})
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
}

func setupHeldEscrow(t *testing.T, repo *fakeLedgerRepo, svc Service) *models.Escrow {
	t.Helper()
	res, err := svc.CreateEscrow(context.Background(), CreateEscrowRequest{
		OrderID:        700,
		BuyerWalletID:  1,
		SellerWalletID: 2,
		Amount:         dec("400.00"),
	})
	require.NoError(t, err)
	return res.Escrow
}

func TestReleaseEscrow(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "50.00"))
	svc := newTestService(repo)
	escrow := setupHeldEscrow(t, repo, svc)

	res, err := svc.ReleaseEscrow(context.Background(), EscrowActionRequest{
		EscrowID:       escrow.ID,
		IdempotencyKey: strPtr("rel-700"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, res.Escrow.Status)
	require.NotNil(t, res.Escrow.ReleasedAt)

	assertDec(t, "600.00", res.Buyer.Balance)
	assertDec(t, "0.00", res.Buyer.EscrowBalance)
	assertDec(t, "450.00", res.Seller.Balance)

	// One audit row per side, both carrying the client key.
	buyerRows := repo.auditRowsFor(1)
	require.Len(t, buyerRows, 2)
	assert.Equal(t, models.AuditOpEscrowReleaseBuyer, buyerRows[1].Operation)
	require.NotNil(t, buyerRows[1].IdempotencyKey)
	assert.Equal(t, "rel-700", *buyerRows[1].IdempotencyKey)
	assertAuditChain(t, buyerRows)

	sellerRows := repo.auditRowsFor(2)
	require.Len(t, sellerRows, 1)
	assert.Equal(t, models.AuditOpEscrowReleaseSeller, sellerRows[0].Operation)
	assertAuditChain(t, sellerRows)

	events := repo.eventsFor(2)
	require.Len(t, events, 1)
	assert.Equal(t, models.CreditEventOrderCompleted, events[0].EventType)
	assert.Equal(t, 5, events[0].ScoreImpact)

	// The escrow is terminal now.
	_, err = svc.ReleaseEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
	assert.ErrorIs(t, err, errs.ErrEscrowNotHeld)
	_, err = svc.RefundEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
	assert.ErrorIs(t, err, errs.ErrEscrowNotHeld)
}

func TestReleaseEscrowIdempotentReplay(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)
	escrow := setupHeldEscrow(t, repo, svc)

	req := EscrowActionRequest{EscrowID: escrow.ID, IdempotencyKey: strPtr("rel-replay")}
	first, err := svc.ReleaseEscrow(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.ReleaseEscrow(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, models.EscrowStatusReleased, second.Escrow.Status)
	require.NotNil(t, second.Seller)
	assertDec(t, "400.00", second.Seller.Balance)
}

func TestRefundEscrow(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)
	escrow := setupHeldEscrow(t, repo, svc)

	res, err := svc.RefundEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, res.Escrow.Status)
	require.NotNil(t, res.Escrow.RefundedAt)
	assertDec(t, "1000.00", res.Buyer.Balance)
	assertDec(t, "0.00", res.Buyer.EscrowBalance)

	events := repo.eventsFor(1)
	require.Len(t, events, 1)
	assert.Equal(t, models.CreditEventOrderCancelled, events[0].EventType)
	assert.Equal(t, -5, events[0].ScoreImpact)

	assertDec(t, "0.00", repo.walletSnapshot(2).Balance)

	_, err = svc.ReleaseEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
	assert.ErrorIs(t, err, errs.ErrEscrowNotHeld)
}

// Release and refund race on the same held escrow; exactly one may win and
// the total money in the system must be conserved.
func TestEscrowConcurrentReleaseRefund(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)
	escrow := setupHeldEscrow(t, repo, svc)

	var (
		wg        sync.WaitGroup
		successes int32
		conflicts int32
	)
	run := func(fn func() error) {
		defer wg.Done()
		err := fn()
		switch {
		case err == nil:
			atomic.AddInt32(&successes, 1)
		case errors.Is(err, errs.ErrEscrowNotHeld):
			atomic.AddInt32(&conflicts, 1)
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	wg.Add(2)
	go run(func() error {
		_, err := svc.ReleaseEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
		return err
	})
	go run(func() error {
		_, err := svc.RefundEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
		return err
	})
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(1), conflicts)

	buyer := repo.walletSnapshot(1)
	seller := repo.walletSnapshot(2)
	total := buyer.Balance.Add(buyer.EscrowBalance).Add(seller.Balance)
	assertDec(t, "1000.00", total)
	assertDec(t, "0.00", buyer.EscrowBalance)
}

func TestMarkEscrowDisputedLogsActor(t *testing.T) {
	hook := logrustest.NewGlobal()
	defer hook.Reset()

	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)
	escrow := setupHeldEscrow(t, repo, svc)

	_, err := svc.MarkEscrowDisputed(context.Background(), escrow.ID, "goods not delivered",
		Actor{ID: 42, Role: "user", IP: "10.1.2.3"})
	require.NoError(t, err)

	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "escrow annotated" {
			entry = e
		}
	}
	require.NotNil(t, entry, "no annotation log entry")
	assert.Equal(t, uint(42), entry.Data["actor_id"])
	assert.Equal(t, "user", entry.Data["actor_role"])
	assert.Equal(t, "10.1.2.3", entry.Data["actor_ip"])
	assert.Equal(t, models.EscrowStatusDisputed, entry.Data["status"])
}

func TestMarkEscrowDisputedFreezesFunds(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)
	escrow := setupHeldEscrow(t, repo, svc)

	disputed, err := svc.MarkEscrowDisputed(context.Background(), escrow.ID, "goods not delivered", Actor{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusDisputed, disputed.Status)
	assert.Equal(t, "goods not delivered", disputed.DisputeReason)

	// Funds stay on the buyer's escrow balance and the money paths are closed.
	buyer := repo.walletSnapshot(1)
	assertDec(t, "400.00", buyer.EscrowBalance)
	_, err = svc.ReleaseEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
	assert.ErrorIs(t, err, errs.ErrEscrowNotHeld)
	_, err = svc.RefundEscrow(context.Background(), EscrowActionRequest{EscrowID: escrow.ID})
	assert.ErrorIs(t, err, errs.ErrEscrowNotHeld)
}

func TestMarkLoanDefaulted(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "0.00"))
	repo.addLoan(&models.Loan{
		ID:         3,
		WalletID:   1,
		Amount:     dec("900.00"),
		PaidAmount: dec("300.00"),
		Status:     models.LoanStatusActive,
	})
	svc := newTestService(repo)

	event, err := svc.MarkLoanDefaulted(context.Background(), 3, Actor{ID: 1, Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, models.CreditEventLoanDefaulted, event.EventType)
	assert.Equal(t, -50, event.ScoreImpact)
	require.NotNil(t, event.Amount)
	assertDec(t, "600.00", *event.Amount)

	_, err = svc.MarkLoanDefaulted(context.Background(), 3, Actor{ID: 1, Role: "admin"})
	assert.ErrorIs(t, err, errs.ErrLoanNotActive)
}

func TestGetEscrow(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.addWallet(testWallet(1, "1000.00"))
	repo.addWallet(testWallet(2, "0.00"))
	svc := newTestService(repo)
	escrow := setupHeldEscrow(t, repo, svc)

	got, err := svc.GetEscrow(context.Background(), escrow.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.OrderID, got.OrderID)

	_, err = svc.GetEscrow(context.Background(), 999)
	assert.ErrorIs(t, err, errs.ErrEscrowNotFound)
}

// conflictRepo fails every transaction with a version conflict so the retry
// loop can be observed exhausting itself.
type conflictRepo struct {
	*fakeLedgerRepo
	attempts int32
}

func (c *conflictRepo) WithinTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	atomic.AddInt32(&c.attempts, 1)
	return repositories.ErrVersionConflict
}

func TestRetryExhaustionSurfacesContention(t *testing.T) {
	inner := newFakeLedgerRepo()
	inner.addWallet(testWallet(1, "1000.00"))
	repo := &conflictRepo{fakeLedgerRepo: inner}
	svc := NewService(repo, nil, Config{
		TxTimeout:              time.Second,
		VersionConflictRetries: 2,
		VersionConflictBackoff: time.Millisecond,
	}, nil)

	_, err := svc.Withdraw(context.Background(), WithdrawRequest{WalletID: 1, Amount: dec("10.00")})
	assert.ErrorIs(t, err, errs.ErrContention)
	assert.Equal(t, int32(3), atomic.LoadInt32(&repo.attempts))
}
