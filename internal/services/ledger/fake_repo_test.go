package ledger

import (
	"context"
	"sync"
	"time"

	"agropay/internal/models"
	"agropay/internal/repositories"
)

// fakeLedgerRepo is an in-memory stand-in for the GORM repository. One mutex
// held for the duration of a transaction models the combination of row locks
// and SERIALIZABLE isolation closely enough for the properties under test:
// transactions are atomic, see committed state, and roll back on error.
// Idempotency keys and wallet versions are enforced the same way the
// database constraints do. Methods called outside a transaction take the
// mutex per call; the tx view handed to WithinTransaction callbacks runs
// under the already-held lock.
type fakeLedgerRepo struct {
	mu    sync.Mutex
	state fakeState
}

type fakeState struct {
	wallets      map[uint]*models.Wallet
	transactions []*models.Transaction
	auditLogs    []*models.WalletAuditLog
	escrows      map[uint]*models.Escrow
	loans        map[uint]*models.Loan
	creditEvents []*models.CreditEvent

	nextTxnID    uint
	nextAuditID  uint
	nextEscrowID uint
	nextEventID  uint
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{state: fakeState{
		wallets: make(map[uint]*models.Wallet),
		escrows: make(map[uint]*models.Escrow),
		loans:   make(map[uint]*models.Loan),
	}}
}

// Seeding and inspection helpers

func (f *fakeLedgerRepo) addWallet(w *models.Wallet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.LastWithdrawReset.IsZero() {
		w.LastWithdrawReset = time.Now().UTC()
	}
	cp := *w
	f.state.wallets[w.ID] = &cp
}

func (f *fakeLedgerRepo) addLoan(l *models.Loan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *l
	f.state.loans[l.ID] = &cp
}

func (f *fakeLedgerRepo) walletSnapshot(id uint) models.Wallet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.state.wallets[id]
}

func (f *fakeLedgerRepo) auditRowsFor(walletID uint) []*models.WalletAuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WalletAuditLog
	for _, a := range f.state.auditLogs {
		if a.WalletID == walletID {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeLedgerRepo) transactionsFor(walletID uint) []*models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Transaction
	for _, t := range f.state.transactions {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeLedgerRepo) eventsFor(walletID uint) []*models.CreditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CreditEvent
	for _, e := range f.state.creditEvents {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeState) clone() fakeState {
	cp := fakeState{
		wallets:      make(map[uint]*models.Wallet, len(s.wallets)),
		escrows:      make(map[uint]*models.Escrow, len(s.escrows)),
		loans:        make(map[uint]*models.Loan, len(s.loans)),
		transactions: append([]*models.Transaction(nil), s.transactions...),
		auditLogs:    append([]*models.WalletAuditLog(nil), s.auditLogs...),
		creditEvents: append([]*models.CreditEvent(nil), s.creditEvents...),
		nextTxnID:    s.nextTxnID,
		nextAuditID:  s.nextAuditID,
		nextEscrowID: s.nextEscrowID,
		nextEventID:  s.nextEventID,
	}
	for id, w := range s.wallets {
		c := *w
		cp.wallets[id] = &c
	}
	for id, e := range s.escrows {
		c := *e
		cp.escrows[id] = &c
	}
	for id, l := range s.loans {
		c := *l
		cp.loans[id] = &c
	}
	return cp
}

// Interface implementation (locking wrappers)

func (f *fakeLedgerRepo) WithinTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.state.clone()
	if err := fn(&fakeTxRepo{state: &f.state}); err != nil {
		f.state = snap
		return err
	}
	return nil
}

func (f *fakeLedgerRepo) GetWallet(ctx context.Context, walletID uint) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.getWallet(walletID)
}

func (f *fakeLedgerRepo) LockWallet(ctx context.Context, walletID uint) (*models.Wallet, error) {
	return f.GetWallet(ctx, walletID)
}

func (f *fakeLedgerRepo) UpdateWalletVersioned(ctx context.Context, wallet *models.Wallet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.updateWalletVersioned(wallet)
}

func (f *fakeLedgerRepo) CreateAuditLog(ctx context.Context, entry *models.WalletAuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.createAuditLog(entry)
}

func (f *fakeLedgerRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.createTransaction(txn)
}

func (f *fakeLedgerRepo) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.getTransactionByKey(key)
}

func (f *fakeLedgerRepo) CreateEscrow(ctx context.Context, escrow *models.Escrow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.createEscrow(escrow)
}

func (f *fakeLedgerRepo) GetEscrowByID(ctx context.Context, id uint) (*models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.getEscrowByID(id)
}

func (f *fakeLedgerRepo) GetEscrowByOrderID(ctx context.Context, orderID uint) (*models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.getEscrowByOrderID(orderID)
}

func (f *fakeLedgerRepo) TransitionEscrow(ctx context.Context, escrowID uint, from string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.transitionEscrow(escrowID, from, updates)
}

func (f *fakeLedgerRepo) GetLoanForUpdate(ctx context.Context, loanID uint) (*models.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.getLoan(loanID)
}

func (f *fakeLedgerRepo) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.updateLoan(loan)
}

func (f *fakeLedgerRepo) CreateCreditEvent(ctx context.Context, event *models.CreditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.createCreditEvent(event)
}

// fakeTxRepo is the view handed to WithinTransaction callbacks; the outer
// repository's mutex is already held, so it operates on state directly.
type fakeTxRepo struct {
	state *fakeState
}

func (t *fakeTxRepo) WithinTransaction(ctx context.Context, fn func(repositories.LedgerRepository) error) error {
	return fn(t)
}

func (t *fakeTxRepo) GetWallet(ctx context.Context, walletID uint) (*models.Wallet, error) {
	return t.state.getWallet(walletID)
}

func (t *fakeTxRepo) LockWallet(ctx context.Context, walletID uint) (*models.Wallet, error) {
	return t.state.getWallet(walletID)
}

func (t *fakeTxRepo) UpdateWalletVersioned(ctx context.Context, wallet *models.Wallet) error {
	return t.state.updateWalletVersioned(wallet)
}

func (t *fakeTxRepo) CreateAuditLog(ctx context.Context, entry *models.WalletAuditLog) error {
	return t.state.createAuditLog(entry)
}

func (t *fakeTxRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return t.state.createTransaction(txn)
}

func (t *fakeTxRepo) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	return t.state.getTransactionByKey(key)
}

func (t *fakeTxRepo) CreateEscrow(ctx context.Context, escrow *models.Escrow) error {
	return t.state.createEscrow(escrow)
}

func (t *fakeTxRepo) GetEscrowByID(ctx context.Context, id uint) (*models.Escrow, error) {
	return t.state.getEscrowByID(id)
}

func (t *fakeTxRepo) GetEscrowByOrderID(ctx context.Context, orderID uint) (*models.Escrow, error) {
	return t.state.getEscrowByOrderID(orderID)
}

func (t *fakeTxRepo) TransitionEscrow(ctx context.Context, escrowID uint, from string, updates map[string]interface{}) error {
	return t.state.transitionEscrow(escrowID, from, updates)
}

func (t *fakeTxRepo) GetLoanForUpdate(ctx context.Context, loanID uint) (*models.Loan, error) {
	return t.state.getLoan(loanID)
}

func (t *fakeTxRepo) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	return t.state.updateLoan(loan)
}

func (t *fakeTxRepo) CreateCreditEvent(ctx context.Context, event *models.CreditEvent) error {
	return t.state.createCreditEvent(event)
}

// State operations

func (s *fakeState) getWallet(walletID uint) (*models.Wallet, error) {
	w, ok := s.wallets[walletID]
	if !ok || w.DeletedAt.Valid {
		return nil, repositories.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *fakeState) updateWalletVersioned(wallet *models.Wallet) error {
	stored, ok := s.wallets[wallet.ID]
	if !ok || stored.Version != wallet.Version {
		return repositories.ErrVersionConflict
	}
	stored.Balance = wallet.Balance
	stored.EscrowBalance = wallet.EscrowBalance
	stored.DailyWithdrawnToday = wallet.DailyWithdrawnToday
	stored.LastWithdrawReset = wallet.LastWithdrawReset
	stored.Version++
	wallet.Version++
	return nil
}

func (s *fakeState) createAuditLog(entry *models.WalletAuditLog) error {
	s.nextAuditID++
	entry.ID = s.nextAuditID
	entry.CreatedAt = time.Now().UTC()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *fakeState) createTransaction(txn *models.Transaction) error {
	if txn.IdempotencyKey != nil {
		for _, existing := range s.transactions {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *txn.IdempotencyKey {
				return repositories.ErrDuplicateIdempotencyKey
			}
		}
	}
	s.nextTxnID++
	txn.ID = s.nextTxnID
	txn.CreatedAt = time.Now().UTC()
	s.transactions = append(s.transactions, txn)
	return nil
}

func (s *fakeState) getTransactionByKey(key string) (*models.Transaction, error) {
	for _, t := range s.transactions {
		if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (s *fakeState) createEscrow(escrow *models.Escrow) error {
	for _, e := range s.escrows {
		if e.OrderID == escrow.OrderID {
			return repositories.ErrEscrowExists
		}
	}
	s.nextEscrowID++
	escrow.ID = s.nextEscrowID
	escrow.CreatedAt = time.Now().UTC()
	cp := *escrow
	s.escrows[escrow.ID] = &cp
	return nil
}

func (s *fakeState) getEscrowByID(id uint) (*models.Escrow, error) {
	e, ok := s.escrows[id]
	if !ok {
		return nil, repositories.ErrEscrowNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeState) getEscrowByOrderID(orderID uint) (*models.Escrow, error) {
	for _, e := range s.escrows {
		if e.OrderID == orderID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrEscrowNotFound
}

func (s *fakeState) transitionEscrow(escrowID uint, from string, updates map[string]interface{}) error {
	e, ok := s.escrows[escrowID]
	if !ok || e.Status != from {
		return repositories.ErrEscrowStateConflict
	}
	if v, ok := updates["status"]; ok {
		e.Status = v.(string)
	}
	if v, ok := updates["released_at"]; ok {
		ts := v.(time.Time)
		e.ReleasedAt = &ts
	}
	if v, ok := updates["refunded_at"]; ok {
		ts := v.(time.Time)
		e.RefundedAt = &ts
	}
	if v, ok := updates["dispute_reason"]; ok {
		e.DisputeReason = v.(string)
	}
	if v, ok := updates["notes"]; ok {
		e.Notes = v.(string)
	}
	return nil
}

func (s *fakeState) getLoan(loanID uint) (*models.Loan, error) {
	l, ok := s.loans[loanID]
	if !ok {
		return nil, repositories.ErrLoanNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *fakeState) updateLoan(loan *models.Loan) error {
	stored, ok := s.loans[loan.ID]
	if !ok {
		return repositories.ErrLoanNotFound
	}
	stored.PaidAmount = loan.PaidAmount
	stored.Status = loan.Status
	return nil
}

func (s *fakeState) createCreditEvent(event *models.CreditEvent) error {
	s.nextEventID++
	event.ID = s.nextEventID
	event.CreatedAt = time.Now().UTC()
	s.creditEvents = append(s.creditEvents, event)
	return nil
}
