package ledger

import (
	"context"
	"errors"
	"time"

	errs "agropay/internal/errors"
	"agropay/internal/models"
	"agropay/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type service struct {
	repo    repositories.LedgerRepository
	cache   CacheInvalidator
	config  Config
	metrics MetricsCollector
	logger  *logrus.Entry
}

// NewService creates the ledger operation service.
func NewService(repo repositories.LedgerRepository, cache CacheInvalidator, config Config, metrics MetricsCollector) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	if config.TxTimeout == 0 {
		config.TxTimeout = DefaultTxTimeout
	}
	if config.VersionConflictRetries == 0 {
		config.VersionConflictRetries = DefaultVersionConflictRetries
	}
	if config.VersionConflictBackoff == 0 {
		config.VersionConflictBackoff = DefaultVersionConflictBackoff
	}

	return &service{
		repo:    repo,
		cache:   cache,
		config:  config,
		metrics: metrics,
		logger:  logrus.WithField("component", "ledger"),
	}
}

func (s *service) Deposit(ctx context.Context, req DepositRequest) (*OperationResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opDeposit, time.Since(start)) }()

	if !req.Amount.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}
	if res, ok := s.replayOperation(ctx, req.IdempotencyKey); ok {
		s.metrics.RecordOperationResult(opDeposit, "duplicate")
		return res, nil
	}

	var (
		wallet *models.Wallet
		txn    *models.Transaction
	)
	err := s.runWithRetry(ctx, opDeposit, func(repo repositories.LedgerRepository) error {
		txn = s.newTransaction(req.WalletID, models.TransactionTypeDeposit, req.Amount, req.IdempotencyKey, req.Actor)
		txn.Description = req.Description
		txn.DescriptionSw = req.DescriptionSw

		var err error
		wallet, err = s.applyWalletDelta(ctx, repo, walletDelta{
			walletID:       req.WalletID,
			deltaBalance:   req.Amount,
			operation:      models.AuditOpDeposit,
			idempotencyKey: req.IdempotencyKey,
			actor:          req.Actor,
		}, txn)
		return err
	})
	if err != nil {
		if res, ok := s.replayAfterDuplicate(ctx, req.IdempotencyKey, err); ok {
			s.metrics.RecordOperationResult(opDeposit, "duplicate")
			return res, nil
		}
		return nil, s.mapError(opDeposit, err)
	}

	s.afterCommit(ctx, opDeposit, txn, wallet)
	return &OperationResult{Transaction: txn, Wallet: wallet}, nil
}

func (s *service) Withdraw(ctx context.Context, req WithdrawRequest) (*OperationResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opWithdraw, time.Since(start)) }()

	if !req.Amount.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}
	if res, ok := s.replayOperation(ctx, req.IdempotencyKey); ok {
		s.metrics.RecordOperationResult(opWithdraw, "duplicate")
		return res, nil
	}

	var (
		wallet *models.Wallet
		txn    *models.Transaction
	)
	err := s.runWithRetry(ctx, opWithdraw, func(repo repositories.LedgerRepository) error {
		txn = s.newTransaction(req.WalletID, models.TransactionTypeWithdrawal, req.Amount.Neg(), req.IdempotencyKey, req.Actor)
		txn.Description = req.Description
		txn.DescriptionSw = req.DescriptionSw

		var err error
		wallet, err = s.applyWalletDelta(ctx, repo, walletDelta{
			walletID:       req.WalletID,
			deltaBalance:   req.Amount.Neg(),
			consumesLimits: true,
			pinVerified:    req.PinVerified,
			operation:      models.AuditOpWithdrawal,
			idempotencyKey: req.IdempotencyKey,
			actor:          req.Actor,
		}, txn)
		return err
	})
	if err != nil {
		if res, ok := s.replayAfterDuplicate(ctx, req.IdempotencyKey, err); ok {
			s.metrics.RecordOperationResult(opWithdraw, "duplicate")
			return res, nil
		}
		return nil, s.mapError(opWithdraw, err)
	}

	s.afterCommit(ctx, opWithdraw, txn, wallet)
	return &OperationResult{Transaction: txn, Wallet: wallet}, nil
}

func (s *service) RepayLoan(ctx context.Context, req RepayLoanRequest) (*RepaymentResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opRepayLoan, time.Since(start)) }()

	if !req.Amount.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}
	if res, ok := s.replayOperation(ctx, req.IdempotencyKey); ok {
		s.metrics.RecordOperationResult(opRepayLoan, "duplicate")
		return &RepaymentResult{OperationResult: *res}, nil
	}

	var (
		wallet *models.Wallet
		txn    *models.Transaction
		loan   *models.Loan
		event  *models.CreditEvent
	)
	err := s.runWithRetry(ctx, opRepayLoan, func(repo repositories.LedgerRepository) error {
		l, err := repo.GetLoanForUpdate(ctx, req.LoanID)
		if err != nil {
			if errors.Is(err, repositories.ErrLoanNotFound) {
				return errs.ErrLoanNotFound
			}
			return err
		}
		if l.Status != models.LoanStatusActive {
			return errs.ErrLoanNotActive
		}
		if req.Amount.GreaterThan(l.Outstanding()) {
			return errs.ErrInvalidAmount
		}

		txn = s.newTransaction(req.WalletID, models.TransactionTypeLoanRepayment, req.Amount.Neg(), req.IdempotencyKey, req.Actor)
		txn.ReferenceID = &l.ID
		txn.ReferenceType = models.ReferenceTypeLoan

		wallet, err = s.applyWalletDelta(ctx, repo, walletDelta{
			walletID:       req.WalletID,
			deltaBalance:   req.Amount.Neg(),
			consumesLimits: true,
			pinVerified:    req.PinVerified,
			operation:      models.AuditOpLoanRepayment,
			idempotencyKey: req.IdempotencyKey,
			actor:          req.Actor,
			metadata:       models.JSON{"loan_id": l.ID},
		}, txn)
		if err != nil {
			return err
		}

		l.PaidAmount = l.PaidAmount.Add(req.Amount)
		if l.PaidAmount.GreaterThanOrEqual(l.Amount) {
			l.Status = models.LoanStatusPaid
		}
		if err := repo.UpdateLoan(ctx, l); err != nil {
			return err
		}

		eventType := models.CreditEventLoanRepaidOntime
		if time.Now().UTC().After(l.DueDate) {
			eventType = models.CreditEventLoanRepaidLate
		}
		amount := req.Amount
		ev := &models.CreditEvent{
			WalletID:    req.WalletID,
			EventType:   eventType,
			Amount:      &amount,
			ScoreImpact: models.CreditEventScores[eventType],
			Metadata:    models.JSON{"loan_id": l.ID, "transaction_id": txn.TransactionID},
		}
		if err := repo.CreateCreditEvent(ctx, ev); err != nil {
			return err
		}

		loan, event = l, ev
		return nil
	})
	if err != nil {
		if res, ok := s.replayAfterDuplicate(ctx, req.IdempotencyKey, err); ok {
			s.metrics.RecordOperationResult(opRepayLoan, "duplicate")
			return &RepaymentResult{OperationResult: *res}, nil
		}
		return nil, s.mapError(opRepayLoan, err)
	}

	s.afterCommit(ctx, opRepayLoan, txn, wallet)
	return &RepaymentResult{
		OperationResult: OperationResult{Transaction: txn, Wallet: wallet},
		Loan:            loan,
		CreditEvent:     event,
	}, nil
}

func (s *service) CreateEscrow(ctx context.Context, req CreateEscrowRequest) (*EscrowResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opCreateEscrow, time.Since(start)) }()

	if !req.Amount.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}
	if req.BuyerWalletID == req.SellerWalletID {
		return nil, errs.ErrInvalidAmount
	}
	if res, ok := s.replayEscrow(ctx, req.IdempotencyKey); ok {
		s.metrics.RecordOperationResult(opCreateEscrow, "duplicate")
		return res, nil
	}
	if _, err := s.repo.GetEscrowByOrderID(ctx, req.OrderID); err == nil {
		return nil, errs.ErrEscrowAlreadyExists
	}

	var (
		escrow *models.Escrow
		buyer  *models.Wallet
	)
	err := s.runWithRetry(ctx, opCreateEscrow, func(repo repositories.LedgerRepository) error {
		e := &models.Escrow{
			OrderID:        req.OrderID,
			BuyerWalletID:  req.BuyerWalletID,
			SellerWalletID: req.SellerWalletID,
			Amount:         req.Amount,
			Status:         models.EscrowStatusHeld,
			Notes:          req.Notes,
		}
		if err := repo.CreateEscrow(ctx, e); err != nil {
			if errors.Is(err, repositories.ErrEscrowExists) {
				return errs.ErrEscrowAlreadyExists
			}
			return err
		}

		txn := s.newTransaction(req.BuyerWalletID, models.TransactionTypeEscrowHold, req.Amount.Neg(), req.IdempotencyKey, req.Actor)
		txn.ReferenceID = &e.ID
		txn.ReferenceType = models.ReferenceTypeEscrow
		txn.Metadata = models.JSON{"order_id": req.OrderID}

		w, err := s.applyWalletDelta(ctx, repo, walletDelta{
			walletID:       req.BuyerWalletID,
			deltaBalance:   req.Amount.Neg(),
			deltaEscrow:    req.Amount,
			consumesLimits: true,
			pinVerified:    req.PinVerified,
			operation:      models.AuditOpEscrowHold,
			idempotencyKey: req.IdempotencyKey,
			actor:          req.Actor,
			metadata:       models.JSON{"order_id": req.OrderID, "escrow_id": e.ID},
		}, txn)
		if err != nil {
			return err
		}

		escrow, buyer = e, w
		return nil
	})
	if err != nil {
		if res, ok := s.replayAfterDuplicateEscrow(ctx, req.IdempotencyKey, err); ok {
			s.metrics.RecordOperationResult(opCreateEscrow, "duplicate")
			return res, nil
		}
		return nil, s.mapError(opCreateEscrow, err)
	}

	s.metrics.RecordOperationResult(opCreateEscrow, "success")
	s.metrics.RecordTransaction(models.TransactionTypeEscrowHold, amountValue(req.Amount))
	s.invalidate(ctx, buyer)
	return &EscrowResult{Escrow: escrow, Buyer: buyer}, nil
}

func (s *service) ReleaseEscrow(ctx context.Context, req EscrowActionRequest) (*EscrowResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opReleaseEscrow, time.Since(start)) }()

	if res, ok := s.replayEscrow(ctx, req.IdempotencyKey); ok {
		s.metrics.RecordOperationResult(opReleaseEscrow, "duplicate")
		return res, nil
	}

	var (
		escrow *models.Escrow
		buyer  *models.Wallet
		seller *models.Wallet
	)
	err := s.runWithRetry(ctx, opReleaseEscrow, func(repo repositories.LedgerRepository) error {
		e, err := s.heldEscrow(ctx, repo, req.EscrowID)
		if err != nil {
			return err
		}
		amount := e.Amount

		// The client key lives on the seller-side row: the global unique
		// index allows it on only one of the two rows, and the seller side
		// is where the money lands.
		buyerTxn := s.newTransaction(e.BuyerWalletID, models.TransactionTypeEscrowRelease, amount.Neg(), nil, req.Actor)
		buyerTxn.ReferenceID = &e.ID
		buyerTxn.ReferenceType = models.ReferenceTypeEscrow
		buyerTxn.Metadata = models.JSON{"side": "buyer", "order_id": e.OrderID}

		sellerTxn := s.newTransaction(e.SellerWalletID, models.TransactionTypeEscrowRelease, amount, req.IdempotencyKey, req.Actor)
		sellerTxn.ReferenceID = &e.ID
		sellerTxn.ReferenceType = models.ReferenceTypeEscrow
		sellerTxn.Metadata = models.JSON{"side": "seller", "order_id": e.OrderID}

		buyerSide := sideApply{
			delta: walletDelta{
				walletID:       e.BuyerWalletID,
				deltaEscrow:    amount.Neg(),
				operation:      models.AuditOpEscrowReleaseBuyer,
				idempotencyKey: req.IdempotencyKey,
				actor:          req.Actor,
				metadata:       models.JSON{"escrow_id": e.ID},
			},
			txn: buyerTxn,
		}
		sellerSide := sideApply{
			delta: walletDelta{
				walletID:       e.SellerWalletID,
				deltaBalance:   amount,
				operation:      models.AuditOpEscrowReleaseSeller,
				idempotencyKey: req.IdempotencyKey,
				actor:          req.Actor,
				metadata:       models.JSON{"escrow_id": e.ID},
			},
			txn: sellerTxn,
		}

		buyerW, sellerW, err := s.applyPair(ctx, repo, buyerSide, sellerSide)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = repo.TransitionEscrow(ctx, e.ID, models.EscrowStatusHeld, map[string]interface{}{
			"status":      models.EscrowStatusReleased,
			"released_at": now,
		})
		if err != nil {
			if errors.Is(err, repositories.ErrEscrowStateConflict) {
				return errs.ErrEscrowNotHeld
			}
			return err
		}

		ev := &models.CreditEvent{
			WalletID:    e.SellerWalletID,
			EventType:   models.CreditEventOrderCompleted,
			Amount:      &amount,
			ScoreImpact: models.CreditEventScores[models.CreditEventOrderCompleted],
			Metadata:    models.JSON{"order_id": e.OrderID, "escrow_id": e.ID},
		}
		if err := repo.CreateCreditEvent(ctx, ev); err != nil {
			return err
		}

		e.Status = models.EscrowStatusReleased
		e.ReleasedAt = &now
		escrow, buyer, seller = e, buyerW, sellerW
		return nil
	})
	if err != nil {
		if res, ok := s.replayAfterDuplicateEscrow(ctx, req.IdempotencyKey, err); ok {
			s.metrics.RecordOperationResult(opReleaseEscrow, "duplicate")
			return res, nil
		}
		return nil, s.mapError(opReleaseEscrow, err)
	}

	s.metrics.RecordOperationResult(opReleaseEscrow, "success")
	s.metrics.RecordTransaction(models.TransactionTypeEscrowRelease, amountValue(escrow.Amount))
	s.invalidate(ctx, buyer)
	s.invalidate(ctx, seller)
	return &EscrowResult{Escrow: escrow, Buyer: buyer, Seller: seller}, nil
}

func (s *service) RefundEscrow(ctx context.Context, req EscrowActionRequest) (*EscrowResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration(opRefundEscrow, time.Since(start)) }()

	if res, ok := s.replayEscrow(ctx, req.IdempotencyKey); ok {
		s.metrics.RecordOperationResult(opRefundEscrow, "duplicate")
		return res, nil
	}

	var (
		escrow *models.Escrow
		buyer  *models.Wallet
	)
	err := s.runWithRetry(ctx, opRefundEscrow, func(repo repositories.LedgerRepository) error {
		e, err := s.heldEscrow(ctx, repo, req.EscrowID)
		if err != nil {
			return err
		}
		amount := e.Amount

		txn := s.newTransaction(e.BuyerWalletID, models.TransactionTypeEscrowRefund, amount, req.IdempotencyKey, req.Actor)
		txn.ReferenceID = &e.ID
		txn.ReferenceType = models.ReferenceTypeEscrow
		txn.Metadata = models.JSON{"order_id": e.OrderID}

		w, err := s.applyWalletDelta(ctx, repo, walletDelta{
			walletID:       e.BuyerWalletID,
			deltaBalance:   amount,
			deltaEscrow:    amount.Neg(),
			operation:      models.AuditOpEscrowRefund,
			idempotencyKey: req.IdempotencyKey,
			actor:          req.Actor,
			metadata:       models.JSON{"escrow_id": e.ID},
		}, txn)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = repo.TransitionEscrow(ctx, e.ID, models.EscrowStatusHeld, map[string]interface{}{
			"status":      models.EscrowStatusRefunded,
			"refunded_at": now,
		})
		if err != nil {
			if errors.Is(err, repositories.ErrEscrowStateConflict) {
				return errs.ErrEscrowNotHeld
			}
			return err
		}

		ev := &models.CreditEvent{
			WalletID:    e.BuyerWalletID,
			EventType:   models.CreditEventOrderCancelled,
			Amount:      &amount,
			ScoreImpact: models.CreditEventScores[models.CreditEventOrderCancelled],
			Metadata:    models.JSON{"order_id": e.OrderID, "escrow_id": e.ID},
		}
		if err := repo.CreateCreditEvent(ctx, ev); err != nil {
			return err
		}

		e.Status = models.EscrowStatusRefunded
		e.RefundedAt = &now
		escrow, buyer = e, w
		return nil
	})
	if err != nil {
		if res, ok := s.replayAfterDuplicateEscrow(ctx, req.IdempotencyKey, err); ok {
			s.metrics.RecordOperationResult(opRefundEscrow, "duplicate")
			return res, nil
		}
		return nil, s.mapError(opRefundEscrow, err)
	}

	s.metrics.RecordOperationResult(opRefundEscrow, "success")
	s.metrics.RecordTransaction(models.TransactionTypeEscrowRefund, amountValue(escrow.Amount))
	s.invalidate(ctx, buyer)
	return &EscrowResult{Escrow: escrow, Buyer: buyer}, nil
}

func (s *service) GetEscrow(ctx context.Context, escrowID uint) (*models.Escrow, error) {
	escrow, err := s.repo.GetEscrowByID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repositories.ErrEscrowNotFound) {
			return nil, errs.ErrEscrowNotFound
		}
		return nil, s.mapError("get_escrow", err)
	}
	return escrow, nil
}

func (s *service) MarkEscrowDisputed(ctx context.Context, escrowID uint, reason string, actor Actor) (*models.Escrow, error) {
	return s.annotateEscrow(ctx, escrowID, actor, map[string]interface{}{
		"status":         models.EscrowStatusDisputed,
		"dispute_reason": reason,
	})
}

func (s *service) MarkEscrowCancelled(ctx context.Context, escrowID uint, note string, actor Actor) (*models.Escrow, error) {
	return s.annotateEscrow(ctx, escrowID, actor, map[string]interface{}{
		"status": models.EscrowStatusCancelled,
		"notes":  note,
	})
}

// annotateEscrow flips a HELD escrow into a frozen state without touching
// balances. Funds stay on the buyer's escrow balance until an external
// resolution path acts. No balance moves means no audit row, so the acting
// party is recorded in the structured log instead.
func (s *service) annotateEscrow(ctx context.Context, escrowID uint, actor Actor, updates map[string]interface{}) (*models.Escrow, error) {
	err := s.repo.TransitionEscrow(ctx, escrowID, models.EscrowStatusHeld, updates)
	if err != nil {
		if errors.Is(err, repositories.ErrEscrowStateConflict) {
			return nil, errs.ErrEscrowNotHeld
		}
		return nil, s.mapError("annotate_escrow", err)
	}
	escrow, err := s.repo.GetEscrowByID(ctx, escrowID)
	if err != nil {
		return nil, s.mapError("annotate_escrow", err)
	}
	s.logger.WithFields(logrus.Fields{
		"escrow_id":  escrow.ID,
		"status":     escrow.Status,
		"actor_id":   actor.ID,
		"actor_role": actor.Role,
		"actor_ip":   actor.IP,
	}).Info("escrow annotated")
	return escrow, nil
}

func (s *service) MarkLoanDefaulted(ctx context.Context, loanID uint, actor Actor) (*models.CreditEvent, error) {
	var event *models.CreditEvent
	err := s.runWithRetry(ctx, opDefaultLoan, func(repo repositories.LedgerRepository) error {
		loan, err := repo.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			if errors.Is(err, repositories.ErrLoanNotFound) {
				return errs.ErrLoanNotFound
			}
			return err
		}
		if loan.Status != models.LoanStatusActive {
			return errs.ErrLoanNotActive
		}

		loan.Status = models.LoanStatusDefaulted
		if err := repo.UpdateLoan(ctx, loan); err != nil {
			return err
		}

		outstanding := loan.Outstanding()
		ev := &models.CreditEvent{
			WalletID:    loan.WalletID,
			EventType:   models.CreditEventLoanDefaulted,
			Amount:      &outstanding,
			ScoreImpact: models.CreditEventScores[models.CreditEventLoanDefaulted],
			Metadata:    models.JSON{"loan_id": loan.ID},
		}
		if err := repo.CreateCreditEvent(ctx, ev); err != nil {
			return err
		}
		event = ev
		return nil
	})
	if err != nil {
		return nil, s.mapError(opDefaultLoan, err)
	}
	s.metrics.RecordOperationResult(opDefaultLoan, "success")
	return event, nil
}

// Helpers

// sideApply pairs one wallet's delta with its transaction row for two-wallet
// operations.
type sideApply struct {
	delta walletDelta
	txn   *models.Transaction
}

// applyPair runs the primitive on both wallets in ascending wallet-ID order
// so concurrent two-wallet operations cannot deadlock.
func (s *service) applyPair(ctx context.Context, repo repositories.LedgerRepository, a, b sideApply) (*models.Wallet, *models.Wallet, error) {
	first, second := a, b
	if b.delta.walletID < a.delta.walletID {
		first, second = b, a
	}
	firstW, err := s.applyWalletDelta(ctx, repo, first.delta, first.txn)
	if err != nil {
		return nil, nil, err
	}
	secondW, err := s.applyWalletDelta(ctx, repo, second.delta, second.txn)
	if err != nil {
		return nil, nil, err
	}
	if first.delta.walletID == a.delta.walletID {
		return firstW, secondW, nil
	}
	return secondW, firstW, nil
}

func (s *service) heldEscrow(ctx context.Context, repo repositories.LedgerRepository, escrowID uint) (*models.Escrow, error) {
	escrow, err := repo.GetEscrowByID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repositories.ErrEscrowNotFound) {
			return nil, errs.ErrEscrowNotFound
		}
		return nil, err
	}
	if escrow.Status != models.EscrowStatusHeld {
		return nil, errs.ErrEscrowNotHeld
	}
	return escrow, nil
}

func (s *service) newTransaction(walletID uint, txType string, amount decimal.Decimal, key *string, actor Actor) *models.Transaction {
	return &models.Transaction{
		TransactionID:  uuid.NewString(),
		WalletID:       walletID,
		Type:           txType,
		Amount:         amount,
		IdempotencyKey: normalizeKey(key),
		ActorID:        actor.ID,
		ActorIP:        actor.IP,
		Status:         models.TransactionStatusPending,
	}
}

// replayOperation probes for a previously committed transaction under the
// same idempotency key and, when found, returns its stored result without
// mutating anything.
func (s *service) replayOperation(ctx context.Context, key *string) (*OperationResult, bool) {
	key = normalizeKey(key)
	if key == nil {
		return nil, false
	}
	txn, err := s.repo.GetTransactionByIdempotencyKey(ctx, *key)
	if err != nil {
		return nil, false
	}
	wallet, err := s.repo.GetWallet(ctx, txn.WalletID)
	if err != nil {
		wallet = nil
	}
	return &OperationResult{Transaction: txn, Wallet: wallet, Duplicate: true}, true
}

// replayAfterDuplicate handles the losing side of a concurrent same-key race:
// the unique index rejected our insert, so the winner's result is read back
// and returned as a duplicate.
func (s *service) replayAfterDuplicate(ctx context.Context, key *string, err error) (*OperationResult, bool) {
	if !duplicateKey(err) {
		return nil, false
	}
	return s.replayOperation(ctx, key)
}

// replayEscrow resolves a duplicate escrow operation back to its escrow and
// wallet state.
func (s *service) replayEscrow(ctx context.Context, key *string) (*EscrowResult, bool) {
	res, ok := s.replayOperation(ctx, key)
	if !ok || res.Transaction.ReferenceID == nil || res.Transaction.ReferenceType != models.ReferenceTypeEscrow {
		return nil, false
	}
	escrow, err := s.repo.GetEscrowByID(ctx, *res.Transaction.ReferenceID)
	if err != nil {
		return nil, false
	}
	buyer, err := s.repo.GetWallet(ctx, escrow.BuyerWalletID)
	if err != nil {
		buyer = nil
	}
	out := &EscrowResult{Escrow: escrow, Buyer: buyer, Duplicate: true}
	if escrow.Status == models.EscrowStatusReleased {
		if seller, err := s.repo.GetWallet(ctx, escrow.SellerWalletID); err == nil {
			out.Seller = seller
		}
	}
	return out, true
}

// replayAfterDuplicateEscrow is the escrow-flavoured losing side of a
// concurrent same-key race.
func (s *service) replayAfterDuplicateEscrow(ctx context.Context, key *string, err error) (*EscrowResult, bool) {
	if !duplicateKey(err) {
		return nil, false
	}
	return s.replayEscrow(ctx, key)
}

func duplicateKey(err error) bool {
	return errors.Is(err, repositories.ErrDuplicateIdempotencyKey)
}

func (s *service) afterCommit(ctx context.Context, operation string, txn *models.Transaction, wallet *models.Wallet) {
	s.metrics.RecordOperationResult(operation, "success")
	s.metrics.RecordTransaction(txn.Type, amountValue(txn.Amount))
	s.invalidate(ctx, wallet)
}

func (s *service) invalidate(ctx context.Context, wallet *models.Wallet) {
	if wallet == nil {
		return
	}
	if err := s.cache.DeleteWallet(ctx, wallet.OwnerID); err != nil {
		s.logger.WithError(err).WithField("owner_id", wallet.OwnerID).Warn("cache invalidation failed")
	}
}

// mapError classifies failures. Business errors pass through with their tags;
// everything else is logged with full context and surfaced as an internal
// storage error with no database detail attached.
func (s *service) mapError(operation string, err error) error {
	var domainErr *errs.DomainError
	if errors.As(err, &domainErr) {
		s.metrics.RecordOperationResult(operation, domainErr.Code)
		return domainErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordOperationResult(operation, errs.ErrContention.Code)
		return errs.ErrContention
	}
	s.metrics.RecordError(operation, "storage")
	s.logger.WithError(err).WithField("operation", operation).Error("ledger storage failure")
	return errs.ErrInternalStorage
}

func normalizeKey(key *string) *string {
	if key == nil || *key == "" {
		return nil
	}
	return key
}

func amountValue(d decimal.Decimal) float64 {
	f, _ := d.Abs().Float64()
	return f
}
