package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agropay/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository builds the GORM-backed ledger repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// translateErr maps driver errors onto the repository sentinels the retry
// loop discriminates on. 40001 is a serialization failure, 40P01 a deadlock;
// both are transient under SERIALIZABLE and handled the same way.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateIdempotencyKey, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", ErrSerializationFailure, err)
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicateIdempotencyKey, err)
		}
	}
	return err
}

func (r *ledgerRepository) WithinTransaction(ctx context.Context, fn func(LedgerRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translateErr(err)
}

func (r *ledgerRepository) GetWallet(ctx context.Context, walletID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, walletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", translateErr(err))
	}
	return &wallet, nil
}

// LockWallet acquires the exclusive row lock. Soft-deleted wallets are
// filtered by the default scope, so a deleted wallet reads as not found.
func (r *ledgerRepository) LockWallet(ctx context.Context, walletID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, walletID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", translateErr(err))
	}
	return &wallet, nil
}

// UpdateWalletVersioned writes the mutated balance fields predicated on the
// version observed at the locked read. Zero affected rows means another
// writer advanced the version first; the wallet trigger additionally rejects
// any update that does not advance the version by exactly one. On success the
// in-memory wallet is advanced to the committed version.
func (r *ledgerRepository) UpdateWalletVersioned(ctx context.Context, wallet *models.Wallet) error {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"balance":               wallet.Balance,
			"escrow_balance":        wallet.EscrowBalance,
			"daily_withdrawn_today": wallet.DailyWithdrawnToday,
			"last_withdraw_reset":   wallet.LastWithdrawReset,
			"version":               wallet.Version + 1,
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update wallet: %w", translateErr(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	wallet.Version++
	return nil
}

func (r *ledgerRepository) CreateAuditLog(ctx context.Context, entry *models.WalletAuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", translateErr(err))
	}
	return nil
}

func (r *ledgerRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", translateErr(err))
	}
	return nil
}

func (r *ledgerRepository) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", translateErr(err))
	}
	return &txn, nil
}

func (r *ledgerRepository) CreateEscrow(ctx context.Context, escrow *models.Escrow) error {
	if err := r.db.WithContext(ctx).Create(escrow).Error; err != nil {
		if errors.Is(translateErr(err), ErrDuplicateIdempotencyKey) {
			return ErrEscrowExists
		}
		return fmt.Errorf("failed to create escrow: %w", translateErr(err))
	}
	return nil
}

func (r *ledgerRepository) GetEscrowByID(ctx context.Context, id uint) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := r.db.WithContext(ctx).First(&escrow, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("failed to get escrow: %w", translateErr(err))
	}
	return &escrow, nil
}

func (r *ledgerRepository) GetEscrowByOrderID(ctx context.Context, orderID uint) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&escrow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("failed to get escrow: %w", translateErr(err))
	}
	return &escrow, nil
}

func (r *ledgerRepository) TransitionEscrow(ctx context.Context, escrowID uint, from string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Escrow{}).
		Where("id = ? AND status = ?", escrowID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to transition escrow: %w", translateErr(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrEscrowStateConflict
	}
	return nil
}

func (r *ledgerRepository) GetLoanForUpdate(ctx context.Context, loanID uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, loanID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to lock loan: %w", translateErr(err))
	}
	return &loan, nil
}

func (r *ledgerRepository) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	res := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", loan.ID).
		Updates(map[string]interface{}{
			"paid_amount": loan.PaidAmount,
			"status":      loan.Status,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update loan: %w", translateErr(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *ledgerRepository) CreateCreditEvent(ctx context.Context, event *models.CreditEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create credit event: %w", translateErr(err))
	}
	return nil
}
