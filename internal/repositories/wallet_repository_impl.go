package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agropay/internal/models"

	"gorm.io/gorm"
)

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository builds the GORM-backed wallet lifecycle repository.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if wallet.LastWithdrawReset.IsZero() {
		wallet.LastWithdrawReset = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if errors.Is(translateErr(err), ErrDuplicateIdempotencyKey) {
			return ErrWalletExists
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetByOwnerID(ctx context.Context, ownerID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// Lifecycle updates also advance the version: the wallet trigger rejects any
// update that does not, so every mutation stays visible in the version chain.

func (r *walletRepository) SetPin(ctx context.Context, walletID uint, pinHash string) error {
	return r.bumpUpdate(ctx, walletID, map[string]interface{}{"pin_hash": pinHash})
}

func (r *walletRepository) SetVerified(ctx context.Context, walletID uint, verified bool) error {
	return r.bumpUpdate(ctx, walletID, map[string]interface{}{"verified": verified})
}

func (r *walletRepository) SoftDelete(ctx context.Context, walletID uint) error {
	return r.bumpUpdate(ctx, walletID, map[string]interface{}{"deleted_at": time.Now().UTC()})
}

func (r *walletRepository) bumpUpdate(ctx context.Context, walletID uint, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (r *walletRepository) ListAuditLogs(ctx context.Context, walletID uint, limit, offset int) ([]models.WalletAuditLog, error) {
	var logs []models.WalletAuditLog
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func (r *walletRepository) ListCreditEvents(ctx context.Context, walletID uint, limit, offset int) ([]models.CreditEvent, error) {
	var events []models.CreditEvent
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credit events: %w", err)
	}
	return events, nil
}

func (r *walletRepository) CreditScore(ctx context.Context, walletID uint) (int64, error) {
	var score int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditEvent{}).
		Where("wallet_id = ?", walletID).
		Select("COALESCE(SUM(score_impact), 0)").
		Scan(&score).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum credit score: %w", err)
	}
	return score, nil
}
