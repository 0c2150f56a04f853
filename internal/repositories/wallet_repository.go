package repositories

import (
	"context"

	"agropay/internal/models"
)

// WalletRepository covers wallet lifecycle and display reads. Balance writes
// never go through it; those belong to LedgerRepository.
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uint) (*models.Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID uint) (*models.Wallet, error)
	SetPin(ctx context.Context, walletID uint, pinHash string) error
	SetVerified(ctx context.Context, walletID uint, verified bool) error
	SoftDelete(ctx context.Context, walletID uint) error

	ListTransactions(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)
	ListAuditLogs(ctx context.Context, walletID uint, limit, offset int) ([]models.WalletAuditLog, error)
	ListCreditEvents(ctx context.Context, walletID uint, limit, offset int) ([]models.CreditEvent, error)
	CreditScore(ctx context.Context, walletID uint) (int64, error)
}
