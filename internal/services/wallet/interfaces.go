package wallet

import (
	"context"

	"agropay/internal/models"
)

// Service covers wallet lifecycle and display reads. Balance mutations are
// out of its reach; those go through the ledger operation service.
type Service interface {
	// GetOrCreate lazily provisions a wallet the first time an owner is seen.
	GetOrCreate(ctx context.Context, ownerID uint, ownerType string) (*models.Wallet, error)
	// Get is the cache-aside display read.
	Get(ctx context.Context, ownerID uint) (*models.Wallet, error)
	GetByWalletID(ctx context.Context, walletID uint) (*models.Wallet, error)

	SetPin(ctx context.Context, walletID uint, pin string) error
	VerifyPin(ctx context.Context, walletID uint, pin string) (bool, error)
	SetVerified(ctx context.Context, walletID uint, verified bool) error
	Deactivate(ctx context.Context, walletID uint) error

	Transactions(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)
	AuditLogs(ctx context.Context, walletID uint, limit, offset int) ([]models.WalletAuditLog, error)
	CreditEvents(ctx context.Context, walletID uint, limit, offset int) ([]models.CreditEvent, error)
	CreditScore(ctx context.Context, walletID uint) (int64, error)
}

// Cache is the display cache used by Get. Misses and cache failures fall
// through to the database.
type Cache interface {
	GetWallet(ctx context.Context, ownerID uint) (*models.Wallet, error)
	SetWallet(ctx context.Context, wallet *models.Wallet) error
	DeleteWallet(ctx context.Context, ownerID uint) error
}

type noopCache struct{}

func (noopCache) GetWallet(context.Context, uint) (*models.Wallet, error) {
	return nil, errCacheMiss
}
func (noopCache) SetWallet(context.Context, *models.Wallet) error { return nil }
func (noopCache) DeleteWallet(context.Context, uint) error        { return nil }
