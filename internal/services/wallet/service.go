package wallet

import (
	"context"
	"errors"

	errs "agropay/internal/errors"
	"agropay/internal/models"
	"agropay/internal/repositories"
	"agropay/internal/utils"

	"github.com/sirupsen/logrus"
)

var errCacheMiss = errors.New("wallet cache miss")

type service struct {
	repo   repositories.WalletRepository
	cache  Cache
	logger *logrus.Entry
}

// NewService creates the wallet lifecycle service.
func NewService(repo repositories.WalletRepository, cache Cache) Service {
	if repo == nil {
		panic("repo is required")
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &service{
		repo:   repo,
		cache:  cache,
		logger: logrus.WithField("component", "wallet"),
	}
}

func (s *service) GetOrCreate(ctx context.Context, ownerID uint, ownerType string) (*models.Wallet, error) {
	w, err := s.repo.GetByOwnerID(ctx, ownerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, s.storageError(err)
	}

	if ownerType == "" {
		ownerType = models.OwnerTypeFarmer
	}
	w = &models.Wallet{OwnerID: ownerID, OwnerType: ownerType}
	if err := s.repo.Create(ctx, w); err != nil {
		// Two first requests racing: the unique owner index lets one insert
		// through, the other reads the winner back.
		if errors.Is(err, repositories.ErrWalletExists) {
			return s.Get(ctx, ownerID)
		}
		return nil, s.storageError(err)
	}
	s.logger.WithFields(logrus.Fields{"owner_id": ownerID, "wallet_id": w.ID}).Info("wallet provisioned")
	return w, nil
}

func (s *service) Get(ctx context.Context, ownerID uint) (*models.Wallet, error) {
	if w, err := s.cache.GetWallet(ctx, ownerID); err == nil {
		return w, nil
	}

	w, err := s.repo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errs.ErrWalletNotFound
		}
		return nil, s.storageError(err)
	}
	if err := s.cache.SetWallet(ctx, w); err != nil {
		s.logger.WithError(err).WithField("owner_id", ownerID).Warn("wallet cache write failed")
	}
	return w, nil
}

func (s *service) GetByWalletID(ctx context.Context, walletID uint) (*models.Wallet, error) {
	w, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errs.ErrWalletNotFound
		}
		return nil, s.storageError(err)
	}
	return w, nil
}

func (s *service) SetPin(ctx context.Context, walletID uint, pin string) error {
	if err := utils.ValidatePinFormat(pin); err != nil {
		return errs.ErrInvalidPin
	}
	hash, err := utils.HashPin(pin)
	if err != nil {
		return s.storageError(err)
	}
	if err := s.repo.SetPin(ctx, walletID, hash); err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return errs.ErrWalletNotFound
		}
		return s.storageError(err)
	}
	return s.invalidateByWalletID(ctx, walletID)
}

func (s *service) VerifyPin(ctx context.Context, walletID uint, pin string) (bool, error) {
	w, err := s.GetByWalletID(ctx, walletID)
	if err != nil {
		return false, err
	}
	if !w.HasPin() {
		return false, errs.ErrPinRequired
	}
	if !utils.CheckPin(*w.PinHash, pin) {
		return false, errs.ErrInvalidPin
	}
	return true, nil
}

func (s *service) SetVerified(ctx context.Context, walletID uint, verified bool) error {
	if err := s.repo.SetVerified(ctx, walletID, verified); err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return errs.ErrWalletNotFound
		}
		return s.storageError(err)
	}
	return s.invalidateByWalletID(ctx, walletID)
}

func (s *service) Deactivate(ctx context.Context, walletID uint) error {
	w, err := s.GetByWalletID(ctx, walletID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, walletID); err != nil {
		return s.storageError(err)
	}
	if err := s.cache.DeleteWallet(ctx, w.OwnerID); err != nil {
		s.logger.WithError(err).WithField("owner_id", w.OwnerID).Warn("cache invalidation failed")
	}
	return nil
}

func (s *service) Transactions(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	txns, err := s.repo.ListTransactions(ctx, walletID, limit, offset)
	if err != nil {
		return nil, s.storageError(err)
	}
	return txns, nil
}

func (s *service) AuditLogs(ctx context.Context, walletID uint, limit, offset int) ([]models.WalletAuditLog, error) {
	rows, err := s.repo.ListAuditLogs(ctx, walletID, limit, offset)
	if err != nil {
		return nil, s.storageError(err)
	}
	return rows, nil
}

func (s *service) CreditEvents(ctx context.Context, walletID uint, limit, offset int) ([]models.CreditEvent, error) {
	events, err := s.repo.ListCreditEvents(ctx, walletID, limit, offset)
	if err != nil {
		return nil, s.storageError(err)
	}
	return events, nil
}

func (s *service) CreditScore(ctx context.Context, walletID uint) (int64, error) {
	score, err := s.repo.CreditScore(ctx, walletID)
	if err != nil {
		return 0, s.storageError(err)
	}
	return score, nil
}

func (s *service) invalidateByWalletID(ctx context.Context, walletID uint) error {
	w, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		return nil
	}
	if err := s.cache.DeleteWallet(ctx, w.OwnerID); err != nil {
		s.logger.WithError(err).WithField("owner_id", w.OwnerID).Warn("cache invalidation failed")
	}
	return nil
}

func (s *service) storageError(err error) error {
	s.logger.WithError(err).Error("wallet storage failure")
	return errs.ErrInternalStorage
}
