package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agropay/internal/models"

	"github.com/redis/go-redis/v9"
)

const walletKeyPrefix = "wallet:owner:"

// CacheService wraps the Redis client with wallet cache-aside helpers.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheService creates a cache service with a default TTL.
func NewCacheService(client *redis.Client, ttl time.Duration) *CacheService {
	return &CacheService{client: client, ttl: ttl}
}

func (s *CacheService) GetWallet(ctx context.Context, ownerID uint) (*models.Wallet, error) {
	val, err := s.client.Get(ctx, walletKey(ownerID)).Result()
	if err != nil {
		return nil, err
	}
	var wallet models.Wallet
	if err := json.Unmarshal([]byte(val), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *CacheService) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, walletKey(wallet.OwnerID), data, s.ttl).Err()
}

func (s *CacheService) DeleteWallet(ctx context.Context, ownerID uint) error {
	return s.client.Del(ctx, walletKey(ownerID)).Err()
}

// FlushAll clears the cache; used at startup so stale balances never survive
// a deploy.
func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

// Close closes the underlying Redis connection.
func (s *CacheService) Close() error {
	return s.client.Close()
}

func walletKey(ownerID uint) string {
	return fmt.Sprintf("%s%d", walletKeyPrefix, ownerID)
}
