// Package repositories provides the data access layer. It owns connection
// setup, schema migration, and the repository implementations over GORM.
package repositories

import (
	"fmt"
	"time"

	"agropay/internal/config"
	"agropay/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig holds database connection and pool configuration.
type DBConfig struct {
	URL            string
	PoolSize       int
	PoolOverflow   int
	AcquireTimeout time.Duration
}

// DBConfigFromEnv reads the connection knobs from the environment.
func DBConfigFromEnv() DBConfig {
	url := config.GetEnv("DATABASE_URL", "")
	if url == "" {
		url = "host=" + config.GetEnv("DB_HOST", "localhost") +
			" user=" + config.GetEnv("DB_USER", "postgres") +
			" password=" + config.GetEnv("DB_PASSWORD", "postgres") +
			" dbname=" + config.GetEnv("DB_NAME", "agropay") +
			" port=" + config.GetEnv("DB_PORT", "5432") +
			" sslmode=" + config.GetEnv("DB_SSLMODE", "disable")
	}
	return DBConfig{
		URL:            url,
		PoolSize:       config.GetIntEnv("DB_POOL_SIZE", 5),
		PoolOverflow:   config.GetIntEnv("DB_POOL_OVERFLOW", 10),
		AcquireTimeout: config.GetDurationEnv("POOL_ACQUIRE_TIMEOUT", 30*time.Second),
	}
}

// Connect opens the database handle with the configured pool. The handle is
// constructed once at startup and injected into repositories; there is no
// package-level database state.
func Connect(cfg DBConfig) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if config.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetMaxOpenConns(cfg.PoolSize + cfg.PoolOverflow)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(cfg.AcquireTimeout)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"pool_size": cfg.PoolSize,
		"overflow":  cfg.PoolOverflow,
	}).Info("postgres connected")

	return db, nil
}

// Migrate applies the schema. AutoMigrate covers tables and plain indexes;
// the statements below add the constraints the ledger contract depends on:
// the non-negative balance check, the version trigger, and the partial unique
// index on idempotency keys.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Wallet{},
		&models.Transaction{},
		&models.WalletAuditLog{},
		&models.Escrow{},
		&models.Loan{},
		&models.CreditEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	statements := []string{
		`ALTER TABLE wallets DROP CONSTRAINT IF EXISTS wallets_balance_non_negative`,
		`ALTER TABLE wallets ADD CONSTRAINT wallets_balance_non_negative
			CHECK (balance >= 0 AND escrow_balance >= 0)`,
		`CREATE OR REPLACE FUNCTION enforce_wallet_version() RETURNS trigger AS $$
		BEGIN
			IF NEW.version IS DISTINCT FROM OLD.version + 1 THEN
				RAISE EXCEPTION 'wallet % version must advance by exactly 1 (old %, new %)',
					OLD.id, OLD.version, NEW.version;
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS wallet_version_guard ON wallets`,
		`CREATE TRIGGER wallet_version_guard BEFORE UPDATE ON wallets
			FOR EACH ROW EXECUTE FUNCTION enforce_wallet_version()`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idempotency_key
			ON transactions (idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_audit_logs_wallet_created
			ON wallet_audit_logs (wallet_id, created_at)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	logrus.Info("migrations applied")
	return nil
}

// Close shuts the underlying connection pool down.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
