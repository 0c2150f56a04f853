// Package routes defines the API routing configuration.
package routes

import (
	"time"

	"agropay/internal/config"
	"agropay/internal/handlers"
	"agropay/internal/middleware"
	"agropay/internal/repositories"
	"agropay/internal/services/ledger"
	"agropay/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

// Deps carries the shared infrastructure the route tree needs.
type Deps struct {
	DB      *gorm.DB
	Cache   wallet.Cache
	Invalid ledger.CacheInvalidator
	Metrics ledger.MetricsCollector
}

// SetupRoutes configures all application routes. It groups routes by
// functionality and applies authentication and rate limits.
func SetupRoutes(app *fiber.App, deps Deps) {
	ledgerRepo := repositories.NewLedgerRepository(deps.DB)
	walletRepo := repositories.NewWalletRepository(deps.DB)

	walletService := wallet.NewService(walletRepo, deps.Cache)
	ledgerService := ledger.NewService(ledgerRepo, deps.Invalid, ledger.Config{
		TxTimeout:              config.GetDurationEnv("TX_TIMEOUT", ledger.DefaultTxTimeout),
		VersionConflictRetries: config.GetIntEnv("VERSION_CONFLICT_RETRIES", ledger.DefaultVersionConflictRetries),
		VersionConflictBackoff: config.GetDurationEnv("VERSION_CONFLICT_BACKOFF", ledger.DefaultVersionConflictBackoff),
	}, deps.Metrics)

	walletHandler := handlers.NewWalletHandler(walletService, ledgerService)
	escrowHandler := handlers.NewEscrowHandler(walletService, ledgerService)
	loanHandler := handlers.NewLoanHandler(walletService, ledgerService)
	adminHandler := handlers.NewAdminHandler(walletService)

	app.Get("/health", handlers.HealthCheck(deps.DB))

	authMiddleware := middleware.NewAuthMiddleware(config.GetEnv("JWT_SECRET", "agropay-dev-secret"))

	api := app.Group("/api/v1", authMiddleware.Handler)

	// Money-moving routes get a per-IP limiter; reads do not.
	mutation := limiter.New(limiter.Config{
		Max:        config.GetIntEnv("MUTATION_RATE_LIMIT", 30),
		Expiration: time.Minute,
	})

	api.Get("/wallet", walletHandler.GetWallet)
	api.Post("/wallet/pin", walletHandler.SetPin)
	api.Get("/wallet/transactions", walletHandler.GetTransactions)
	api.Get("/wallet/credit-events", walletHandler.GetCreditEvents)
	api.Post("/wallet/deposit", mutation, walletHandler.Deposit)
	api.Post("/wallet/withdraw", mutation, walletHandler.Withdraw)

	api.Post("/loans/:id/repay", mutation, loanHandler.RepayLoan)

	api.Post("/escrows", mutation, escrowHandler.CreateEscrow)
	api.Get("/escrows/:id", escrowHandler.GetEscrow)
	api.Post("/escrows/:id/release", mutation, escrowHandler.ReleaseEscrow)
	api.Post("/escrows/:id/refund", mutation, escrowHandler.RefundEscrow)
	api.Post("/escrows/:id/dispute", escrowHandler.DisputeEscrow)

	admin := api.Group("/admin", middleware.AdminOnly)
	admin.Get("/wallets/:id/audit-logs", adminHandler.GetAuditLogs)
	admin.Post("/wallets/:id/verify", adminHandler.SetVerified)
	admin.Delete("/wallets/:id", adminHandler.DeactivateWallet)
	admin.Post("/escrows/:id/cancel", escrowHandler.CancelEscrow)
	admin.Post("/loans/:id/default", loanHandler.MarkDefaulted)
}
