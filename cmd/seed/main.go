// Seed creates demo wallets and an active loan for local development, and
// prints a development JWT for each owner.
package main

import (
	"context"
	"log"
	"time"

	"agropay/internal/config"
	"agropay/internal/models"
	"agropay/internal/repositories"
	"agropay/internal/utils"

	"github.com/shopspring/decimal"
)

func main() {
	config.LoadEnv()

	db, err := repositories.Connect(repositories.DBConfigFromEnv())
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			log.Printf("failed to close database connection: %v", err)
		}
	}()

	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	secret := config.GetEnv("JWT_SECRET", "agropay-dev-secret")

	seeds := []struct {
		ownerID   uint
		ownerType string
		role      string
		balance   decimal.Decimal
	}{
		{ownerID: 1, ownerType: models.OwnerTypeFarmer, role: "user", balance: decimal.NewFromInt(5000)},
		{ownerID: 2, ownerType: models.OwnerTypeBuyer, role: "user", balance: decimal.NewFromInt(20000)},
		{ownerID: 3, ownerType: models.OwnerTypeCooperative, role: "user", balance: decimal.NewFromInt(100000)},
		{ownerID: 9, ownerType: models.OwnerTypeAdmin, role: "admin", balance: decimal.Zero},
	}

	repo := repositories.NewWalletRepository(db)
	ctx := context.Background()

	for _, s := range seeds {
		w, err := repo.GetByOwnerID(ctx, s.ownerID)
		if err == nil {
			log.Printf("wallet for owner %d already exists (id %d)", s.ownerID, w.ID)
		} else {
			w = &models.Wallet{
				OwnerID:           s.ownerID,
				OwnerType:         s.ownerType,
				Balance:           s.balance,
				LastWithdrawReset: time.Now().UTC(),
			}
			if err := repo.Create(ctx, w); err != nil {
				log.Fatalf("failed to create wallet for owner %d: %v", s.ownerID, err)
			}
			log.Printf("created %s wallet %d for owner %d with balance %s",
				s.ownerType, w.ID, s.ownerID, s.balance)
		}

		token, err := utils.GenerateToken(s.ownerID, s.role, secret, 24*time.Hour)
		if err != nil {
			log.Fatalf("failed to sign token for owner %d: %v", s.ownerID, err)
		}
		log.Printf("owner %d token: %s", s.ownerID, token)
	}

	// One active loan for the farmer so the repayment flow can be exercised.
	var loanCount int64
	if err := db.Model(&models.Loan{}).Where("wallet_id = ?", 1).Count(&loanCount).Error; err != nil {
		log.Fatalf("failed to count loans: %v", err)
	}
	if loanCount == 0 {
		loan := models.Loan{
			WalletID: 1,
			Amount:   decimal.NewFromInt(3000),
			DueDate:  time.Now().UTC().Add(30 * 24 * time.Hour),
			Status:   models.LoanStatusActive,
		}
		if err := db.Create(&loan).Error; err != nil {
			log.Fatalf("failed to create loan: %v", err)
		}
		log.Printf("created active loan %d for wallet 1", loan.ID)
	}

	log.Println("seed complete")
}
