package handlers

import (
	"agropay/internal/services/ledger"
	"agropay/internal/services/wallet"
	"agropay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	walletService wallet.Service
	ledgerService ledger.Service
}

func NewWalletHandler(walletService wallet.Service, ledgerService ledger.Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		ledgerService: ledgerService,
	}
}

// GetWallet returns the caller's wallet, provisioning it on first contact.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.GetOrCreate(c.Context(), claims.UserID, c.Query("owner_type"))
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	score, err := h.walletService.CreditScore(c.Context(), w.ID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	return utils.Success(c, fiber.Map{
		"wallet":       w,
		"credit_score": score,
	})
}

func (h *WalletHandler) SetPin(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Pin string `json:"pin" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if err := validate.Struct(input); err != nil {
		return utils.BadRequest(c, "pin is required")
	}

	w, err := h.walletService.Get(c.Context(), claims.UserID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	if err := h.walletService.SetPin(c.Context(), w.ID, input.Pin); err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "pin updated"})
}

func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.Get(c.Context(), claims.UserID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	p := utils.GetPagination(c, 1, 20)
	txns, err := h.walletService.Transactions(c.Context(), w.ID, p.Limit, p.Offset)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, utils.NewPaginatedResponse(txns, p))
}

func (h *WalletHandler) GetCreditEvents(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.Get(c.Context(), claims.UserID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	p := utils.GetPagination(c, 1, 20)
	events, err := h.walletService.CreditEvents(c.Context(), w.ID, p.Limit, p.Offset)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	score, err := h.walletService.CreditScore(c.Context(), w.ID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{
		"credit_score": score,
		"events":       utils.NewPaginatedResponse(events, p),
	})
}

func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Amount         decimal.Decimal `json:"amount" validate:"required"`
		Description    string          `json:"description"`
		DescriptionSw  string          `json:"description_sw"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	w, err := h.walletService.GetOrCreate(c.Context(), claims.UserID, "")
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	res, err := h.ledgerService.Deposit(c.Context(), ledger.DepositRequest{
		WalletID:       w.ID,
		Amount:         input.Amount,
		Description:    input.Description,
		DescriptionSw:  input.DescriptionSw,
		IdempotencyKey: idempotencyKey(c, input.IdempotencyKey),
		Actor:          actorFrom(c, claims),
	})
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, res)
}

func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Amount         decimal.Decimal `json:"amount" validate:"required"`
		Pin            string          `json:"pin"`
		Description    string          `json:"description"`
		DescriptionSw  string          `json:"description_sw"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	w, err := h.walletService.Get(c.Context(), claims.UserID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	pinVerified, err := h.verifyPinIfGiven(c, w.ID, input.Pin)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	res, err := h.ledgerService.Withdraw(c.Context(), ledger.WithdrawRequest{
		WalletID:       w.ID,
		Amount:         input.Amount,
		Description:    input.Description,
		DescriptionSw:  input.DescriptionSw,
		IdempotencyKey: idempotencyKey(c, input.IdempotencyKey),
		PinVerified:    pinVerified,
		Actor:          actorFrom(c, claims),
	})
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, res)
}

// verifyPinIfGiven checks a supplied PIN against the wallet. An absent PIN is
// not an error here; the ledger rejects the operation if the amount needs one.
func (h *WalletHandler) verifyPinIfGiven(c *fiber.Ctx, walletID uint, pin string) (bool, error) {
	if pin == "" {
		return false, nil
	}
	return h.walletService.VerifyPin(c.Context(), walletID, pin)
}
