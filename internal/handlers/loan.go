package handlers

import (
	"agropay/internal/services/ledger"
	"agropay/internal/services/wallet"
	"agropay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type LoanHandler struct {
	walletService wallet.Service
	ledgerService ledger.Service
}

func NewLoanHandler(walletService wallet.Service, ledgerService ledger.Service) *LoanHandler {
	return &LoanHandler{
		walletService: walletService,
		ledgerService: ledgerService,
	}
}

// RepayLoan settles part or all of an active loan from the caller's wallet.
func (h *LoanHandler) RepayLoan(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	loanID, err := c.ParamsInt("id")
	if err != nil || loanID < 1 {
		return utils.BadRequest(c, "invalid loan id")
	}

	var input struct {
		Amount         decimal.Decimal `json:"amount" validate:"required"`
		Pin            string          `json:"pin"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	w, err := h.walletService.Get(c.Context(), claims.UserID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	pinVerified := false
	if input.Pin != "" {
		pinVerified, err = h.walletService.VerifyPin(c.Context(), w.ID, input.Pin)
		if err != nil {
			return utils.DomainErrorResponse(c, err)
		}
	}

	res, err := h.ledgerService.RepayLoan(c.Context(), ledger.RepayLoanRequest{
		WalletID:       w.ID,
		LoanID:         uint(loanID),
		Amount:         input.Amount,
		IdempotencyKey: idempotencyKey(c, input.IdempotencyKey),
		PinVerified:    pinVerified,
		Actor:          actorFrom(c, claims),
	})
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, res)
}

// MarkDefaulted is the admin path for writing off an active loan.
func (h *LoanHandler) MarkDefaulted(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	loanID, err := c.ParamsInt("id")
	if err != nil || loanID < 1 {
		return utils.BadRequest(c, "invalid loan id")
	}

	event, err := h.ledgerService.MarkLoanDefaulted(c.Context(), uint(loanID), actorFrom(c, claims))
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{"credit_event": event})
}
