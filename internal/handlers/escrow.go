package handlers

import (
	"context"

	"agropay/internal/services/ledger"
	"agropay/internal/services/wallet"
	"agropay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type EscrowHandler struct {
	walletService wallet.Service
	ledgerService ledger.Service
}

func NewEscrowHandler(walletService wallet.Service, ledgerService ledger.Service) *EscrowHandler {
	return &EscrowHandler{
		walletService: walletService,
		ledgerService: ledgerService,
	}
}

// CreateEscrow holds the caller's funds against an order. The buyer is always
// the authenticated wallet owner.
func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		OrderID        uint            `json:"order_id" validate:"required"`
		SellerWalletID uint            `json:"seller_wallet_id" validate:"required"`
		Amount         decimal.Decimal `json:"amount" validate:"required"`
		Notes          string          `json:"notes"`
		Pin            string          `json:"pin"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if err := validate.Struct(input); err != nil {
		return utils.BadRequest(c, "order_id, seller_wallet_id and amount are required")
	}

	buyer, err := h.walletService.Get(c.Context(), claims.UserID)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}

	pinVerified := false
	if input.Pin != "" {
		pinVerified, err = h.walletService.VerifyPin(c.Context(), buyer.ID, input.Pin)
		if err != nil {
			return utils.DomainErrorResponse(c, err)
		}
	}

	res, err := h.ledgerService.CreateEscrow(c.Context(), ledger.CreateEscrowRequest{
		OrderID:        input.OrderID,
		BuyerWalletID:  buyer.ID,
		SellerWalletID: input.SellerWalletID,
		Amount:         input.Amount,
		Notes:          input.Notes,
		IdempotencyKey: idempotencyKey(c, input.IdempotencyKey),
		PinVerified:    pinVerified,
		Actor:          actorFrom(c, claims),
	})
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Created(c, res)
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	if _, err := extractUserClaims(c); err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	escrowID, err := c.ParamsInt("id")
	if err != nil || escrowID < 1 {
		return utils.BadRequest(c, "invalid escrow id")
	}

	escrow, err := h.ledgerService.GetEscrow(c.Context(), uint(escrowID))
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{"escrow": escrow})
}

func (h *EscrowHandler) ReleaseEscrow(c *fiber.Ctx) error {
	return h.escrowAction(c, h.ledgerService.ReleaseEscrow)
}

func (h *EscrowHandler) RefundEscrow(c *fiber.Ctx) error {
	return h.escrowAction(c, h.ledgerService.RefundEscrow)
}

// escrowAction is the shared body of release and refund: both take an escrow
// id plus an optional idempotency key and return the moved wallets.
func (h *EscrowHandler) escrowAction(c *fiber.Ctx, fn func(context.Context, ledger.EscrowActionRequest) (*ledger.EscrowResult, error)) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	escrowID, err := c.ParamsInt("id")
	if err != nil || escrowID < 1 {
		return utils.BadRequest(c, "invalid escrow id")
	}

	var input struct {
		IdempotencyKey string `json:"idempotency_key"`
	}
	// The body is optional for these actions.
	_ = c.BodyParser(&input)

	res, err := fn(c.Context(), ledger.EscrowActionRequest{
		EscrowID:       uint(escrowID),
		IdempotencyKey: idempotencyKey(c, input.IdempotencyKey),
		Actor:          actorFrom(c, claims),
	})
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, res)
}

func (h *EscrowHandler) DisputeEscrow(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	escrowID, err := c.ParamsInt("id")
	if err != nil || escrowID < 1 {
		return utils.BadRequest(c, "invalid escrow id")
	}

	var input struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if err := validate.Struct(input); err != nil {
		return utils.BadRequest(c, "reason is required")
	}

	escrow, err := h.ledgerService.MarkEscrowDisputed(c.Context(), uint(escrowID), input.Reason, actorFrom(c, claims))
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{"escrow": escrow})
}

// CancelEscrow is the admin-only annotation path for orders voided outside
// the payment flow.
func (h *EscrowHandler) CancelEscrow(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	escrowID, err := c.ParamsInt("id")
	if err != nil || escrowID < 1 {
		return utils.BadRequest(c, "invalid escrow id")
	}

	var input struct {
		Note string `json:"note"`
	}
	_ = c.BodyParser(&input)

	escrow, err := h.ledgerService.MarkEscrowCancelled(c.Context(), uint(escrowID), input.Note, actorFrom(c, claims))
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{"escrow": escrow})
}
