package handlers

import (
	"agropay/internal/services/wallet"
	"agropay/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	walletService wallet.Service
}

func NewAdminHandler(walletService wallet.Service) *AdminHandler {
	return &AdminHandler{walletService: walletService}
}

// GetAuditLogs exposes the append-only audit trail for a wallet.
func (h *AdminHandler) GetAuditLogs(c *fiber.Ctx) error {
	walletID, err := c.ParamsInt("id")
	if err != nil || walletID < 1 {
		return utils.BadRequest(c, "invalid wallet id")
	}

	p := utils.GetPagination(c, 1, 50)
	rows, err := h.walletService.AuditLogs(c.Context(), uint(walletID), p.Limit, p.Offset)
	if err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, utils.NewPaginatedResponse(rows, p))
}

// SetVerified flips the KYC verification flag on a wallet.
func (h *AdminHandler) SetVerified(c *fiber.Ctx) error {
	walletID, err := c.ParamsInt("id")
	if err != nil || walletID < 1 {
		return utils.BadRequest(c, "invalid wallet id")
	}

	var input struct {
		Verified bool `json:"verified"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	if err := h.walletService.SetVerified(c.Context(), uint(walletID), input.Verified); err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "wallet verification updated"})
}

// DeactivateWallet soft deletes a wallet; its rows and history remain for
// audit purposes.
func (h *AdminHandler) DeactivateWallet(c *fiber.Ctx) error {
	walletID, err := c.ParamsInt("id")
	if err != nil || walletID < 1 {
		return utils.BadRequest(c, "invalid wallet id")
	}

	if err := h.walletService.Deactivate(c.Context(), uint(walletID)); err != nil {
		return utils.DomainErrorResponse(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "wallet deactivated"})
}
