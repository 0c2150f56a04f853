package handlers

import (
	"agropay/internal/models"
	"agropay/internal/services/ledger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// extractUserClaims is a helper function to reduce duplication
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func actorFrom(c *fiber.Ctx, claims *models.UserClaims) ledger.Actor {
	return ledger.Actor{
		ID:   claims.UserID,
		Role: claims.Role,
		IP:   c.IP(),
	}
}

// idempotencyKey reads the Idempotency-Key header, falling back to the body
// field for clients that cannot set headers. Returns nil when absent.
func idempotencyKey(c *fiber.Ctx, bodyKey string) *string {
	if key := c.Get("Idempotency-Key"); key != "" {
		return &key
	}
	if bodyKey != "" {
		return &bodyKey
	}
	return nil
}
