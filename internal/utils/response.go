package utils

import (
	"errors"

	errs "agropay/internal/errors"

	"github.com/gofiber/fiber/v2"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// Created sends a JSON response with status 201.
func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{"error": message})
}

// Unauthorized sends a JSON error response with status 401.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusUnauthorized, fiber.Map{"error": message})
}

// InternalError sends a JSON error response with status 500.
func InternalError(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusInternalServerError, fiber.Map{"error": message})
}

// statusByCode maps domain error tags to HTTP statuses. Anything not listed
// is a client-side business rejection.
var statusByCode = map[string]int{
	errs.ErrWalletNotFound.Code:  fiber.StatusNotFound,
	errs.ErrEscrowNotFound.Code:  fiber.StatusNotFound,
	errs.ErrLoanNotFound.Code:    fiber.StatusNotFound,
	errs.ErrEscrowNotHeld.Code:   fiber.StatusConflict,
	errs.ErrContention.Code:      fiber.StatusConflict,
	errs.ErrInvalidPin.Code:      fiber.StatusForbidden,
	errs.ErrPinRequired.Code:     fiber.StatusForbidden,
	errs.ErrInternalStorage.Code: fiber.StatusInternalServerError,
}

// DomainErrorResponse renders a DomainError as its mapped status with the
// stable code and both message languages. Unknown errors become a plain 500
// with no internal detail attached.
func DomainErrorResponse(c *fiber.Ctx, err error) error {
	var domainErr *errs.DomainError
	if !errors.As(err, &domainErr) {
		return InternalError(c, "internal server error")
	}
	status, ok := statusByCode[domainErr.Code]
	if !ok {
		status = fiber.StatusUnprocessableEntity
	}
	return Respond(c, status, fiber.Map{
		"code":       domainErr.Code,
		"message":    domainErr.Message,
		"message_sw": domainErr.MessageSw,
	})
}
