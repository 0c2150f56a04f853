package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthCheck reports service liveness and a best-effort database ping.
func HealthCheck(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbStatus := "connected"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Context()) != nil {
			dbStatus = "unreachable"
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": "1.0.0",
			"services": fiber.Map{
				"database": dbStatus,
			},
		})
	}
}
