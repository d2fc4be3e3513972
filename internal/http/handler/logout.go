package handler

import (
	"barbershop-queue/internal/http/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Logout(c *fiber.Ctx) error {
	c.ClearCookie(middleware.SessionCookie)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}
