package handler

import (
	"time"

	"barbershop-queue/internal/http/middleware"
	"barbershop-queue/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Login issues a token and also stores it in an HTTP-only cookie so the browser's
// EventSource can authenticate the stream.
func (h *Handler) Login(c *fiber.Ctx) error {
	const op = "handler.Login"

	var req models.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	resp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, op, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.opts.SessionTTL),
		HTTPOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"token":   resp.Token,
		"user":    resp.User,
		"message": "Welcome back, " + resp.User.Name,
	})
}
