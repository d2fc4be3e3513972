package middleware

import (
	"strings"

	"barbershop-queue/internal/config"
	"barbershop-queue/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	SessionCookie = "session"
	callerKey     = "caller"
)

type TokenValidator interface {
	ValidateToken(token string) (*config.JWTClaims, error)
}

// JWTAuth accepts the token from an "Authorization: Bearer" header or, for browsers and
// EventSource which cannot set headers, from the session cookie.
func JWTAuth(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := ""
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return unauthorized(c, "Invalid authorization format")
			}
			raw = tokenParts[1]
		} else {
			raw = c.Cookies(SessionCookie)
		}
		if raw == "" {
			return unauthorized(c, "Missing session")
		}

		claims, err := tokens.ValidateToken(raw)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(callerKey, models.Caller{
			UserID: claims.UserID,
			Name:   claims.Name,
			Role:   claims.Role,
		})

		return c.Next()
	}
}

func RoleAuth(allowedRoles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return unauthorized(c, "Missing session")
		}

		for _, allowedRole := range allowedRoles {
			if caller.Role == allowedRole {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "You do not have access to this resource",
		})
	}
}

// CallerFrom returns the identity stored by JWTAuth.
func CallerFrom(c *fiber.Ctx) (models.Caller, bool) {
	caller, ok := c.Locals(callerKey).(models.Caller)
	return caller, ok
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
