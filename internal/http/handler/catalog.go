package handler

import "github.com/gofiber/fiber/v2"

func (h *Handler) AvailableBarbers(c *fiber.Ctx) error {
	barbers, err := h.queue.AvailableBarbers(c.UserContext())
	if err != nil {
		return h.fail(c, "handler.AvailableBarbers", err)
	}
	return c.JSON(fiber.Map{"data": barbers})
}

func (h *Handler) Services(c *fiber.Ctx) error {
	services, err := h.queue.Services(c.UserContext())
	if err != nil {
		return h.fail(c, "handler.Services", err)
	}
	return c.JSON(fiber.Map{"data": services})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
