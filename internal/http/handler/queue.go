package handler

import (
	"barbershop-queue/internal/models"

	"github.com/gofiber/fiber/v2"
)

/*
|--------------------------------------------------------------------------
| CUSTOMER
|--------------------------------------------------------------------------
*/

func (h *Handler) JoinQueue(c *fiber.Ctx) error {
	const op = "handler.JoinQueue"

	var req models.JoinQueueRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	entry, err := h.queue.Join(c.UserContext(), caller(c), req.BarberID, req.ServiceIDs)
	if err != nil {
		return h.fail(c, op, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"queueId": entry.ID,
	})
}

func (h *Handler) QueueStatus(c *fiber.Ctx) error {
	view, err := h.queue.Status(c.UserContext(), caller(c))
	if err != nil {
		return h.fail(c, "handler.QueueStatus", err)
	}
	if !view.InQueue {
		return c.JSON(fiber.Map{"inQueue": false})
	}
	return c.JSON(view)
}

// CancelQueue accepts an empty body; the caller's own entry is cancelled then.
func (h *Handler) CancelQueue(c *fiber.Ctx) error {
	const op = "handler.CancelQueue"

	var req models.CancelQueueRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return badRequest(c, err)
		}
	}

	if err := h.queue.Cancel(c.UserContext(), caller(c), req.QueueID); err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

/*
|--------------------------------------------------------------------------
| STAFF
|--------------------------------------------------------------------------
*/

func (h *Handler) MoveQueue(c *fiber.Ctx) error {
	const op = "handler.MoveQueue"

	var req models.MoveQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, errInvalidBody)
	}
	if req.QueueID == "" {
		return badRequest(c, errMissingQueueID)
	}

	// an unknown direction is a domain error (422), not a malformed request
	if err := h.queue.Move(c.UserContext(), caller(c), req.QueueID, req.Direction); err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) CompleteQueue(c *fiber.Ctx) error {
	const op = "handler.CompleteQueue"

	var req models.CompleteQueueRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	historyID, err := h.queue.Complete(c.UserContext(), caller(c), req)
	if err != nil {
		return h.fail(c, op, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"historyId": historyID,
	})
}

func (h *Handler) UpdateServices(c *fiber.Ctx) error {
	const op = "handler.UpdateServices"

	var req models.RemoveServiceRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	if err := h.queue.RemoveService(c.UserContext(), caller(c), req.QueueID, req.ServiceIDToRemove); err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) BarberQueue(c *fiber.Ctx) error {
	entries, err := h.queue.BarberQueue(c.UserContext(), caller(c), c.Params("barberId"))
	if err != nil {
		return h.fail(c, "handler.BarberQueue", err)
	}
	return c.JSON(fiber.Map{"data": entries})
}
