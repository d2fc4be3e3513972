package router

import (
	"net/http"

	"barbershop-queue/internal/http/handler"
	"barbershop-queue/internal/http/middleware"
	"barbershop-queue/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type Deps struct {
	Handler *handler.Handler
	Tokens  middleware.TokenValidator
	// JoinLimit guards POST /queue/add; nil means unlimited.
	JoinLimit fiber.Handler
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

func Register(app *fiber.App, d Deps) {
	h := d.Handler

	app.Get("/healthz", h.Health)
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}

	// Public
	app.Post("/auth/login", h.Login)
	app.Get("/barbers/available", h.AvailableBarbers)
	app.Get("/services", h.Services)

	auth := middleware.JWTAuth(d.Tokens)
	staff := middleware.RoleAuth(models.RoleBarber, models.RoleAdmin)
	adminOnly := middleware.RoleAuth(models.RoleAdmin)

	app.Post("/auth/logout", auth, h.Logout)

	// Queue endpoints (every role)
	q := app.Group("/queue", auth)
	join := []fiber.Handler{h.JoinQueue}
	if d.JoinLimit != nil {
		join = append([]fiber.Handler{d.JoinLimit}, join...)
	}
	q.Post("/add", join...)
	q.Get("/status", h.QueueStatus)
	q.Post("/cancel", h.CancelQueue)
	q.Get("/stream", h.Stream)
	q.Get("/ws", handler.UpgradeCheck, h.QueueWebSocket())

	// Staff
	q.Post("/move", staff, h.MoveQueue)
	q.Post("/complete", staff, h.CompleteQueue)
	q.Get("/barber/:barberId", staff, h.BarberQueue)

	// Admin
	q.Post("/update-services", adminOnly, h.UpdateServices)
}
