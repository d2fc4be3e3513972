package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"barbershop-queue/internal/http/middleware"
	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/models"
	"barbershop-queue/internal/realtime"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type QueueService interface {
	Join(ctx context.Context, caller models.Caller, barberID string, serviceIDs []string) (*models.QueueEntry, error)
	Status(ctx context.Context, caller models.Caller) (*models.QueueView, error)
	Move(ctx context.Context, caller models.Caller, entryID string, dir models.Direction) error
	Cancel(ctx context.Context, caller models.Caller, entryID string) error
	Complete(ctx context.Context, caller models.Caller, req models.CompleteQueueRequest) (string, error)
	RemoveService(ctx context.Context, caller models.Caller, entryID, serviceID string) error
	BarberQueue(ctx context.Context, caller models.Caller, barberID string) ([]models.BarberQueueEntry, error)
	AvailableBarbers(ctx context.Context) ([]models.Barber, error)
	Services(ctx context.Context) ([]models.Service, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
}

// Subscriber is the registry side of the broadcaster used by streaming connections.
type Subscriber interface {
	Register() *realtime.Subscription
	Deregister(sub *realtime.Subscription)
}

type Options struct {
	Heartbeat    time.Duration
	SessionTTL   time.Duration
	SecureCookie bool
}

type Handler struct {
	log      *slog.Logger
	queue    QueueService
	auth     AuthService
	subs     Subscriber
	validate *validator.Validate
	opts     Options
}

func New(log *slog.Logger, queue QueueService, auth AuthService, subs Subscriber, opts Options) *Handler {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Handler{
		log:      log,
		queue:    queue,
		auth:     auth,
		subs:     subs,
		validate: validator.New(),
		opts:     opts,
	}
}

// bind parses the JSON body into dst and runs its validate tags. The returned error
// is safe to show to the client.
func (h *Handler) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errInvalidBody
	}
	if err := h.validate.Struct(dst); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

var (
	errInvalidBody    = errors.New("invalid request body")
	errMissingQueueID = errors.New("queueId is required")
)

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " is invalid (" + verrs[0].Tag() + ")"
	}
	return "Validation failed"
}

// caller is only absent when a route was mounted without JWTAuth.
func caller(c *fiber.Ctx) models.Caller {
	who, _ := middleware.CallerFrom(c)
	return who
}

/*
|--------------------------------------------------------------------------
| ERROR MAPPING
|--------------------------------------------------------------------------
*/

type errorStatus struct {
	target error
	status int
}

var errorStatuses = []errorStatus{
	{models.ErrUnauthorized, fiber.StatusUnauthorized},
	{models.ErrForbidden, fiber.StatusForbidden},
	{models.ErrAlreadyInQueue, fiber.StatusConflict},
	{models.ErrBarberUnavailable, fiber.StatusUnprocessableEntity},
	{models.ErrInvalidServices, fiber.StatusUnprocessableEntity},
	{models.ErrInvalidDirection, fiber.StatusUnprocessableEntity},
	{models.ErrCannotRemoveLastService, fiber.StatusUnprocessableEntity},
	{models.ErrInsufficientStock, fiber.StatusUnprocessableEntity},
	{models.ErrInvalidPayment, fiber.StatusUnprocessableEntity},
	{models.ErrNotFound, fiber.StatusNotFound},
	{models.ErrNotInQueue, fiber.StatusNotFound},
	{models.ErrValidation, fiber.StatusBadRequest},
}

// fail writes the status for a domain error. Anything unrecognised is logged and
// reported as a generic 500.
func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	for _, es := range errorStatuses {
		if errors.Is(err, es.target) {
			return c.Status(es.status).JSON(fiber.Map{
				"success": false,
				"error":   es.target.Error(),
			})
		}
	}

	h.log.Error("request failed",
		slog.String("op", op),
		slog.String("path", c.Path()),
		sl.Err(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Internal server error",
	})
}
