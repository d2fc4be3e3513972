package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"barbershop-queue/internal/config"
	"barbershop-queue/internal/models"

	"github.com/go-redis/redismock/v9"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func testLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       10,
		RefillTokens:   1,
		RefillInterval: 6 * time.Second,
		TTL:            10 * time.Minute,
		Prefix:         "rl",
	}
}

func limitedApp(l *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Post("/queue/add",
		func(c *fiber.Ctx) error {
			c.Locals(callerKey, models.Caller{UserID: "u1", Role: models.RoleClient})
			return c.Next()
		},
		l.Handler(),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) },
	)
	return app
}

func expectTake(mock redismock.ClientMock, cfg config.RateLimitConfig) *redismock.ExpectedCmd {
	return mock.ExpectEvalSha(tokenBucket.Hash(), []string{"rl:user:u1:route:POST /queue/add"},
		fixedNow.UnixMilli(), cfg.Capacity, cfg.RefillTokens, cfg.RefillInterval.Milliseconds(), int64(600))
}

func newTestLimiter(cfg config.RateLimitConfig) (*RateLimiter, redismock.ClientMock) {
	rdb, mock := redismock.NewClientMock()
	l := NewRateLimiter(cfg, rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	l.now = func() time.Time { return fixedNow }
	return l, mock
}

func TestRateLimiter_Allows(t *testing.T) {
	cfg := testLimitConfig()
	l, mock := newTestLimiter(cfg)
	expectTake(mock, cfg).SetVal([]interface{}{int64(1), int64(9), int64(0)})

	resp, err := limitedApp(l).Test(httptest.NewRequest(http.MethodPost, "/queue/add", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "9", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Rejects(t *testing.T) {
	cfg := testLimitConfig()
	l, mock := newTestLimiter(cfg)
	limited := 0
	l.OnLimited(func() { limited++ })
	expectTake(mock, cfg).SetVal([]interface{}{int64(0), int64(0), int64(4200)})

	resp, err := limitedApp(l).Test(httptest.NewRequest(http.MethodPost, "/queue/add", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Retry-After"))
	assert.Equal(t, 1, limited)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	cfg := testLimitConfig()
	l, mock := newTestLimiter(cfg)
	expectTake(mock, cfg).SetErr(errors.New("connection refused"))

	resp, err := limitedApp(l).Test(httptest.NewRequest(http.MethodPost, "/queue/add", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := testLimitConfig()
	cfg.Enabled = false
	l, mock := newTestLimiter(cfg)

	resp, err := limitedApp(l).Test(httptest.NewRequest(http.MethodPost, "/queue/add", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
