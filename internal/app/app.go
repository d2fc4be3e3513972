package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"barbershop-queue/internal/config"
	"barbershop-queue/internal/database"
	"barbershop-queue/internal/events"
	"barbershop-queue/internal/http/handler"
	"barbershop-queue/internal/http/middleware"
	"barbershop-queue/internal/http/router"
	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/metrics"
	"barbershop-queue/internal/realtime"
	"barbershop-queue/internal/repository"
	"barbershop-queue/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// App owns every long-lived resource of the server process.
type App struct {
	log  *slog.Logger
	addr string

	fiber       *fiber.App
	db          *sql.DB
	rdb         *redis.Client
	broadcaster *realtime.Broadcaster
	queue       *service.Queue
	stopRelay   context.CancelFunc
}

func New(log *slog.Logger, cfg config.Config) (*App, error) {
	const op = "app.New"

	runtime.GOMAXPROCS(runtime.NumCPU())

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	broadcaster := realtime.NewBroadcaster(realtime.WithSubscriberGauge(m.SetSubscribers))

	a := &App{
		log:         log,
		addr:        cfg.Addr(),
		db:          db,
		broadcaster: broadcaster,
	}

	// Redis is optional: without it the server runs as a single instance with no join limit.
	var notifier service.Notifier = broadcaster
	var scripter redis.Scripter
	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, running without relay and rate limit", sl.Err(err))
	} else {
		a.rdb = rdb
		scripter = rdb

		relay := realtime.NewRedisRelay(log, broadcaster, rdb, cfg.Redis.Channel)
		notifier = relay

		ctx, cancel := context.WithCancel(context.Background())
		a.stopRelay = cancel
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("queue relay stopped", sl.Err(err))
			}
		}()
	}
	if m != nil {
		notifier = m.CountNotifications(notifier)
	}

	var publisher service.CompletionPublisher
	if cfg.RabbitMQURL != "" {
		publisher = events.NewPublisher(cfg.RabbitMQURL)
	}

	var recorder service.Recorder
	if m != nil {
		recorder = m
	}

	tokens := config.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	queueSvc := service.NewQueue(
		log,
		repository.NewQueueRepo(db),
		repository.NewCatalogRepo(db),
		notifier,
		publisher,
		recorder,
	)
	a.queue = queueSvc
	authSvc := service.NewAuth(log, repository.NewUserRepo(db), tokens, recorder)

	h := handler.New(log, queueSvc, authSvc, broadcaster, handler.Options{
		Heartbeat:    cfg.StreamHeartbeat,
		SessionTTL:   tokens.TTL(),
		SecureCookie: cfg.Env == config.EnvProd,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit, scripter, log)
	if m != nil {
		limiter.OnLimited(m.RateLimited.Inc)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		StrictRouting: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST",
	}))

	deps := router.Deps{
		Handler:   h,
		Tokens:    tokens,
		JoinLimit: limiter.Handler(),
	}
	if m != nil {
		deps.Metrics = m.Handler()
	}
	router.Register(app, deps)

	a.fiber = app
	return a, nil
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "app.Run"

	a.log.Info("http server started", slog.String("addr", a.addr))
	if err := a.fiber.Listen(a.addr); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop ends open streams first so the HTTP shutdown does not wait on them.
func (a *App) Stop() error {
	const op = "app.Stop"

	a.broadcaster.Close()
	if a.stopRelay != nil {
		a.stopRelay()
	}

	if err := a.fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		a.log.Warn("http shutdown incomplete", slog.String("op", op), sl.Err(err))
	}
	a.queue.Wait()

	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
