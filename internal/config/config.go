package config

import "time"

const (
	EnvLocal = "local"
	EnvDev   = "development"
	EnvProd  = "production"
)

type Config struct {
	Env  string
	Host string
	Port string

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret string
	TokenTTL  time.Duration

	Redis     RedisConfig
	RateLimit RateLimitConfig

	RabbitMQURL     string
	StreamHeartbeat time.Duration
	MetricsEnabled  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Load reads the process environment (after LoadEnv) into a Config.
// Database coordinates and the JWT secret are required.
func Load() Config {
	return Config{
		Env:  GetEnv("APP_ENV", EnvLocal),
		Host: GetEnv("APP_HOST", ""),
		Port: GetEnv("APP_PORT", "8080"),

		DBUser: must("DB_USER"),
		DBPass: GetEnv("DB_PASSWORD", ""),
		DBHost: must("DB_HOST"),
		DBPort: GetEnv("DB_PORT", "3306"),
		DBName: must("DB_NAME"),

		JWTSecret: must("JWT_SECRET"),
		TokenTTL:  envDur("TOKEN_TTL", 24*time.Hour),

		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
			Channel:  GetEnv("REDIS_QUEUE_CHANNEL", "queue:updates"),
		},
		RateLimit: LoadRateLimitConfig(),

		RabbitMQURL:     GetEnv("RABBITMQ_URL", ""),
		StreamHeartbeat: envDur("STREAM_HEARTBEAT", 30*time.Second),
		MetricsEnabled:  envBool("METRICS_ENABLED", true),
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
