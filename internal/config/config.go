package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Queue        QueueConfig
	Summary      SummaryConfig
	Worker       WorkerConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	KioskRatePerMinute    int
	KioskRateBurst        int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	BootstrapAdminEmail   string
	BootstrapAdminPass    string
}

// QueueConfig tunes admission and dispatch.
type QueueConfig struct {
	// CaseTypesFile overrides the embedded case-type catalog when set.
	CaseTypesFile    string
	PhoneRegion      string
	DefaultLanguage  string
	RetryAttempts    int
	RetryBaseDelayMS int
	RetryMaxDelayMS  int
}

// SummaryConfig configures the case summarizer.
type SummaryConfig struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// WorkerConfig configures the background task queue.
type WorkerConfig struct {
	Queue       string
	Concurrency int
	MaxRetry    int
}

// NotificationConfig holds the notifier hand-off settings.
type NotificationConfig struct {
	Channel string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "visitor-queue"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			KioskRatePerMinute:    getEnvAsInt("KIOSK_RATE_PER_MINUTE", 30),
			KioskRateBurst:        getEnvAsInt("KIOSK_RATE_BURST", 10),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminEmail:   os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPass:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Queue: QueueConfig{
			CaseTypesFile:    os.Getenv("QUEUE_CASE_TYPES_FILE"),
			PhoneRegion:      getEnv("QUEUE_PHONE_REGION", "US"),
			DefaultLanguage:  getEnv("QUEUE_DEFAULT_LANGUAGE", "en"),
			RetryAttempts:    getEnvAsInt("QUEUE_RETRY_ATTEMPTS", 5),
			RetryBaseDelayMS: getEnvAsInt("QUEUE_RETRY_BASE_DELAY_MS", 10),
			RetryMaxDelayMS:  getEnvAsInt("QUEUE_RETRY_MAX_DELAY_MS", 250),
		},
		Summary: SummaryConfig{
			APIKey:         os.Getenv("SUMMARY_API_KEY"),
			Model:          getEnv("SUMMARY_MODEL", "gemini-2.0-flash"),
			TimeoutSeconds: getEnvAsInt("SUMMARY_TIMEOUT_SECONDS", 30),
		},
		Worker: WorkerConfig{
			Queue:       getEnv("WORKER_QUEUE", "default"),
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
			MaxRetry:    getEnvAsInt("WORKER_MAX_RETRY", 3),
		},
		Notification: NotificationConfig{
			Channel: getEnv("QUEUE_NOTIFY_CHANNEL", "visitor-queue:notifications"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff interval.
func (q QueueConfig) RetryBaseDelay() time.Duration {
	return time.Duration(q.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (q QueueConfig) RetryMaxDelay() time.Duration {
	return time.Duration(q.RetryMaxDelayMS) * time.Millisecond
}

// Timeout returns the per-summary deadline.
func (s SummaryConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Enabled reports whether a summarizer can be built.
func (s SummaryConfig) Enabled() bool {
	return s.APIKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
