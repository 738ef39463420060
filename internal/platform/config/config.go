package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type Config struct {
	Addr               string        `yaml:"addr"`
	Environment        string        `yaml:"environment"`
	StoreDriver        string        `yaml:"storeDriver"`
	DatabaseURL        string        `yaml:"databaseUrl"`
	DBMaxConns         int           `yaml:"dbMaxConns"`
	MigrationsDir      string        `yaml:"migrationsDir"`
	RunMigrations      bool          `yaml:"runMigrations"`
	RunSeed            bool          `yaml:"runSeed"`
	SeedCompanyName    string        `yaml:"seedCompanyName"`
	SeedAdminName      string        `yaml:"seedAdminName"`
	SeedAdminEmail     string        `yaml:"seedAdminEmail"`
	JWTSecret          string        `yaml:"jwtSecret"`
	LogLevel           string        `yaml:"logLevel"`
	LogFormat          string        `yaml:"logFormat"`
	MaxBodyBytes       int64         `yaml:"maxBodyBytes"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
	RateLimitBackend   string        `yaml:"rateLimitBackend"`
	RedisAddr          string        `yaml:"redisAddr"`
	RedisPassword      string        `yaml:"redisPassword"`
	RedisDB            int           `yaml:"redisDb"`
	CascadeConcurrency int           `yaml:"cascadeConcurrency"`
	MetricsEnabled     bool          `yaml:"metricsEnabled"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
}

func Defaults() Config {
	return Config{
		Addr:               ":8080",
		Environment:        "development",
		StoreDriver:        StoreDriverPostgres,
		DBMaxConns:         10,
		MigrationsDir:      "migrations",
		RunMigrations:      true,
		RunSeed:            true,
		SeedCompanyName:    "Default Company",
		SeedAdminName:      "HR Admin",
		LogLevel:           "info",
		LogFormat:          "json",
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 120,
		RateLimitBackend:   RateLimitMemory,
		CascadeConcurrency: 4,
		MetricsEnabled:     true,
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load layers configuration: defaults, then the optional YAML file, then environment variables
// (a local .env file is read into the environment first). An empty path falls back to CONFIG_FILE.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	cfg.Addr = getEnv("APP_ADDR", cfg.Addr)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxConns = getEnvInt("DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.RunMigrations = getEnvBool("RUN_MIGRATIONS", cfg.RunMigrations)
	cfg.RunSeed = getEnvBool("RUN_SEED", cfg.RunSeed)
	cfg.SeedCompanyName = getEnv("SEED_COMPANY_NAME", cfg.SeedCompanyName)
	cfg.SeedAdminName = getEnv("SEED_ADMIN_NAME", cfg.SeedAdminName)
	cfg.SeedAdminEmail = getEnv("SEED_ADMIN_EMAIL", cfg.SeedAdminEmail)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.RateLimitBackend = getEnv("RATE_LIMIT_BACKEND", cfg.RateLimitBackend)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.CascadeConcurrency = getEnvInt("CASCADE_CONCURRENCY", cfg.CascadeConcurrency)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverMemory:
		if c.Environment == "production" {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.RunSeed && strings.TrimSpace(c.SeedAdminEmail) == "" {
		return fmt.Errorf("SEED_ADMIN_EMAIL must be set or RUN_SEED disabled")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	switch c.RateLimitBackend {
	case RateLimitMemory:
	case RateLimitRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR must be set when RATE_LIMIT_BACKEND is redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	if c.CascadeConcurrency <= 0 {
		return fmt.Errorf("CASCADE_CONCURRENCY must be positive")
	}
	return nil
}
