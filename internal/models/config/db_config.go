package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// DatabaseConfig конфигурация БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Name     string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Name, c.SSLMode,
	)
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real env vars win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Environment: env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Username: getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "minibus"),
			SSLMode:  getSSLMode(env),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "minibus"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("EVENTS_EXCHANGE", "minibus.events"),
		},
		Bot: BotConfig{
			Token:    getEnv("BOT_TOKEN", ""),
			Debug:    getEnvAsBool("BOT_DEBUG", env != "production"),
			AdminIDs: parseAdminIDs(getEnv("ADMIN_IDS", "")),
		},
		Sweeper: SweeperConfig{
			Interval: getEnvAsDuration("SWEEP_INTERVAL", 6*time.Hour),
			LeaseTTL: getEnvAsDuration("SWEEP_LEASE_TTL", 10*time.Minute),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate проверяет обязательные параметры
func validate(cfg *Config) error {
	var errors []string

	switch cfg.Store.Driver {
	case StoreMemory, StoreMongo:
	case StorePostgres:
		if cfg.Database.Username == "" {
			errors = append(errors, "DB_USER is required")
		}
		if cfg.Database.Password == "" && cfg.IsProduction() {
			errors = append(errors, "DB_PASSWORD is required in production")
		}
	default:
		errors = append(errors, fmt.Sprintf("unknown STORE_DRIVER %q", cfg.Store.Driver))
	}

	if cfg.Store.Driver == StoreMemory && cfg.IsProduction() {
		errors = append(errors, "STORE_DRIVER=memory is not allowed in production")
	}

	if cfg.Bot.Enabled() && len(cfg.Bot.AdminIDs) == 0 {
		errors = append(errors, "ADMIN_IDS is required when BOT_TOKEN is set")
	}

	if cfg.Sweeper.Interval <= 0 {
		errors = append(errors, "SWEEP_INTERVAL must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errors, ", "))
	}

	return nil
}

// getSSLMode возвращает режим SSL в зависимости от окружения
func getSSLMode(env string) string {
	if mode := os.Getenv("DB_SSLMODE"); mode != "" {
		return mode
	}
	if env == "production" {
		return "require"
	}
	return "disable"
}

// parseAdminIDs парсит список ID администраторов
func parseAdminIDs(ids string) []int64 {
	if ids == "" {
		return []int64{}
	}

	var result []int64
	for _, idStr := range strings.Split(ids, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64); err == nil {
			result = append(result, id)
		}
	}
	return result
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
