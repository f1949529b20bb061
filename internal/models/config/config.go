package config

import "time"

// Config основной конфиг
type Config struct {
	Environment string
	HTTPPort    string
	LogLevel    string
	CORSOrigins []string
	Store       StoreConfig
	Database    DatabaseConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	Bot         BotConfig
	Sweeper     SweeperConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

type BotConfig struct {
	Token    string
	Debug    bool
	AdminIDs []int64 // telegram ids allowed to use the console
}

// Enabled is false when no token is configured; the console then runs HTTP only.
func (c BotConfig) Enabled() bool {
	return c.Token != ""
}

type StoreConfig struct {
	Driver string // memory | postgres | mongo
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type SweeperConfig struct {
	Interval time.Duration
	LeaseTTL time.Duration
}
