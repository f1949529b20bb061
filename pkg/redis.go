package database

import (
	"context"
	"fmt"
	"time"

	"minibus-console/internal/models/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewRedis(cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Подключено к Redis", zap.String("addr", cfg.Addr))
	return client, nil
}
