package database

import (
	"fmt"
	"time"

	"minibus-console/internal/models/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const rabbitAttempts = 5

// NewRabbitMQ dials with a linear backoff; the broker often starts after us.
func NewRabbitMQ(cfg config.RabbitMQConfig, log *zap.Logger) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= rabbitAttempts; attempt++ {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			log.Info("Подключено к RabbitMQ", zap.String("exchange", cfg.Exchange))
			return conn, nil
		}
		lastErr = err
		log.Warn("RabbitMQ not yet ready, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", rabbitAttempts, lastErr)
}
