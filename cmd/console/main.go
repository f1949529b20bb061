package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"minibus-console/internal/bot"
	"minibus-console/internal/events"
	"minibus-console/internal/lease"
	"minibus-console/internal/metrics"
	"minibus-console/internal/models/config"
	"minibus-console/internal/repository"
	bus_repository "minibus-console/internal/repository/bus"
	"minibus-console/internal/repository/memory"
	mongo_store "minibus-console/internal/repository/mongo"
	"minibus-console/internal/repository/postgres"
	user_repository "minibus-console/internal/repository/user"
	"minibus-console/internal/service"
	assignment_service "minibus-console/internal/service/assignment"
	bus_service "minibus-console/internal/service/bus"
	expiry_service "minibus-console/internal/service/expiry"
	subscription_service "minibus-console/internal/service/subscription"
	user_service "minibus-console/internal/service/user"
	"minibus-console/internal/web"
	database "minibus-console/pkg"
	"minibus-console/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			newRegistry,
			newMetrics,
			newStore,
			newPublisher,
			newLocker,
			subscription_service.SystemClock,
			assignment_service.NewLocks,
			bus_repository.NewBusRepository,
			user_repository.NewUserRepository,
			assignment_service.NewAssignmentService,
			expiry_service.NewExpiryService,
			bus_service.NewBusService,
			user_service.NewUserService,
			newRunner,
			newSweeper,
			web.NewHandler,
			newHTTPServer,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(
			func(*http.Server) {},
			func(*expiry_service.Runner) {},
			startBot,
		),
	).Run()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.Info("🚀 Запуск", zap.String("env", cfg.Environment), zap.String("store", cfg.Store.Driver))
	return log, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func newStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (repository.DocumentStore, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(db)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate document tables: %w", err)
		}

		lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
		return store, nil

	case config.StoreMongo:
		client, err := database.NewMongo(cfg.Mongo, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: client.Disconnect})
		return mongo_store.NewStore(client.Database(cfg.Mongo.Database)), nil
	}

	log.Warn("using in-memory store, data is lost on restart")
	return memory.NewStore(), nil
}

// newPublisher falls back to a no-op publisher when RabbitMQ is not configured or unreachable.
func newPublisher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) events.Publisher {
	if cfg.RabbitMQ.URL == "" {
		return events.NopPublisher{}
	}

	conn, err := database.NewRabbitMQ(cfg.RabbitMQ, log)
	if err != nil {
		log.Error("RabbitMQ unavailable, continuing without events", zap.Error(err))
		return events.NopPublisher{}
	}
	publisher, err := events.NewRabbitPublisher(conn, cfg.RabbitMQ.Exchange, log)
	if err != nil {
		conn.Close()
		log.Error("failed to set up event exchange, continuing without events", zap.Error(err))
		return events.NopPublisher{}
	}

	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		_ = publisher.Close()
		return conn.Close()
	}})
	return publisher
}

func newLocker(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (lease.Locker, error) {
	if cfg.Redis.Addr == "" {
		return lease.NewLocalLocker(), nil
	}

	client, err := database.NewRedis(cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
	return lease.NewRedisLocker(client), nil
}

func newRunner(lc fx.Lifecycle, svc service.ExpiryService, locker lease.Locker, cfg *config.Config, log *zap.Logger) *expiry_service.Runner {
	runner := expiry_service.NewRunner(svc, locker, cfg.Sweeper, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runner.Start()
			return nil
		},
		OnStop: runner.Stop,
	})
	return runner
}

// newSweeper makes manual sweeps take the same lease as the periodic one.
func newSweeper(runner *expiry_service.Runner) service.Sweeper {
	return runner
}

func newHTTPServer(lc fx.Lifecycle, cfg *config.Config, h *web.Handler, m *metrics.Metrics, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           web.NewRouter(h, m, reg, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("🌐 HTTP сервер запущен", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
	return srv
}

func startBot(
	lc fx.Lifecycle,
	cfg *config.Config,
	assignmentService service.AssignmentService,
	expiryService service.ExpiryService,
	sweeper service.Sweeper,
	busService service.BusService,
	userService service.UserService,
	log *zap.Logger,
) error {
	if !cfg.Bot.Enabled() {
		log.Info("BOT_TOKEN не задан, бот отключён")
		return nil
	}

	telegramBot, err := bot.NewBot(cfg.Bot, assignmentService, expiryService, sweeper, busService, userService, log)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := telegramBot.Start(); err != nil {
					log.Error("❌ Ошибка запуска бота", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			telegramBot.Stop()
			return nil
		},
	})
	return nil
}
