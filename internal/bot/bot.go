package bot

import (
	"fmt"
	"sync"

	"minibus-console/internal/models/config"
	"minibus-console/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"
)

// sender is the part of tgbotapi.BotAPI the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender

	AssignmentService service.AssignmentService
	ExpiryService     service.ExpiryService
	Sweeper           service.Sweeper
	BusService        service.BusService
	UserService       service.UserService

	admins map[int64]bool
	log    *zap.Logger

	userSessions map[int64]*UserSession // chatID -> session
	mu           sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
}

func NewBot(
	cfg config.BotConfig,
	assignmentService service.AssignmentService,
	expiryService service.ExpiryService,
	sweeper service.Sweeper,
	busService service.BusService,
	userService service.UserService,
	log *zap.Logger,
) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("BOT_TOKEN не установлен в конфигурации")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = cfg.Debug

	b := newBot(api, cfg.AdminIDs, assignmentService, expiryService, sweeper, busService, userService, log)
	b.api = api

	b.log.Info("🤖 Бот инициализирован",
		zap.String("username", api.Self.UserName),
		zap.Bool("debug", cfg.Debug),
		zap.Int64s("admins", cfg.AdminIDs))
	return b, nil
}

func newBot(
	s sender,
	adminIDs []int64,
	assignmentService service.AssignmentService,
	expiryService service.ExpiryService,
	sweeper service.Sweeper,
	busService service.BusService,
	userService service.UserService,
	log *zap.Logger,
) *Bot {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Bot{
		sender:            s,
		AssignmentService: assignmentService,
		ExpiryService:     expiryService,
		Sweeper:           sweeper,
		BusService:        busService,
		UserService:       userService,
		admins:            admins,
		log:               log.Named("bot"),
		userSessions:      make(map[int64]*UserSession),
		done:              make(chan struct{}),
	}
}

// Start blocks until Stop is called. The library never closes the updates
// channel, so the loop watches the bot's own done channel.
func (b *Bot) Start() error {
	b.log.Info("Авторизован", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		return err
	}

	b.serve(updates)
	return nil
}

func (b *Bot) serve(updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-b.done:
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			go b.handleMessage(update.Message)
		}
	}
}

func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		if b.api != nil {
			b.api.StopReceivingUpdates()
		}
	})
}
