package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"minibus-console/internal/models"
	subscription_service "minibus-console/internal/service/subscription"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// Пошаговое назначение: автобус → пассажир → тариф → остановка → подтверждение

func (b *Bot) startAssignFlow(ctx context.Context, chatID int64) {
	buses, err := b.BusService.List(ctx)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if len(buses) == 0 {
		b.sendText(chatID, "📭 Автобусов пока нет")
		return
	}

	session := b.getOrCreateSession(chatID)
	session.State = StateSelectingBus
	session.BusesForSelection = buses

	var sb strings.Builder
	sb.WriteString("🚌 Выберите автобус:\n\n")
	for i, bus := range buses {
		sb.WriteString(fmt.Sprintf("%d. %s - %d/%d\n", i+1, bus.Name, len(bus.CurrentRiders), bus.MaxCapacity))
	}
	sb.WriteString("\nВведите номер автобуса или отправьте '❌ Отмена'")
	b.sendWithKeyboard(chatID, sb.String(), createCancelKeyboard())
}

func (b *Bot) handleBusSelection(ctx context.Context, chatID int64, text string) {
	session := b.getOrCreateSession(chatID)
	idx, ok := parseChoice(text, len(session.BusesForSelection))
	if !ok {
		b.sendText(chatID, "❌ Введите номер из списка")
		return
	}
	session.SelectedBus = session.BusesForSelection[idx]

	riders, err := b.UserService.List(ctx, models.RoleRider)
	if err != nil {
		b.resetSession(chatID)
		b.sendError(chatID, err)
		return
	}
	if len(riders) == 0 {
		b.resetSession(chatID)
		b.sendMenu(chatID, "📭 Пассажиров пока нет")
		return
	}
	session.RidersForSelection = riders
	session.State = StateSelectingRider

	var sb strings.Builder
	sb.WriteString("👥 Выберите пассажира:\n\n")
	for i, rider := range riders {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, rider.Name, rider.Email))
	}
	b.sendWithKeyboard(chatID, sb.String(), createCancelKeyboard())
}

func (b *Bot) handleRiderSelection(chatID int64, text string) {
	session := b.getOrCreateSession(chatID)
	idx, ok := parseChoice(text, len(session.RidersForSelection))
	if !ok {
		b.sendText(chatID, "❌ Введите номер из списка")
		return
	}
	session.SelectedRider = session.RidersForSelection[idx]
	session.State = StateSelectingPlan

	b.sendWithKeyboard(chatID, "🎫 Выберите тариф:", createPlanKeyboard())
}

func (b *Bot) handlePlanSelection(chatID int64, text string) {
	session := b.getOrCreateSession(chatID)
	plan, err := subscription_service.ParseSubscriptionType(text)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	session.SelectedPlan = plan

	if len(session.SelectedBus.Locations) == 0 {
		session.State = StateConfirmingAssignment
		b.askConfirmation(chatID, session)
		return
	}
	session.State = StateSelectingStop
	b.sendWithKeyboard(chatID, "📍 Выберите остановку:", createStopsKeyboard(session.SelectedBus))
}

func (b *Bot) handleStopSelection(chatID int64, text string) {
	session := b.getOrCreateSession(chatID)
	number, _, _ := strings.Cut(text, ".")
	idx, ok := parseChoice(number, len(session.SelectedBus.Locations))
	if !ok {
		b.sendText(chatID, "❌ Выберите остановку из списка")
		return
	}
	session.SelectedLocation = session.SelectedBus.Locations[idx].ID
	session.State = StateConfirmingAssignment
	b.askConfirmation(chatID, session)
}

func (b *Bot) askConfirmation(chatID int64, session *UserSession) {
	stop := "без остановки"
	for _, loc := range session.SelectedBus.Locations {
		if loc.ID == session.SelectedLocation {
			stop = loc.Name
		}
	}
	text := fmt.Sprintf("Назначить %s на %s?\nТариф: %s\nОстановка: %s",
		session.SelectedRider.Name, session.SelectedBus.Name, session.SelectedPlan, stop)
	b.sendWithKeyboard(chatID, text, createConfirmKeyboard())
}

func (b *Bot) handleAssignmentConfirmation(ctx context.Context, chatID int64, text string) {
	if text != btnConfirm {
		b.sendText(chatID, "Нажмите '✅ Подтвердить' или '❌ Отмена'")
		return
	}
	session := b.getOrCreateSession(chatID)
	riderID, busID := session.SelectedRider.ID, session.SelectedBus.ID
	plan, location := session.SelectedPlan, session.SelectedLocation
	b.resetSession(chatID)

	res, err := b.AssignmentService.Assign(ctx, riderID, busID, plan, location)
	if err != nil {
		b.sendMenu(chatID, "❌ "+err.Error())
		return
	}
	b.sendMenu(chatID, formatAssignment(res))
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

// parseChoice turns a 1-based list number into an index.
func parseChoice(text string, n int) (int, bool) {
	choice, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || choice < 1 || choice > n {
		return 0, false
	}
	return choice - 1, true
}
