package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"minibus-console/internal/models"
	subscription_service "minibus-console/internal/service/subscription"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"
)

const handlerTimeout = 30 * time.Second

const helpText = `🚌 *Консоль маршрутов*

/buses - список автобусов
/roster <busId> - пассажиры автобуса
/assign <riderId> <busId> <per_ride|monthly> [locationId]
/pay <riderId> <busId> <unpaid|pending|paid>
/plan <riderId> <busId> <per_ride|monthly>
/remove <riderId> <busId>
/expire - удалить истёкшие подписки
/reconcile - сверка связей автобус/пассажир`

// Обработка сообщения здесь
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID
	b.log.Debug("message",
		zap.Int("from", message.From.ID),
		zap.String("username", message.From.UserName),
		zap.String("text", message.Text))

	if !b.admins[int64(message.From.ID)] {
		b.sendText(chatID, "⛔ Доступ только для администраторов")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	// Проверяем состояние пользователя ПРЕЖДЕ обработки команд
	session := b.getOrCreateSession(chatID)
	if session.State != StateDefault {
		if message.Text == btnCancel || message.Command() == "cancel" {
			b.cancelOperation(chatID)
			return
		}
		switch session.State {
		case StateSelectingBus:
			b.handleBusSelection(ctx, chatID, message.Text)
		case StateSelectingRider:
			b.handleRiderSelection(chatID, message.Text)
		case StateSelectingPlan:
			b.handlePlanSelection(chatID, message.Text)
		case StateSelectingStop:
			b.handleStopSelection(chatID, message.Text)
		case StateConfirmingAssignment:
			b.handleAssignmentConfirmation(ctx, chatID, message.Text)
		}
		return
	}

	if message.IsCommand() {
		args := strings.Fields(message.CommandArguments())
		switch message.Command() {
		case "start", "help":
			b.sendMenu(chatID, helpText)
		case "buses":
			b.handleBusesCommand(ctx, chatID)
		case "roster":
			b.handleRosterCommand(ctx, chatID, args)
		case "assign":
			b.handleAssignCommand(ctx, chatID, args)
		case "pay":
			b.handlePayCommand(ctx, chatID, args)
		case "plan":
			b.handlePlanCommand(ctx, chatID, args)
		case "remove":
			b.handleRemoveCommand(ctx, chatID, args)
		case "expire":
			b.handleExpireCommand(ctx, chatID)
		case "reconcile":
			b.handleReconcileCommand(ctx, chatID)
		case "newassign":
			b.startAssignFlow(ctx, chatID)
		default:
			b.sendText(chatID, "❓ Неизвестная команда. /help - список команд")
		}
		return
	}

	switch message.Text {
	case btnBuses:
		b.handleBusesCommand(ctx, chatID)
	case btnAssign:
		b.startAssignFlow(ctx, chatID)
	case btnExpire:
		b.handleExpireCommand(ctx, chatID)
	case btnReconcile:
		b.handleReconcileCommand(ctx, chatID)
	default:
		b.sendMenu(chatID, helpText)
	}
}

func (b *Bot) handleBusesCommand(ctx context.Context, chatID int64) {
	buses, err := b.BusService.List(ctx)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if len(buses) == 0 {
		b.sendText(chatID, "📭 Автобусов пока нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("🚌 Автобусы:\n\n")
	for _, bus := range buses {
		sb.WriteString(fmt.Sprintf("• %s (%s) - %d/%d мест\n", bus.Name, bus.ID, len(bus.CurrentRiders), bus.MaxCapacity))
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) handleRosterCommand(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.sendText(chatID, "Использование: /roster <busId>")
		return
	}
	bus, err := b.BusService.Get(ctx, args[0])
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendText(chatID, formatRoster(bus))
}

func (b *Bot) handleAssignCommand(ctx context.Context, chatID int64, args []string) {
	if len(args) < 3 || len(args) > 4 {
		b.sendText(chatID, "Использование: /assign <riderId> <busId> <per_ride|monthly> [locationId]")
		return
	}
	plan, err := subscription_service.ParseSubscriptionType(args[2])
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	locationID := ""
	if len(args) == 4 {
		locationID = args[3]
	}

	res, err := b.AssignmentService.Assign(ctx, args[0], args[1], plan, locationID)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendText(chatID, formatAssignment(res))
}

func (b *Bot) handlePayCommand(ctx context.Context, chatID int64, args []string) {
	if len(args) != 3 {
		b.sendText(chatID, "Использование: /pay <riderId> <busId> <unpaid|pending|paid>")
		return
	}
	status, err := subscription_service.ParsePaymentStatus(args[2])
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	res, err := b.AssignmentService.UpdatePaymentStatus(ctx, args[0], args[1], status)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if !res.Changed {
		b.sendText(chatID, fmt.Sprintf("ℹ️ Статус оплаты уже %s", status))
		return
	}
	b.sendText(chatID, fmt.Sprintf("💳 Статус оплаты: %s", status))
}

func (b *Bot) handlePlanCommand(ctx context.Context, chatID int64, args []string) {
	if len(args) != 3 {
		b.sendText(chatID, "Использование: /plan <riderId> <busId> <per_ride|monthly>")
		return
	}
	plan, err := subscription_service.ParseSubscriptionType(args[2])
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	res, err := b.AssignmentService.UpdateSubscriptionType(ctx, args[0], args[1], plan)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendText(chatID, formatAssignment(res))
}

func (b *Bot) handleRemoveCommand(ctx context.Context, chatID int64, args []string) {
	if len(args) != 2 {
		b.sendText(chatID, "Использование: /remove <riderId> <busId>")
		return
	}

	res, err := b.AssignmentService.Remove(ctx, args[0], args[1])
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	if !res.Changed {
		b.sendText(chatID, "ℹ️ Пассажир уже не привязан к автобусу")
		return
	}
	b.sendText(chatID, fmt.Sprintf("🗑 Пассажир удалён. Осталось мест занято: %d", len(res.Roster)))
}

func (b *Bot) handleExpireCommand(ctx context.Context, chatID int64) {
	report, err := b.Sweeper.Sweep(ctx)
	if err != nil && report == nil {
		b.sendError(chatID, err)
		return
	}

	text := fmt.Sprintf("🧹 Проверено автобусов: %d\nУдалено подписок: %d\nОбновлено пассажиров: %d\nПропущено: %d",
		report.BusesScanned, len(report.Evicted), report.RidersUpdated, report.RidersSkipped)
	if err != nil {
		text += fmt.Sprintf("\n⚠️ Ошибок: %d\n%s", report.Failures, err.Error())
	}
	b.sendText(chatID, text)
}

func (b *Bot) handleReconcileCommand(ctx context.Context, chatID int64) {
	report, err := b.ExpiryService.Reconcile(ctx)
	if err != nil && report == nil {
		b.sendError(chatID, err)
		return
	}

	text := fmt.Sprintf("🔧 Восстановлено записей: %d\nИсправлено: %d\nУдалено лишних: %d\nУдалено из ростеров: %d",
		report.MirrorsCreated, report.MirrorsUpdated, report.MirrorsDropped, report.OrphanLinksDropped)
	if err != nil {
		text += fmt.Sprintf("\n⚠️ Ошибок: %d\n%s", report.Failures, err.Error())
	}
	b.sendText(chatID, text)
}

func (b *Bot) cancelOperation(chatID int64) {
	b.resetSession(chatID)
	b.sendMenu(chatID, "❌ Операция отменена")
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	b.send(msg)
}

func (b *Bot) sendMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = createMainKeyboard()
	b.send(msg)
}

// sendError shows the engine message verbatim.
func (b *Bot) sendError(chatID int64, err error) {
	if models.KindOf(err) == "" {
		b.log.Error("command failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	b.sendText(chatID, "❌ "+err.Error())
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.sender.Send(c); err != nil {
		b.log.Warn("failed to send message", zap.Error(err))
	}
}

func formatRoster(bus *models.Bus) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🚌 %s - %d/%d мест\n\n", bus.Name, len(bus.CurrentRiders), bus.MaxCapacity))
	if len(bus.CurrentRiders) == 0 {
		sb.WriteString("Пассажиров нет")
		return sb.String()
	}
	for i, link := range bus.CurrentRiders {
		until := "без срока"
		if link.EndDate != nil {
			until = "до " + link.EndDate.Format("02.01.2006 15:04")
		}
		sb.WriteString(fmt.Sprintf("%d. %s (%s) - %s, %s, %s\n",
			i+1, link.Name, link.RiderID, link.SubscriptionType, link.PaymentStatus, until))
	}
	return sb.String()
}

func formatAssignment(res *models.AssignmentResult) string {
	verb := "✅ Пассажир назначен"
	if !res.Created {
		verb = "✅ Подписка обновлена"
	}
	text := fmt.Sprintf("%s: %s → %s", verb, res.RiderID, res.BusID)
	if res.Link != nil {
		text += fmt.Sprintf("\nТариф: %s, оплата: %s", res.Link.SubscriptionType, res.Link.PaymentStatus)
		if res.Link.EndDate != nil {
			text += "\nДействует до " + res.Link.EndDate.Format("02.01.2006 15:04")
		}
	}
	return text
}
