package bot

import (
	"fmt"

	"minibus-console/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

const (
	btnBuses     = "🚌 Автобусы"
	btnAssign    = "➕ Назначить пассажира"
	btnExpire    = "🧹 Удалить истёкшие"
	btnReconcile = "🔧 Сверка связей"
	btnCancel    = "❌ Отмена"
	btnConfirm   = "✅ Подтвердить"
)

func createMainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBuses),
			tgbotapi.NewKeyboardButton(btnAssign),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnExpire),
			tgbotapi.NewKeyboardButton(btnReconcile),
		),
	)
}

func createCancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

func createPlanKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(models.SubscriptionPerRide)),
			tgbotapi.NewKeyboardButton(string(models.SubscriptionMonthly)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

func createStopsKeyboard(bus *models.Bus) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(bus.Locations)+1)
	for i, loc := range bus.Locations {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(fmt.Sprintf("%d. %s", i+1, loc.Name)),
		))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
	return tgbotapi.NewReplyKeyboard(rows...)
}

func createConfirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}
