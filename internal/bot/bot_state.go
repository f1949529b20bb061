package bot

import "minibus-console/internal/models"

type BotState int

const (
	StateDefault BotState = iota

	// Пошаговое назначение пассажира
	StateSelectingBus
	StateSelectingRider
	StateSelectingPlan
	StateSelectingStop
	StateConfirmingAssignment
)

type UserSession struct {
	State BotState

	BusesForSelection  []*models.Bus
	RidersForSelection []*models.User

	SelectedBus      *models.Bus
	SelectedRider    *models.User
	SelectedPlan     models.SubscriptionType
	SelectedLocation string
}

func (b *Bot) getOrCreateSession(chatID int64) *UserSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	if session, exists := b.userSessions[chatID]; exists {
		return session
	}

	session := &UserSession{State: StateDefault}
	b.userSessions[chatID] = session
	return session
}

func (b *Bot) resetSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.userSessions, chatID)
}
