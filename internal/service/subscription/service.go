package subscription_service

import (
	"strings"
	"time"

	"minibus-console/internal/models"
)

const (
	perRideDuration = 24 * time.Hour
	monthlyDuration = 30 * 24 * time.Hour
)

// Window is the validity period of a rider-bus link.
type Window struct {
	StartDate time.Time
	EndDate   time.Time
}

// Clock is the time source used by the engine.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }

// ComputeWindow starts the window at now. A plan change always restarts it.
func ComputeWindow(subscriptionType models.SubscriptionType, now time.Time) (Window, error) {
	switch subscriptionType {
	case models.SubscriptionPerRide:
		return Window{StartDate: now, EndDate: now.Add(perRideDuration)}, nil
	case models.SubscriptionMonthly:
		return Window{StartDate: now, EndDate: now.Add(monthlyDuration)}, nil
	}
	return Window{}, models.NewError(models.KindInvalidSubscriptionType,
		"invalid subscription type %q: expected %q or %q",
		subscriptionType, models.SubscriptionPerRide, models.SubscriptionMonthly)
}

// IsExpired: a missing end date never expires.
func IsExpired(endDate *time.Time, now time.Time) bool {
	return endDate != nil && !endDate.After(now)
}

// TransitionPayment allows any status to move to any other. Requesting the
// current status is accepted and reported as unchanged.
func TransitionPayment(current, requested models.PaymentStatus) (models.PaymentStatus, bool, error) {
	if !requested.Valid() {
		return current, false, models.NewError(models.KindInvalidArgument,
			"invalid payment status %q: expected unpaid, pending or paid", requested)
	}
	return requested, current != requested, nil
}

func ParseSubscriptionType(value string) (models.SubscriptionType, error) {
	t := models.SubscriptionType(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", models.NewError(models.KindInvalidSubscriptionType,
			"invalid subscription type %q: expected %q or %q",
			value, models.SubscriptionPerRide, models.SubscriptionMonthly)
	}
	return t, nil
}

func ParsePaymentStatus(value string) (models.PaymentStatus, error) {
	s := models.PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", models.NewError(models.KindInvalidArgument,
			"invalid payment status %q: expected unpaid, pending or paid", value)
	}
	return s, nil
}

// ApplyWindow stamps w onto link.
func ApplyWindow(link *models.RiderLink, w Window) {
	start, end := w.StartDate, w.EndDate
	link.StartDate = &start
	link.EndDate = &end
}
