package models

type SubscriptionType string

const (
	SubscriptionPerRide SubscriptionType = "per_ride"
	SubscriptionMonthly SubscriptionType = "monthly"
)

func (t SubscriptionType) Valid() bool {
	return t == SubscriptionPerRide || t == SubscriptionMonthly
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentPaid:
		return true
	}
	return false
}
