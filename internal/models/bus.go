package models

import "time"

// TimeRange is a time-of-day interval in "HH:MM" form.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RouteLocation is a pickup/dropoff point on a bus route.
type RouteLocation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ArrivalTime TimeRange `json:"arrivalTime"`
}

// Bus - маршрут с ограниченной вместимостью
type Bus struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Label          string          `json:"label,omitempty"`
	DriverID       string          `json:"driverId,omitempty"`
	Locations      []RouteLocation `json:"locations,omitempty"`
	WorkingDays    []string        `json:"workingDays,omitempty"`
	OperatingHours TimeRange       `json:"operatingHours"`
	PricePerRide   float64         `json:"pricePerRide"`
	PricePerMonth  float64         `json:"pricePerMonth"`
	MaxCapacity    int             `json:"maxCapacity"`
	CurrentRiders  []RiderLink     `json:"currentRiders,omitempty"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time      `json:"updatedAt,omitempty"`
}

// HasLocation reports whether locationID names one of the route stops.
func (b *Bus) HasLocation(locationID string) bool {
	for _, loc := range b.Locations {
		if loc.ID == locationID {
			return true
		}
	}
	return false
}

// RiderLink is a rider's entry in Bus.CurrentRiders.
type RiderLink struct {
	RiderID          string           `json:"riderId"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	SubscriptionType SubscriptionType `json:"subscriptionType"`
	PaymentStatus    PaymentStatus    `json:"paymentStatus"`
	LocationID       string           `json:"locationId,omitempty"`
	StartDate        *time.Time       `json:"startDate,omitempty"`
	EndDate          *time.Time       `json:"endDate,omitempty"`
}

// Mirror builds the rider-side copy of the link.
func (l RiderLink) Mirror(bus *Bus) BusAssignment {
	return BusAssignment{
		BusID:            bus.ID,
		BusName:          bus.Name,
		SubscriptionType: l.SubscriptionType,
		PaymentStatus:    l.PaymentStatus,
		LocationID:       l.LocationID,
		StartDate:        l.StartDate,
		EndDate:          l.EndDate,
	}
}
