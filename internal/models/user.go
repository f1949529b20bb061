package models

import "time"

const (
	RoleAdmin  = "admin"
	RoleDriver = "driver"
	RoleRider  = "rider"
)

// User is stored in the shared "users" collection; Role tells riders,
// drivers and admins apart.
type User struct {
	ID               string          `json:"id"`
	Role             string          `json:"role"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone,omitempty"`
	Address          string          `json:"address,omitempty"`
	EmergencyContact string          `json:"emergencyContact,omitempty"`
	LicenseNumber    string          `json:"licenseNumber,omitempty"`
	BusAssignments   []BusAssignment `json:"busAssignments,omitempty"`
	DriverBuses      []DriverBus     `json:"driverBuses,omitempty"`
	CreatedAt        *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time      `json:"updatedAt,omitempty"`
}

// BusAssignment mirrors a RiderLink on the rider document, keyed by bus.
type BusAssignment struct {
	BusID            string           `json:"busId"`
	BusName          string           `json:"busName,omitempty"`
	SubscriptionType SubscriptionType `json:"subscriptionType"`
	PaymentStatus    PaymentStatus    `json:"paymentStatus"`
	LocationID       string           `json:"locationId,omitempty"`
	StartDate        *time.Time       `json:"startDate,omitempty"`
	EndDate          *time.Time       `json:"endDate,omitempty"`
}

// DriverBus is informational: which buses a driver operates.
type DriverBus struct {
	BusID   string `json:"busId"`
	BusName string `json:"busName,omitempty"`
}

func (u *User) IsRider() bool  { return u.Role == RoleRider }
func (u *User) IsDriver() bool { return u.Role == RoleDriver }

// FindAssignment returns the mirror entry for busID.
func (u *User) FindAssignment(busID string) (BusAssignment, bool) {
	for _, a := range u.BusAssignments {
		if a.BusID == busID {
			return a, true
		}
	}
	return BusAssignment{}, false
}
