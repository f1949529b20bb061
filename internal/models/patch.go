package models

// BusPatch carries the bus fields an admin may change. Nil means untouched.
type BusPatch struct {
	Name           *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Label          *string          `json:"label,omitempty" validate:"omitempty,max=100"`
	Locations      *[]RouteLocation `json:"locations,omitempty"`
	WorkingDays    *[]string        `json:"workingDays,omitempty"`
	OperatingHours *TimeRange       `json:"operatingHours,omitempty"`
	PricePerRide   *float64         `json:"pricePerRide,omitempty" validate:"omitempty,gte=0"`
	PricePerMonth  *float64         `json:"pricePerMonth,omitempty" validate:"omitempty,gte=0"`
	MaxCapacity    *int             `json:"maxCapacity,omitempty" validate:"omitempty,gte=1"`
}

// UserPatch covers profile fields only; assignment lists belong to the coordinator.
type UserPatch struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty"`
	Address          *string `json:"address,omitempty"`
	EmergencyContact *string `json:"emergencyContact,omitempty"`
	LicenseNumber    *string `json:"licenseNumber,omitempty"`
}
