// Package roster_service holds the capacity rules for a single bus roster.
// Functions here never touch storage and never mutate their inputs.
package roster_service

import "minibus-console/internal/models"

// CanAccept is true when riderID is already on the roster (update path) or
// there is a free seat.
func CanAccept(bus *models.Bus, riderID string) bool {
	if _, ok := FindRiderLink(bus, riderID); ok {
		return true
	}
	return len(bus.CurrentRiders) < bus.MaxCapacity
}

func FindRiderLink(bus *models.Bus, riderID string) (models.RiderLink, bool) {
	for _, link := range bus.CurrentRiders {
		if link.RiderID == riderID {
			return link, true
		}
	}
	return models.RiderLink{}, false
}

// UpsertRiderLink replaces the rider's entry in place or appends a new one.
func UpsertRiderLink(bus *models.Bus, link models.RiderLink) (*models.Bus, error) {
	updated := *bus
	updated.CurrentRiders = make([]models.RiderLink, 0, len(bus.CurrentRiders)+1)

	replaced := false
	for _, existing := range bus.CurrentRiders {
		if existing.RiderID == link.RiderID {
			updated.CurrentRiders = append(updated.CurrentRiders, link)
			replaced = true
			continue
		}
		updated.CurrentRiders = append(updated.CurrentRiders, existing)
	}

	if !replaced {
		if len(bus.CurrentRiders) >= bus.MaxCapacity {
			return nil, models.NewError(models.KindCapacityExceeded,
				"bus %s is full (%d/%d riders)", busLabel(bus), len(bus.CurrentRiders), bus.MaxCapacity)
		}
		updated.CurrentRiders = append(updated.CurrentRiders, link)
	}
	return &updated, nil
}

// RemoveRiderLink filters riderID out; absent riders are a no-op.
func RemoveRiderLink(bus *models.Bus, riderID string) *models.Bus {
	updated := *bus
	updated.CurrentRiders = make([]models.RiderLink, 0, len(bus.CurrentRiders))
	for _, existing := range bus.CurrentRiders {
		if existing.RiderID != riderID {
			updated.CurrentRiders = append(updated.CurrentRiders, existing)
		}
	}
	return &updated
}

func busLabel(bus *models.Bus) string {
	if bus.Name != "" {
		return bus.Name
	}
	return bus.ID
}
