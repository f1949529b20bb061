package assignment_service

import "minibus-console/internal/models"

// UpsertAssignment replaces the entry for mirror.BusID or appends it.
func UpsertAssignment(list []models.BusAssignment, mirror models.BusAssignment) []models.BusAssignment {
	out := make([]models.BusAssignment, 0, len(list)+1)
	replaced := false
	for _, a := range list {
		if a.BusID == mirror.BusID {
			out = append(out, mirror)
			replaced = true
			continue
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, mirror)
	}
	return out
}

func RemoveAssignment(list []models.BusAssignment, busID string) []models.BusAssignment {
	out := make([]models.BusAssignment, 0, len(list))
	for _, a := range list {
		if a.BusID != busID {
			out = append(out, a)
		}
	}
	return out
}
