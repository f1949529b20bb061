package models

import "time"

// AssignmentResult is returned by every coordinator operation.
type AssignmentResult struct {
	BusID   string         `json:"busId"`
	RiderID string         `json:"riderId"`
	Link    *RiderLink     `json:"link,omitempty"`
	Roster  []RiderLink    `json:"roster"`
	Mirror  *BusAssignment `json:"mirror,omitempty"`
	Created bool           `json:"created"`
	Changed bool           `json:"changed"`
}

// EvictedLink records one subscription removed by a sweep.
type EvictedLink struct {
	BusID            string           `json:"busId"`
	RiderID          string           `json:"riderId"`
	SubscriptionType SubscriptionType `json:"subscriptionType"`
	EndDate          *time.Time       `json:"endDate,omitempty"`
}

type SweepReport struct {
	StartedAt     time.Time     `json:"startedAt"`
	BusesScanned  int           `json:"busesScanned"`
	BusesUpdated  int           `json:"busesUpdated"`
	RidersUpdated int           `json:"ridersUpdated"`
	RidersSkipped int           `json:"ridersSkipped"`
	Evicted       []EvictedLink `json:"evicted"`
	Failures      int           `json:"failures"`
}

// Writes is the number of documents the sweep persisted.
func (r *SweepReport) Writes() int {
	return r.BusesUpdated + r.RidersUpdated
}

type ReconcileReport struct {
	BusesScanned       int `json:"busesScanned"`
	RidersScanned      int `json:"ridersScanned"`
	MirrorsCreated     int `json:"mirrorsCreated"`
	MirrorsUpdated     int `json:"mirrorsUpdated"`
	MirrorsDropped     int `json:"mirrorsDropped"`
	OrphanLinksDropped int `json:"orphanLinksDropped"`
	Failures           int `json:"failures"`
}
