package assignment_service

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"minibus-console/internal/events"
	"minibus-console/internal/metrics"
	"minibus-console/internal/models"
	"minibus-console/internal/repository"
	"minibus-console/internal/service"
	roster_service "minibus-console/internal/service/roster"
	subscription_service "minibus-console/internal/service/subscription"

	"go.uber.org/zap"
)

type assignmentService struct {
	busRepo   repository.BusRepository
	userRepo  repository.UserRepository
	clock     subscription_service.Clock
	locks     *Locks
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewAssignmentService(
	busRepo repository.BusRepository,
	userRepo repository.UserRepository,
	clock subscription_service.Clock,
	locks *Locks,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) service.AssignmentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &assignmentService{
		busRepo:   busRepo,
		userRepo:  userRepo,
		clock:     clock,
		locks:     locks,
		publisher: publisher,
		metrics:   m,
		log:       log.Named("assignment"),
	}
}

func (s *assignmentService) Assign(ctx context.Context, riderID, busID string, subscriptionType models.SubscriptionType, locationID string) (res *models.AssignmentResult, err error) {
	defer func() { s.metrics.ObserveOperation("assign", err) }()

	window, err := subscription_service.ComputeWindow(subscriptionType, s.clock.Now())
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(BusKey(busID))
	defer unlock()

	bus, err := s.busRepo.GetByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	switch {
	case locationID == "" && len(bus.Locations) > 0:
		return nil, models.NewError(models.KindInvalidArgument,
			"a stop of bus %s must be chosen", bus.Name)
	case locationID != "" && !bus.HasLocation(locationID):
		return nil, models.NewError(models.KindInvalidArgument,
			"location %s is not a stop of bus %s", locationID, busID)
	}

	rider, err := s.userRepo.GetByID(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if !rider.IsRider() {
		return nil, models.NewError(models.KindInvalidArgument,
			"user %s has role %q, only riders can be assigned to a bus", riderID, rider.Role)
	}

	existing, linked := roster_service.FindRiderLink(bus, riderID)
	link := models.RiderLink{
		RiderID:          rider.ID,
		Name:             rider.Name,
		Email:            rider.Email,
		SubscriptionType: subscriptionType,
		PaymentStatus:    models.PaymentUnpaid,
		LocationID:       locationID,
	}
	if linked {
		// переназначение сохраняет статус оплаты
		link.PaymentStatus = existing.PaymentStatus
	}
	subscription_service.ApplyWindow(&link, window)

	updated, err := roster_service.UpsertRiderLink(bus, link)
	if err != nil {
		s.log.Info("assignment rejected",
			zap.String("bus_id", busID),
			zap.String("rider_id", riderID),
			zap.Error(err))
		return nil, err
	}

	if err := s.busRepo.UpdateRoster(ctx, busID, updated.CurrentRiders); err != nil {
		return nil, fmt.Errorf("failed to write roster of bus %s: %w", busID, err)
	}

	mirror := link.Mirror(updated)
	if _, err := s.applyMirror(ctx, riderID, func(list []models.BusAssignment) []models.BusAssignment {
		return UpsertAssignment(list, mirror)
	}); err != nil {
		return nil, s.partialWrite("assign", busID, riderID, err)
	}

	eventType := events.RiderAssigned
	if linked {
		eventType = events.RiderReassigned
	}
	s.publish(ctx, events.Event{
		Type:             eventType,
		BusID:            busID,
		RiderID:          riderID,
		SubscriptionType: link.SubscriptionType,
		PaymentStatus:    link.PaymentStatus,
		EndDate:          link.EndDate,
	})

	s.log.Info("rider assigned",
		zap.String("bus_id", busID),
		zap.String("rider_id", riderID),
		zap.String("subscription_type", string(subscriptionType)),
		zap.Bool("reassigned", linked))

	return &models.AssignmentResult{
		BusID:   busID,
		RiderID: riderID,
		Link:    &link,
		Roster:  updated.CurrentRiders,
		Mirror:  &mirror,
		Created: !linked,
		Changed: true,
	}, nil
}

func (s *assignmentService) UpdatePaymentStatus(ctx context.Context, riderID, busID string, status models.PaymentStatus) (res *models.AssignmentResult, err error) {
	defer func() { s.metrics.ObserveOperation("update_payment", err) }()

	if !status.Valid() {
		return nil, models.NewError(models.KindInvalidArgument,
			"invalid payment status %q: expected unpaid, pending or paid", status)
	}

	unlock := s.locks.Lock(BusKey(busID))
	defer unlock()

	bus, link, mirror, err := s.loadLinkPair(ctx, riderID, busID)
	if err != nil {
		return nil, err
	}

	next, busChanged, err := subscription_service.TransitionPayment(link.PaymentStatus, status)
	if err != nil {
		return nil, err
	}
	mirrorChanged := mirror.PaymentStatus != next

	if busChanged {
		link.PaymentStatus = next
		updated, err := roster_service.UpsertRiderLink(bus, link)
		if err != nil {
			return nil, err
		}
		if err := s.busRepo.UpdateRoster(ctx, busID, updated.CurrentRiders); err != nil {
			return nil, fmt.Errorf("failed to write roster of bus %s: %w", busID, err)
		}
		bus = updated
	}

	if mirrorChanged {
		mirror.PaymentStatus = next
		_, err := s.applyMirror(ctx, riderID, func(list []models.BusAssignment) []models.BusAssignment {
			return UpsertAssignment(list, mirror)
		})
		if err != nil {
			if busChanged {
				return nil, s.partialWrite("update_payment", busID, riderID, err)
			}
			return nil, fmt.Errorf("failed to write assignments of rider %s: %w", riderID, err)
		}
	}

	if busChanged || mirrorChanged {
		s.publish(ctx, events.Event{
			Type:          events.PaymentUpdated,
			BusID:         busID,
			RiderID:       riderID,
			PaymentStatus: next,
		})
	}

	return &models.AssignmentResult{
		BusID:   busID,
		RiderID: riderID,
		Link:    &link,
		Roster:  bus.CurrentRiders,
		Mirror:  &mirror,
		Changed: busChanged || mirrorChanged,
	}, nil
}

func (s *assignmentService) UpdateSubscriptionType(ctx context.Context, riderID, busID string, subscriptionType models.SubscriptionType) (res *models.AssignmentResult, err error) {
	defer func() { s.metrics.ObserveOperation("update_subscription", err) }()

	window, err := subscription_service.ComputeWindow(subscriptionType, s.clock.Now())
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(BusKey(busID))
	defer unlock()

	bus, link, mirror, err := s.loadLinkPair(ctx, riderID, busID)
	if err != nil {
		return nil, err
	}

	link.SubscriptionType = subscriptionType
	subscription_service.ApplyWindow(&link, window)

	updated, err := roster_service.UpsertRiderLink(bus, link)
	if err != nil {
		return nil, err
	}
	if err := s.busRepo.UpdateRoster(ctx, busID, updated.CurrentRiders); err != nil {
		return nil, fmt.Errorf("failed to write roster of bus %s: %w", busID, err)
	}

	mirror.SubscriptionType = link.SubscriptionType
	mirror.StartDate = link.StartDate
	mirror.EndDate = link.EndDate
	if _, err := s.applyMirror(ctx, riderID, func(list []models.BusAssignment) []models.BusAssignment {
		return UpsertAssignment(list, mirror)
	}); err != nil {
		return nil, s.partialWrite("update_subscription", busID, riderID, err)
	}

	s.publish(ctx, events.Event{
		Type:             events.SubscriptionUpdated,
		BusID:            busID,
		RiderID:          riderID,
		SubscriptionType: subscriptionType,
		EndDate:          link.EndDate,
	})

	return &models.AssignmentResult{
		BusID:   busID,
		RiderID: riderID,
		Link:    &link,
		Roster:  updated.CurrentRiders,
		Mirror:  &mirror,
		Changed: true,
	}, nil
}

// Remove is idempotent. A missing bus or rider document counts as an absent
// link on that side.
func (s *assignmentService) Remove(ctx context.Context, riderID, busID string) (res *models.AssignmentResult, err error) {
	defer func() { s.metrics.ObserveOperation("remove", err) }()

	unlock := s.locks.Lock(BusKey(busID))
	defer unlock()

	roster := []models.RiderLink{}
	busChanged := false

	bus, err := s.busRepo.GetByID(ctx, busID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.log.Warn("removing rider from missing bus",
			zap.String("bus_id", busID),
			zap.String("rider_id", riderID))
	case err != nil:
		return nil, err
	default:
		roster = bus.CurrentRiders
		if _, ok := roster_service.FindRiderLink(bus, riderID); ok {
			updated := roster_service.RemoveRiderLink(bus, riderID)
			if err := s.busRepo.UpdateRoster(ctx, busID, updated.CurrentRiders); err != nil {
				return nil, fmt.Errorf("failed to write roster of bus %s: %w", busID, err)
			}
			roster = updated.CurrentRiders
			busChanged = true
		}
	}

	riderChanged, err := s.applyMirror(ctx, riderID, func(list []models.BusAssignment) []models.BusAssignment {
		return RemoveAssignment(list, busID)
	})
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		if busChanged {
			return nil, s.partialWrite("remove", busID, riderID, err)
		}
		return nil, fmt.Errorf("failed to write assignments of rider %s: %w", riderID, err)
	}

	changed := busChanged || riderChanged
	if changed {
		s.publish(ctx, events.Event{
			Type:    events.RiderRemoved,
			BusID:   busID,
			RiderID: riderID,
		})
		s.log.Info("rider removed",
			zap.String("bus_id", busID),
			zap.String("rider_id", riderID),
			zap.Bool("bus_changed", busChanged),
			zap.Bool("rider_changed", riderChanged))
	}

	return &models.AssignmentResult{
		BusID:   busID,
		RiderID: riderID,
		Roster:  roster,
		Changed: changed,
	}, nil
}

// loadLinkPair fetches both copies of an existing link.
func (s *assignmentService) loadLinkPair(ctx context.Context, riderID, busID string) (*models.Bus, models.RiderLink, models.BusAssignment, error) {
	bus, err := s.busRepo.GetByID(ctx, busID)
	if err != nil {
		return nil, models.RiderLink{}, models.BusAssignment{}, err
	}
	link, ok := roster_service.FindRiderLink(bus, riderID)
	if !ok {
		return nil, models.RiderLink{}, models.BusAssignment{}, models.NewError(models.KindNotFound,
			"rider %s is not assigned to bus %s", riderID, busID)
	}

	rider, err := s.userRepo.GetByID(ctx, riderID)
	if err != nil {
		return nil, models.RiderLink{}, models.BusAssignment{}, err
	}
	mirror, ok := rider.FindAssignment(busID)
	if !ok {
		s.log.Warn("link is one-sided",
			zap.String("bus_id", busID),
			zap.String("rider_id", riderID))
		return nil, models.RiderLink{}, models.BusAssignment{}, models.NewError(models.KindNotFound,
			"rider %s has no assignment record for bus %s", riderID, busID)
	}
	return bus, link, mirror, nil
}

// applyMirror reloads the rider under its own lock, rewrites BusAssignments
// with mutate and persists only when the list changed.
func (s *assignmentService) applyMirror(ctx context.Context, riderID string, mutate func([]models.BusAssignment) []models.BusAssignment) (bool, error) {
	unlock := s.locks.Lock(RiderKey(riderID))
	defer unlock()

	rider, err := s.userRepo.GetByID(ctx, riderID)
	if err != nil {
		return false, err
	}

	next := mutate(rider.BusAssignments)
	if reflect.DeepEqual(next, rider.BusAssignments) {
		return false, nil
	}
	if err := s.userRepo.UpdateBusAssignments(ctx, riderID, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *assignmentService) partialWrite(operation, busID, riderID string, cause error) error {
	s.log.Error("bus updated but rider write failed",
		zap.String("operation", operation),
		zap.String("bus_id", busID),
		zap.String("rider_id", riderID),
		zap.Bool("partial_write", true),
		zap.Error(cause))
	return models.WrapError(models.KindPartialWriteInconsistency, cause,
		"bus %s was updated but rider %s was not; run reconcile to repair the link", busID, riderID)
}

func (s *assignmentService) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.clock.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("bus_id", event.BusID),
			zap.String("rider_id", event.RiderID),
			zap.Error(err))
	}
}
