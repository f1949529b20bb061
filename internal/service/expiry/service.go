package expiry_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minibus-console/internal/events"
	"minibus-console/internal/metrics"
	"minibus-console/internal/models"
	"minibus-console/internal/repository"
	"minibus-console/internal/service"
	assignment_service "minibus-console/internal/service/assignment"
	roster_service "minibus-console/internal/service/roster"
	subscription_service "minibus-console/internal/service/subscription"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type expiryService struct {
	busRepo   repository.BusRepository
	userRepo  repository.UserRepository
	clock     subscription_service.Clock
	locks     *assignment_service.Locks
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewExpiryService(
	busRepo repository.BusRepository,
	userRepo repository.UserRepository,
	clock subscription_service.Clock,
	locks *assignment_service.Locks,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) service.ExpiryService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &expiryService{
		busRepo:   busRepo,
		userRepo:  userRepo,
		clock:     clock,
		locks:     locks,
		publisher: publisher,
		metrics:   m,
		log:       log.Named("expiry"),
	}
}

// Sweep removes every link whose end date has passed from both sides.
// Failures on one bus or rider do not stop the batch; they are returned
// together with the partial report.
func (s *expiryService) Sweep(ctx context.Context) (*models.SweepReport, error) {
	now := s.clock.Now()
	began := time.Now()
	report := &models.SweepReport{StartedAt: now, Evicted: []models.EvictedLink{}}

	buses, err := s.busRepo.GetAll(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list buses: %w", err)
		s.metrics.ObserveSweep(nil, err, time.Since(began))
		return nil, err
	}

	var errs error
	for _, b := range buses {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		report.BusesScanned++
		if err := s.sweepBus(ctx, b.ID, now, report); err != nil {
			report.Failures += len(multierr.Errors(err))
			errs = multierr.Append(errs, err)
			s.log.Error("sweep failed for bus", zap.String("bus_id", b.ID), zap.Error(err))
		}
	}

	s.metrics.ObserveSweep(report, errs, time.Since(began))
	s.log.Info("sweep finished",
		zap.Int("buses_scanned", report.BusesScanned),
		zap.Int("buses_updated", report.BusesUpdated),
		zap.Int("riders_updated", report.RidersUpdated),
		zap.Int("riders_skipped", report.RidersSkipped),
		zap.Int("evicted", len(report.Evicted)),
		zap.Int("failures", report.Failures))

	return report, errs
}

func (s *expiryService) sweepBus(ctx context.Context, busID string, now time.Time, report *models.SweepReport) error {
	unlock := s.locks.Lock(assignment_service.BusKey(busID))
	defer unlock()

	// перечитываем под блокировкой: за время обхода ростер мог измениться
	bus, err := s.busRepo.GetByID(ctx, busID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	kept := make([]models.RiderLink, 0, len(bus.CurrentRiders))
	var expired []models.RiderLink
	for _, link := range bus.CurrentRiders {
		if subscription_service.IsExpired(link.EndDate, now) {
			expired = append(expired, link)
			continue
		}
		kept = append(kept, link)
	}
	if len(expired) == 0 {
		return nil
	}

	if err := s.busRepo.UpdateRoster(ctx, busID, kept); err != nil {
		return fmt.Errorf("failed to write roster of bus %s: %w", busID, err)
	}
	report.BusesUpdated++

	var errs error
	for _, link := range expired {
		report.Evicted = append(report.Evicted, models.EvictedLink{
			BusID:            busID,
			RiderID:          link.RiderID,
			SubscriptionType: link.SubscriptionType,
			EndDate:          link.EndDate,
		})
		s.publish(ctx, events.Event{
			Type:             events.SubscriptionExpired,
			BusID:            busID,
			RiderID:          link.RiderID,
			SubscriptionType: link.SubscriptionType,
			PaymentStatus:    link.PaymentStatus,
			EndDate:          link.EndDate,
		})

		changed, err := s.sweepRider(ctx, link.RiderID, busID, now)
		switch {
		case errors.Is(err, models.ErrNotFound):
			report.RidersSkipped++
			s.log.Warn("expired link points to missing rider",
				zap.String("bus_id", busID),
				zap.String("rider_id", link.RiderID))
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("rider %s: %w", link.RiderID, err))
		case changed:
			report.RidersUpdated++
		}
	}
	return errs
}

// sweepRider drops the rider's copies for busID that are expired by their own end date.
func (s *expiryService) sweepRider(ctx context.Context, riderID, busID string, now time.Time) (bool, error) {
	return s.updateAssignments(ctx, riderID, func(list []models.BusAssignment) ([]models.BusAssignment, bool) {
		out := make([]models.BusAssignment, 0, len(list))
		changed := false
		for _, a := range list {
			if a.BusID == busID && subscription_service.IsExpired(a.EndDate, now) {
				changed = true
				continue
			}
			out = append(out, a)
		}
		return out, changed
	})
}

// Reconcile repairs one-sided links. The bus roster wins since it is always
// written first.
func (s *expiryService) Reconcile(ctx context.Context) (*models.ReconcileReport, error) {
	report := &models.ReconcileReport{}

	buses, err := s.busRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}

	var errs error
	for _, b := range buses {
		report.BusesScanned++
		if err := s.reconcileBus(ctx, b.ID, report); err != nil {
			report.Failures += len(multierr.Errors(err))
			errs = multierr.Append(errs, fmt.Errorf("bus %s: %w", b.ID, err))
		}
	}

	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return report, multierr.Append(errs, fmt.Errorf("failed to list users: %w", err))
	}
	for _, u := range users {
		report.RidersScanned++
		for _, a := range u.BusAssignments {
			if err := s.reconcileMirror(ctx, u.ID, a.BusID, report); err != nil {
				report.Failures++
				errs = multierr.Append(errs, fmt.Errorf("rider %s bus %s: %w", u.ID, a.BusID, err))
			}
		}
	}

	s.log.Info("reconcile finished",
		zap.Int("mirrors_created", report.MirrorsCreated),
		zap.Int("mirrors_updated", report.MirrorsUpdated),
		zap.Int("mirrors_dropped", report.MirrorsDropped),
		zap.Int("orphan_links_dropped", report.OrphanLinksDropped),
		zap.Int("failures", report.Failures))

	return report, errs
}

// reconcileBus pushes every roster link onto its rider and drops links
// whose rider document is gone.
func (s *expiryService) reconcileBus(ctx context.Context, busID string, report *models.ReconcileReport) error {
	unlock := s.locks.Lock(assignment_service.BusKey(busID))
	defer unlock()

	bus, err := s.busRepo.GetByID(ctx, busID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var errs error
	orphans := 0
	updated := bus
	for _, link := range bus.CurrentRiders {
		want := link.Mirror(bus)
		created := false
		changed, err := s.updateAssignments(ctx, link.RiderID, func(list []models.BusAssignment) ([]models.BusAssignment, bool) {
			for _, a := range list {
				if a.BusID == busID {
					if sameAssignment(a, want) {
						return list, false
					}
					return assignment_service.UpsertAssignment(list, want), true
				}
			}
			created = true
			return assignment_service.UpsertAssignment(list, want), true
		})
		switch {
		case errors.Is(err, models.ErrNotFound):
			updated = roster_service.RemoveRiderLink(updated, link.RiderID)
			orphans++
		case err != nil:
			errs = multierr.Append(errs, err)
		case changed && created:
			report.MirrorsCreated++
		case changed:
			report.MirrorsUpdated++
		}
	}

	if orphans > 0 {
		if err := s.busRepo.UpdateRoster(ctx, busID, updated.CurrentRiders); err != nil {
			return multierr.Append(errs, fmt.Errorf("failed to write roster: %w", err))
		}
		report.OrphanLinksDropped += orphans
		s.log.Warn("dropped links to missing riders", zap.String("bus_id", busID), zap.Int("count", orphans))
	}
	return errs
}

// reconcileMirror drops a rider-side copy whose bus or bus-side link is gone.
func (s *expiryService) reconcileMirror(ctx context.Context, riderID, busID string, report *models.ReconcileReport) error {
	unlock := s.locks.Lock(assignment_service.BusKey(busID))
	defer unlock()

	bus, err := s.busRepo.GetByID(ctx, busID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return err
	default:
		if _, ok := roster_service.FindRiderLink(bus, riderID); ok {
			return nil
		}
	}

	changed, err := s.updateAssignments(ctx, riderID, func(list []models.BusAssignment) ([]models.BusAssignment, bool) {
		out := assignment_service.RemoveAssignment(list, busID)
		return out, len(out) != len(list)
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		report.MirrorsDropped++
	}
	return nil
}

func (s *expiryService) updateAssignments(ctx context.Context, riderID string, mutate func([]models.BusAssignment) ([]models.BusAssignment, bool)) (bool, error) {
	unlock := s.locks.Lock(assignment_service.RiderKey(riderID))
	defer unlock()

	rider, err := s.userRepo.GetByID(ctx, riderID)
	if err != nil {
		return false, err
	}
	next, changed := mutate(rider.BusAssignments)
	if !changed {
		return false, nil
	}
	if err := s.userRepo.UpdateBusAssignments(ctx, riderID, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *expiryService) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.clock.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("bus_id", event.BusID),
			zap.String("rider_id", event.RiderID),
			zap.Error(err))
	}
}

func sameAssignment(a, b models.BusAssignment) bool {
	return a.BusID == b.BusID &&
		a.BusName == b.BusName &&
		a.SubscriptionType == b.SubscriptionType &&
		a.PaymentStatus == b.PaymentStatus &&
		a.LocationID == b.LocationID &&
		sameTime(a.StartDate, b.StartDate) &&
		sameTime(a.EndDate, b.EndDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
