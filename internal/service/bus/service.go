package bus_service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"minibus-console/internal/models"
	"minibus-console/internal/repository"
	"minibus-console/internal/service"
	assignment_service "minibus-console/internal/service/assignment"

	"go.uber.org/zap"
)

type busService struct {
	busRepo  repository.BusRepository
	userRepo repository.UserRepository
	locks    *assignment_service.Locks
	log      *zap.Logger
}

func NewBusService(
	busRepo repository.BusRepository,
	userRepo repository.UserRepository,
	locks *assignment_service.Locks,
	log *zap.Logger,
) service.BusService {
	return &busService{
		busRepo:  busRepo,
		userRepo: userRepo,
		locks:    locks,
		log:      log.Named("bus"),
	}
}

func (s *busService) Create(ctx context.Context, bus *models.Bus) (*models.Bus, error) {
	bus.Name = strings.TrimSpace(bus.Name)
	if bus.Name == "" {
		return nil, models.NewError(models.KindInvalidArgument, "bus name is required")
	}
	if bus.MaxCapacity < 1 {
		return nil, models.NewError(models.KindInvalidArgument, "maxCapacity must be at least 1, got %d", bus.MaxCapacity)
	}
	if err := validateLocations(bus.Locations); err != nil {
		return nil, err
	}
	// ростер заполняется только через назначения
	bus.CurrentRiders = []models.RiderLink{}

	if bus.DriverID != "" {
		if _, err := s.loadDriver(ctx, bus.DriverID); err != nil {
			return nil, err
		}
	}

	if err := s.busRepo.Create(ctx, bus); err != nil {
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}

	if bus.DriverID != "" {
		if err := s.addDriverBus(ctx, bus.DriverID, bus); err != nil {
			return nil, err
		}
	}

	s.log.Info("bus created", zap.String("bus_id", bus.ID), zap.String("name", bus.Name))
	return s.busRepo.GetByID(ctx, bus.ID)
}

func (s *busService) Get(ctx context.Context, id string) (*models.Bus, error) {
	return s.busRepo.GetByID(ctx, id)
}

func (s *busService) List(ctx context.Context) ([]*models.Bus, error) {
	return s.busRepo.GetAll(ctx)
}

func (s *busService) Update(ctx context.Context, id string, patch models.BusPatch) (*models.Bus, error) {
	unlock := s.locks.Lock(assignment_service.BusKey(id))
	defer unlock()

	bus, err := s.busRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, models.NewError(models.KindInvalidArgument, "bus name is required")
		}
		patch.Name = &name
	}
	if patch.MaxCapacity != nil {
		if *patch.MaxCapacity < 1 {
			return nil, models.NewError(models.KindInvalidArgument, "maxCapacity must be at least 1, got %d", *patch.MaxCapacity)
		}
		if *patch.MaxCapacity < len(bus.CurrentRiders) {
			return nil, models.NewError(models.KindInvalidArgument,
				"maxCapacity %d is below the %d riders already on bus %s", *patch.MaxCapacity, len(bus.CurrentRiders), bus.Name)
		}
	}
	if patch.Locations != nil {
		if err := validateLocations(*patch.Locations); err != nil {
			return nil, err
		}
		next := models.Bus{Locations: *patch.Locations}
		for _, link := range bus.CurrentRiders {
			if link.LocationID != "" && !next.HasLocation(link.LocationID) {
				return nil, models.NewError(models.KindInvalidArgument,
					"stop %s is still used by rider %s on bus %s", link.LocationID, link.RiderID, bus.Name)
			}
		}
	}

	fields, err := repository.ToDocument(patch)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return bus, nil
	}
	if err := s.busRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update bus %s: %w", id, err)
	}

	updated, err := s.busRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil && *patch.Name != bus.Name {
		s.propagateName(ctx, updated)
	}
	return updated, nil
}

// Delete does not touch riders' busAssignments; reconcile drops them.
func (s *busService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(assignment_service.BusKey(id))
	defer unlock()

	bus, err := s.busRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.busRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete bus %s: %w", id, err)
	}

	if bus.DriverID != "" {
		if err := s.removeDriverBus(ctx, bus.DriverID, id); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.log.Warn("failed to detach bus from driver",
				zap.String("bus_id", id),
				zap.String("driver_id", bus.DriverID),
				zap.Error(err))
		}
	}

	s.log.Info("bus deleted", zap.String("bus_id", id), zap.Int("riders_left", len(bus.CurrentRiders)))
	return nil
}

func (s *busService) AssignDriver(ctx context.Context, busID, driverID string) (*models.Bus, error) {
	unlock := s.locks.Lock(assignment_service.BusKey(busID))
	defer unlock()

	bus, err := s.busRepo.GetByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadDriver(ctx, driverID); err != nil {
		return nil, err
	}
	if bus.DriverID == driverID {
		return bus, nil
	}

	previous := bus.DriverID
	if err := s.busRepo.UpdateFields(ctx, busID, repository.Document{"driverId": driverID}); err != nil {
		return nil, fmt.Errorf("failed to set driver of bus %s: %w", busID, err)
	}
	if previous != "" {
		if err := s.removeDriverBus(ctx, previous, busID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}
	if err := s.addDriverBus(ctx, driverID, bus); err != nil {
		return nil, err
	}

	s.log.Info("driver assigned",
		zap.String("bus_id", busID),
		zap.String("driver_id", driverID),
		zap.String("previous_driver_id", previous))
	return s.busRepo.GetByID(ctx, busID)
}

func (s *busService) Roster(ctx context.Context, busID string) ([]models.RiderLink, error) {
	bus, err := s.busRepo.GetByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	return bus.CurrentRiders, nil
}

func (s *busService) loadDriver(ctx context.Context, driverID string) (*models.User, error) {
	driver, err := s.userRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !driver.IsDriver() {
		return nil, models.NewError(models.KindInvalidArgument,
			"user %s has role %q, only drivers can operate a bus", driverID, driver.Role)
	}
	return driver, nil
}

func (s *busService) addDriverBus(ctx context.Context, driverID string, bus *models.Bus) error {
	unlock := s.locks.Lock(assignment_service.RiderKey(driverID))
	defer unlock()

	driver, err := s.userRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	list := make([]models.DriverBus, 0, len(driver.DriverBuses)+1)
	for _, b := range driver.DriverBuses {
		if b.BusID != bus.ID {
			list = append(list, b)
		}
	}
	list = append(list, models.DriverBus{BusID: bus.ID, BusName: bus.Name})
	return s.userRepo.UpdateDriverBuses(ctx, driverID, list)
}

func (s *busService) removeDriverBus(ctx context.Context, driverID, busID string) error {
	unlock := s.locks.Lock(assignment_service.RiderKey(driverID))
	defer unlock()

	driver, err := s.userRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}
	list := make([]models.DriverBus, 0, len(driver.DriverBuses))
	for _, b := range driver.DriverBuses {
		if b.BusID != busID {
			list = append(list, b)
		}
	}
	if len(list) == len(driver.DriverBuses) {
		return nil
	}
	return s.userRepo.UpdateDriverBuses(ctx, driverID, list)
}

// propagateName refreshes the denormalised bus name on the driver and on
// every rider copy. Failures are logged; reconcile repairs rider copies.
func (s *busService) propagateName(ctx context.Context, bus *models.Bus) {
	if bus.DriverID != "" {
		if err := s.addDriverBus(ctx, bus.DriverID, bus); err != nil {
			s.log.Warn("failed to rename bus on driver", zap.String("bus_id", bus.ID), zap.Error(err))
		}
	}

	for _, link := range bus.CurrentRiders {
		mirror := link.Mirror(bus)
		err := func() error {
			unlock := s.locks.Lock(assignment_service.RiderKey(link.RiderID))
			defer unlock()

			rider, err := s.userRepo.GetByID(ctx, link.RiderID)
			if err != nil {
				return err
			}
			if existing, ok := rider.FindAssignment(bus.ID); ok {
				existing.BusName = mirror.BusName
				mirror = existing
			}
			return s.userRepo.UpdateBusAssignments(ctx, link.RiderID,
				assignment_service.UpsertAssignment(rider.BusAssignments, mirror))
		}()
		if err != nil {
			s.log.Warn("failed to rename bus on rider",
				zap.String("bus_id", bus.ID),
				zap.String("rider_id", link.RiderID),
				zap.Error(err))
		}
	}
}

func validateLocations(locations []models.RouteLocation) error {
	seen := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		if loc.ID == "" {
			return models.NewError(models.KindInvalidArgument, "route location %q has no id", loc.Name)
		}
		if _, dup := seen[loc.ID]; dup {
			return models.NewError(models.KindInvalidArgument, "route location id %s is used twice", loc.ID)
		}
		seen[loc.ID] = struct{}{}
	}
	return nil
}
