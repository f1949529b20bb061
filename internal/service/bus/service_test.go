package bus_service

import (
	"context"
	"testing"

	"minibus-console/internal/models"
	"minibus-console/internal/repository"
	bus_repository "minibus-console/internal/repository/bus"
	"minibus-console/internal/repository/memory"
	user_repository "minibus-console/internal/repository/user"
	"minibus-console/internal/service"
	assignment_service "minibus-console/internal/service/assignment"
	subscription_service "minibus-console/internal/service/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	buses  repository.BusRepository
	users  repository.UserRepository
	svc    service.BusService
	assign service.AssignmentService
}

func newFixture() *fixture {
	store := memory.NewStore()
	locks := assignment_service.NewLocks()
	f := &fixture{
		buses: bus_repository.NewBusRepository(store),
		users: user_repository.NewUserRepository(store),
	}
	f.svc = NewBusService(f.buses, f.users, locks, zap.NewNop())
	f.assign = assignment_service.NewAssignmentService(f.buses, f.users,
		subscription_service.SystemClock(), locks, nil, nil, zap.NewNop())
	return f
}

func (f *fixture) user(t *testing.T, role, name string) *models.User {
	t.Helper()
	u := &models.User{Role: role, Name: name, Email: name + "@example.com"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestCreateValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.svc.Create(ctx, &models.Bus{Name: " ", MaxCapacity: 3})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 0})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3, Locations: []models.RouteLocation{
		{ID: "a", Name: "A"}, {ID: "a", Name: "B"},
	}})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	rider := f.user(t, models.RoleRider, "ana")
	_, err = f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3, DriverID: rider.ID})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	buses, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, buses)
}

func TestCreateWithDriverLinksDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	driver := f.user(t, models.RoleDriver, "oleg")

	bus, err := f.svc.Create(ctx, &models.Bus{
		Name:          "Line 1",
		MaxCapacity:   3,
		DriverID:      driver.ID,
		CurrentRiders: []models.RiderLink{{RiderID: "smuggled"}},
	})
	require.NoError(t, err)
	assert.Empty(t, bus.CurrentRiders)

	stored, err := f.users.GetByID(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.DriverBus{{BusID: bus.ID, BusName: "Line 1"}}, stored.DriverBuses)
}

func TestUpdateCapacityBelowRosterIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bus, err := f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3})
	require.NoError(t, err)

	for _, name := range []string{"a", "b"} {
		r := f.user(t, models.RoleRider, name)
		_, err := f.assign.Assign(ctx, r.ID, bus.ID, models.SubscriptionMonthly, "")
		require.NoError(t, err)
	}

	one := 1
	_, err = f.svc.Update(ctx, bus.ID, models.BusPatch{MaxCapacity: &one})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	two := 2
	price := 55.0
	updated, err := f.svc.Update(ctx, bus.ID, models.BusPatch{MaxCapacity: &two, PricePerMonth: &price})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MaxCapacity)
	assert.Equal(t, 55.0, updated.PricePerMonth)
	assert.Equal(t, "Line 1", updated.Name)
	assert.Len(t, updated.CurrentRiders, 2)
}

func TestUpdateCannotDropStopInUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bus, err := f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3, Locations: []models.RouteLocation{
		{ID: "loc1", Name: "Depot"}, {ID: "loc2", Name: "Market"},
	}})
	require.NoError(t, err)
	r := f.user(t, models.RoleRider, "ana")
	_, err = f.assign.Assign(ctx, r.ID, bus.ID, models.SubscriptionMonthly, "loc2")
	require.NoError(t, err)

	onlyDepot := []models.RouteLocation{{ID: "loc1", Name: "Depot"}}
	_, err = f.svc.Update(ctx, bus.ID, models.BusPatch{Locations: &onlyDepot})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	stored, err := f.buses.GetByID(ctx, bus.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasLocation("loc2"))

	renamed := []models.RouteLocation{{ID: "loc2", Name: "New market"}, {ID: "loc3", Name: "School"}}
	updated, err := f.svc.Update(ctx, bus.ID, models.BusPatch{Locations: &renamed})
	require.NoError(t, err)
	assert.True(t, updated.HasLocation("loc2"))
	assert.False(t, updated.HasLocation("loc1"))
}

func TestRenamePropagatesToRiders(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bus, err := f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3})
	require.NoError(t, err)
	r := f.user(t, models.RoleRider, "ana")
	_, err = f.assign.Assign(ctx, r.ID, bus.ID, models.SubscriptionMonthly, "")
	require.NoError(t, err)

	name := "Line 1 Express"
	_, err = f.svc.Update(ctx, bus.ID, models.BusPatch{Name: &name})
	require.NoError(t, err)

	rider, err := f.users.GetByID(ctx, r.ID)
	require.NoError(t, err)
	mirror, ok := rider.FindAssignment(bus.ID)
	require.True(t, ok)
	assert.Equal(t, "Line 1 Express", mirror.BusName)
	assert.Equal(t, models.SubscriptionMonthly, mirror.SubscriptionType)
}

func TestAssignDriverMovesBusBetweenDrivers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	first := f.user(t, models.RoleDriver, "oleg")
	second := f.user(t, models.RoleDriver, "ivan")

	bus, err := f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3, DriverID: first.ID})
	require.NoError(t, err)

	updated, err := f.svc.AssignDriver(ctx, bus.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, updated.DriverID)

	oldDriver, _ := f.users.GetByID(ctx, first.ID)
	newDriver, _ := f.users.GetByID(ctx, second.ID)
	assert.Empty(t, oldDriver.DriverBuses)
	assert.Len(t, newDriver.DriverBuses, 1)

	_, err = f.svc.AssignDriver(ctx, bus.ID, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteDetachesDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	driver := f.user(t, models.RoleDriver, "oleg")
	bus, err := f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3, DriverID: driver.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, bus.ID))
	_, err = f.svc.Get(ctx, bus.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	stored, _ := f.users.GetByID(ctx, driver.ID)
	assert.Empty(t, stored.DriverBuses)

	assert.ErrorIs(t, f.svc.Delete(ctx, bus.ID), models.ErrNotFound)
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	bus, err := f.svc.Create(ctx, &models.Bus{Name: "Line 1", MaxCapacity: 3})
	require.NoError(t, err)
	r := f.user(t, models.RoleRider, "ana")
	_, err = f.assign.Assign(ctx, r.ID, bus.ID, models.SubscriptionPerRide, "")
	require.NoError(t, err)

	roster, err := f.svc.Roster(ctx, bus.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, r.ID, roster[0].RiderID)
}
