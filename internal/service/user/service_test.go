package user_service

import (
	"context"
	"testing"

	"minibus-console/internal/models"
	"minibus-console/internal/repository"
	bus_repository "minibus-console/internal/repository/bus"
	"minibus-console/internal/repository/memory"
	user_repository "minibus-console/internal/repository/user"
	"minibus-console/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService() (service.UserService, repository.BusRepository) {
	store := memory.NewStore()
	buses := bus_repository.NewBusRepository(store)
	return NewUserService(user_repository.NewUserRepository(store), buses, zap.NewNop()), buses
}

func TestCreateValidates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Create(ctx, &models.User{Role: "passenger", Name: "Ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = svc.Create(ctx, &models.User{Role: models.RoleRider, Name: "Ana", Email: "not-an-email"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = svc.Create(ctx, &models.User{Role: models.RoleRider, Name: "", Email: "ana@example.com"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	u, err := svc.Create(ctx, &models.User{
		Role:           models.RoleRider,
		Name:           " Ana ",
		Email:          "ana@example.com",
		BusAssignments: []models.BusAssignment{{BusID: "smuggled"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.Empty(t, u.BusAssignments)
}

func TestListByRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Create(ctx, &models.User{Role: models.RoleRider, Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &models.User{Role: models.RoleDriver, Name: "Oleg", Email: "oleg@example.com"})
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drivers, err := svc.List(ctx, models.RoleDriver)
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, "Oleg", drivers[0].Name)

	_, err = svc.List(ctx, "pilot")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	u, err := svc.Create(ctx, &models.User{Role: models.RoleRider, Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	phone := "+7 900 000-00-00"
	updated, err := svc.Update(ctx, u.ID, models.UserPatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, "Ana", updated.Name)

	bad := "nope"
	_, err = svc.Update(ctx, u.ID, models.UserPatch{Email: &bad})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = svc.Update(ctx, "missing", models.UserPatch{Phone: &phone})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteRefusesReferencedUsers(t *testing.T) {
	ctx := context.Background()
	svc, buses := newService()

	rider, err := svc.Create(ctx, &models.User{Role: models.RoleRider, Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	driver, err := svc.Create(ctx, &models.User{Role: models.RoleDriver, Name: "Oleg", Email: "oleg@example.com"})
	require.NoError(t, err)

	bus := &models.Bus{Name: "Line 1", MaxCapacity: 2, DriverID: driver.ID}
	require.NoError(t, buses.Create(ctx, bus))
	require.NoError(t, buses.UpdateRoster(ctx, bus.ID, []models.RiderLink{{RiderID: rider.ID, Name: "Ana"}}))

	assert.ErrorIs(t, svc.Delete(ctx, rider.ID), models.ErrConflict)
	assert.ErrorIs(t, svc.Delete(ctx, driver.ID), models.ErrConflict)

	require.NoError(t, buses.UpdateRoster(ctx, bus.ID, nil))
	require.NoError(t, svc.Delete(ctx, rider.ID))
	_, err = svc.Get(ctx, rider.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
