package bus

import (
	"context"
	"testing"
	"time"

	"minibus-console/internal/models"
	"minibus-console/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewBusRepository(memory.NewStore())

	bus := &models.Bus{
		Name:        "Line 7",
		MaxCapacity: 2,
		Locations: []models.RouteLocation{
			{ID: "loc1", Name: "Depot", ArrivalTime: models.TimeRange{Start: "07:00", End: "07:10"}},
		},
		WorkingDays:    []string{"monday", "friday"},
		OperatingHours: models.TimeRange{Start: "06:30", End: "19:00"},
		PricePerRide:   2.5,
		PricePerMonth:  60,
	}
	require.NoError(t, repo.Create(ctx, bus))
	require.NotEmpty(t, bus.ID)

	got, err := repo.GetByID(ctx, bus.ID)
	require.NoError(t, err)
	assert.Equal(t, "Line 7", got.Name)
	assert.Equal(t, 2, got.MaxCapacity)
	assert.Equal(t, 2.5, got.PricePerRide)
	assert.Equal(t, bus.Locations, got.Locations)
	assert.NotNil(t, got.CurrentRiders)
	assert.NotNil(t, got.CreatedAt)
}

func TestBusRepositoryUpdateRoster(t *testing.T) {
	ctx := context.Background()
	repo := NewBusRepository(memory.NewStore())

	bus := &models.Bus{Name: "Line 7", MaxCapacity: 3}
	require.NoError(t, repo.Create(ctx, bus))

	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	link := models.RiderLink{
		RiderID:          "r1",
		Name:             "Ana",
		SubscriptionType: models.SubscriptionPerRide,
		PaymentStatus:    models.PaymentUnpaid,
		StartDate:        &start,
		EndDate:          &end,
	}
	require.NoError(t, repo.UpdateRoster(ctx, bus.ID, []models.RiderLink{link}))

	got, err := repo.GetByID(ctx, bus.ID)
	require.NoError(t, err)
	require.Len(t, got.CurrentRiders, 1)
	assert.Equal(t, "r1", got.CurrentRiders[0].RiderID)
	assert.True(t, got.CurrentRiders[0].EndDate.Equal(end))
	assert.Equal(t, "Line 7", got.Name)

	require.NoError(t, repo.UpdateRoster(ctx, bus.ID, nil))
	got, err = repo.GetByID(ctx, bus.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CurrentRiders)
}

func TestBusRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewBusRepository(memory.NewStore())

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = repo.UpdateRoster(ctx, "missing", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBusRepositoryGetByDriverID(t *testing.T) {
	ctx := context.Background()
	repo := NewBusRepository(memory.NewStore())

	require.NoError(t, repo.Create(ctx, &models.Bus{Name: "A", MaxCapacity: 1, DriverID: "d1"}))
	require.NoError(t, repo.Create(ctx, &models.Bus{Name: "B", MaxCapacity: 1, DriverID: "d2"}))

	buses, err := repo.GetByDriverID(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, buses, 1)
	assert.Equal(t, "A", buses[0].Name)
}
