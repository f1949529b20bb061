package assignment_service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"minibus-console/internal/events"
	"minibus-console/internal/models"
	"minibus-console/internal/repository"
	bus_repository "minibus-console/internal/repository/bus"
	"minibus-console/internal/repository/memory"
	user_repository "minibus-console/internal/repository/user"
	"minibus-console/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errInjected = errors.New("injected write failure")

// faultyStore fails Update calls on one collection while armed.
type faultyStore struct {
	repository.DocumentStore
	mu         sync.Mutex
	failUpdate map[string]bool
}

func (s *faultyStore) FailUpdates(collection string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate == nil {
		s.failUpdate = map[string]bool{}
	}
	s.failUpdate[collection] = fail
}

func (s *faultyStore) Update(ctx context.Context, collection, id string, partial repository.Document) error {
	s.mu.Lock()
	fail := s.failUpdate[collection]
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.DocumentStore.Update(ctx, collection, id, partial)
}

type fixture struct {
	store    *faultyStore
	buses    repository.BusRepository
	users    repository.UserRepository
	clock    *fakeClock
	recorder *events.Recorder
	svc      service.AssignmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &faultyStore{DocumentStore: memory.NewStore()}
	f := &fixture{
		store:    store,
		buses:    bus_repository.NewBusRepository(store),
		users:    user_repository.NewUserRepository(store),
		clock:    &fakeClock{now: t0},
		recorder: &events.Recorder{},
	}
	f.svc = NewAssignmentService(f.buses, f.users, f.clock, NewLocks(), f.recorder, nil, zap.NewNop())
	return f
}

func (f *fixture) bus(t *testing.T, name string, capacity int) *models.Bus {
	t.Helper()
	bus := &models.Bus{
		Name:        name,
		MaxCapacity: capacity,
		Locations: []models.RouteLocation{
			{ID: "stop-1", Name: "Central square", ArrivalTime: models.TimeRange{Start: "07:40", End: "07:45"}},
		},
	}
	require.NoError(t, f.buses.Create(context.Background(), bus))
	return bus
}

func (f *fixture) rider(t *testing.T, name string) *models.User {
	t.Helper()
	user := &models.User{Role: models.RoleRider, Name: name, Email: name + "@example.com"}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) reloadBus(t *testing.T, id string) *models.Bus {
	t.Helper()
	bus, err := f.buses.GetByID(context.Background(), id)
	require.NoError(t, err)
	return bus
}

func (f *fixture) reloadUser(t *testing.T, id string) *models.User {
	t.Helper()
	user, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}
