package expiry_service

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
	assignment_service "minibus-console/internal/service/assignment"

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

// countingStore counts writes that reach the backend and can fail updates
// to a whole collection.
type countingStore struct {
	repository.DocumentStore
	mu         sync.Mutex
	writes     int
	failUpdate map[string]bool
}

func (s *countingStore) Update(ctx context.Context, collection, id string, partial repository.Document) error {
	s.mu.Lock()
	fail := s.failUpdate[collection]
	if !fail {
		s.writes++
	}
	s.mu.Unlock()
	if fail {
		return errors.New("boom")
	}
	return s.DocumentStore.Update(ctx, collection, id, partial)
}

func (s *countingStore) FailUpdates(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate == nil {
		s.failUpdate = map[string]bool{}
	}
	s.failUpdate[collection] = true
}

func (s *countingStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type fixture struct {
	store    *countingStore
	buses    repository.BusRepository
	users    repository.UserRepository
	clock    *fakeClock
	recorder *events.Recorder
	assign   service.AssignmentService
	expiry   service.ExpiryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &countingStore{DocumentStore: memory.NewStore()}
	f := &fixture{
		store:    store,
		buses:    bus_repository.NewBusRepository(store),
		users:    user_repository.NewUserRepository(store),
		clock:    &fakeClock{now: t0},
		recorder: &events.Recorder{},
	}
	locks := assignment_service.NewLocks()
	f.assign = assignment_service.NewAssignmentService(f.buses, f.users, f.clock, locks, f.recorder, nil, zap.NewNop())
	f.expiry = NewExpiryService(f.buses, f.users, f.clock, locks, f.recorder, nil, zap.NewNop())
	return f
}

func (f *fixture) bus(t *testing.T, name string, capacity int) *models.Bus {
	t.Helper()
	bus := &models.Bus{
		Name:        name,
		MaxCapacity: capacity,
		Locations:   []models.RouteLocation{{ID: "loc1", Name: "Depot"}},
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
