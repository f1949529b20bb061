package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"minibus-console/internal/lease"
	"minibus-console/internal/metrics"
	"minibus-console/internal/models"
	"minibus-console/internal/models/config"
	bus_repository "minibus-console/internal/repository/bus"
	"minibus-console/internal/repository/memory"
	user_repository "minibus-console/internal/repository/user"
	assignment_service "minibus-console/internal/service/assignment"
	bus_service "minibus-console/internal/service/bus"
	expiry_service "minibus-console/internal/service/expiry"
	subscription_service "minibus-console/internal/service/subscription"
	user_service "minibus-console/internal/service/user"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Kind    string          `json:"kind"`
	Details []ErrorDetail   `json:"details"`
	Data    json.RawMessage `json:"data"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newServerWithLocker(t, lease.NewLocalLocker())
}

func newServerWithLocker(t *testing.T, locker lease.Locker) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	buses := bus_repository.NewBusRepository(store)
	users := user_repository.NewUserRepository(store)
	locks := assignment_service.NewLocks()
	clock := subscription_service.SystemClock()
	log := zap.NewNop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	expiry := expiry_service.NewExpiryService(buses, users, clock, locks, nil, m, log)
	runner := expiry_service.NewRunner(expiry, locker, config.SweeperConfig{Interval: time.Hour}, log)

	h := NewHandler(
		assignment_service.NewAssignmentService(buses, users, clock, locks, nil, m, log),
		expiry,
		runner,
		bus_service.NewBusService(buses, users, locks, log),
		user_service.NewUserService(users, buses, log),
		log,
	)
	srv := httptest.NewServer(NewRouter(h, m, reg, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func createdID(t *testing.T, env envelope) string {
	t.Helper()
	var doc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	require.NotEmpty(t, doc.ID)
	return doc.ID
}

func TestAssignmentFlowOverHTTP(t *testing.T) {
	srv := newServer(t)

	status, env := call(t, srv, http.MethodPost, "/api/buses",
		`{"name":"B1","maxCapacity":1,"locations":[{"id":"loc1","name":"Depot","arrivalTime":{"start":"07:00","end":"07:05"}}]}`)
	require.Equal(t, http.StatusCreated, status, env.Message)
	busID := createdID(t, env)

	status, env = call(t, srv, http.MethodPost, "/api/users", `{"role":"rider","name":"R1","email":"r1@example.com"}`)
	require.Equal(t, http.StatusCreated, status, env.Message)
	r1 := createdID(t, env)
	_, env = call(t, srv, http.MethodPost, "/api/users", `{"role":"rider","name":"R2","email":"r2@example.com"}`)
	r2 := createdID(t, env)

	status, env = call(t, srv, http.MethodPost, "/api/buses/"+busID+"/riders",
		`{"riderId":"`+r1+`","subscriptionType":"per_ride","locationId":"loc1"}`)
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = call(t, srv, http.MethodPost, "/api/buses/"+busID+"/riders",
		`{"riderId":"`+r2+`","subscriptionType":"per_ride","locationId":"loc1"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(models.KindCapacityExceeded), env.Kind)
	assert.Contains(t, env.Message, "B1")

	status, _ = call(t, srv, http.MethodPatch, "/api/buses/"+busID+"/riders/"+r1+"/payment", `{"paymentStatus":"paid"}`)
	assert.Equal(t, http.StatusOK, status)

	status, env = call(t, srv, http.MethodGet, "/api/buses/"+busID+"/riders", "")
	require.Equal(t, http.StatusOK, status)
	var roster []models.RiderLink
	require.NoError(t, json.Unmarshal(env.Data, &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, models.PaymentPaid, roster[0].PaymentStatus)

	status, _ = call(t, srv, http.MethodDelete, "/api/buses/"+busID+"/riders/"+r1, "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, srv, http.MethodDelete, "/api/buses/"+busID+"/riders/"+r1, "")
	assert.Equal(t, http.StatusOK, status, "removing an absent link succeeds")

	status, _ = call(t, srv, http.MethodPost, "/api/buses/"+busID+"/riders",
		`{"riderId":"`+r2+`","subscriptionType":"per_ride","locationId":"loc1"}`)
	assert.Equal(t, http.StatusCreated, status)
}

func TestErrorStatuses(t *testing.T) {
	srv := newServer(t)

	status, env := call(t, srv, http.MethodGet, "/api/buses/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(models.KindNotFound), env.Kind)

	status, _ = call(t, srv, http.MethodPost, "/api/buses", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, srv, http.MethodPost, "/api/buses", `{"name":"B1","maxCapacity":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotEmpty(t, env.Details)
	assert.Equal(t, "MaxCapacity", env.Details[0].Field)

	_, env = call(t, srv, http.MethodPost, "/api/buses", `{"name":"B1","maxCapacity":2}`)
	busID := createdID(t, env)
	_, env = call(t, srv, http.MethodPost, "/api/users", `{"role":"rider","name":"R1","email":"r1@example.com"}`)
	riderID := createdID(t, env)

	status, env = call(t, srv, http.MethodPost, "/api/buses/"+busID+"/riders",
		`{"riderId":"`+riderID+`","subscriptionType":"weekly"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(models.KindInvalidSubscriptionType), env.Kind)

	status, _ = call(t, srv, http.MethodPost, "/api/buses/"+busID+"/riders",
		`{"riderId":"`+riderID+`","subscriptionType":"monthly"}`)
	require.Equal(t, http.StatusCreated, status)

	status, env = call(t, srv, http.MethodDelete, "/api/users/"+riderID, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(models.KindConflict), env.Kind)
}

func TestMaintenanceAndMetrics(t *testing.T) {
	srv := newServer(t)

	status, env := call(t, srv, http.MethodPost, "/api/maintenance/expire", "")
	require.Equal(t, http.StatusOK, status)
	var report models.SweepReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Zero(t, report.BusesScanned)

	status, _ = call(t, srv, http.MethodPost, "/api/maintenance/reconcile", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExpireRespectsSweepLease(t *testing.T) {
	ctx := context.Background()
	locker := lease.NewLocalLocker()
	srv := newServerWithLocker(t, locker)

	release, ok, err := locker.TryAcquire(ctx, "expiry-sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	status, env := call(t, srv, http.MethodPost, "/api/maintenance/expire", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(models.KindConflict), env.Kind)

	release()
	status, _ = call(t, srv, http.MethodPost, "/api/maintenance/expire", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestStatusFor(t *testing.T) {
	cases := map[models.ErrorKind]int{
		models.KindNotFound:                  http.StatusNotFound,
		models.KindCapacityExceeded:          http.StatusConflict,
		models.KindInvalidSubscriptionType:   http.StatusBadRequest,
		models.KindConflict:                  http.StatusConflict,
		models.KindInvalidArgument:           http.StatusUnprocessableEntity,
		models.KindPartialWriteInconsistency: http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(models.NewError(kind, "x")), kind)
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(assert.AnError))
}
