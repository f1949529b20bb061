package expiry_service

import (
	"context"
	"testing"
	"time"

	"minibus-console/internal/lease"
	"minibus-console/internal/models"
	"minibus-console/internal/models/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunnerRunOnceHonoursLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b1 := f.bus(t, "B1", 2)
	r1 := f.rider(t, "r1")
	_, err := f.assign.Assign(ctx, r1.ID, b1.ID, models.SubscriptionPerRide, "loc1")
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)

	locker := lease.NewLocalLocker()
	runner := NewRunner(f.expiry, locker, config.SweeperConfig{Interval: time.Hour}, zap.NewNop())

	release, ok, err := locker.TryAcquire(ctx, sweepLeaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ran := runner.RunOnce(ctx)
	assert.False(t, ran, "another holder owns the lease")
	assert.Len(t, f.reloadBus(t, b1.ID).CurrentRiders, 1)

	release()
	report, ran := runner.RunOnce(ctx)
	require.True(t, ran)
	assert.Len(t, report.Evicted, 1)
}

func TestRunnerStartStop(t *testing.T) {
	f := newFixture(t)
	runner := NewRunner(f.expiry, lease.NewLocalLocker(), config.SweeperConfig{Interval: time.Hour}, zap.NewNop())

	runner.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, runner.Stop(ctx))
}

func TestRunnerSweepReportsHeldLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	locker := lease.NewLocalLocker()
	runner := NewRunner(f.expiry, locker, config.SweeperConfig{Interval: time.Hour}, zap.NewNop())

	release, ok, err := locker.TryAcquire(ctx, sweepLeaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	report, err := runner.Sweep(ctx)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, models.ErrConflict)

	release()
	report, err = runner.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.BusesScanned)

	_, ok, _ = locker.TryAcquire(ctx, sweepLeaseKey, time.Minute)
	assert.True(t, ok, "Sweep hands the lease back")
}
