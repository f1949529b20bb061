package expiry_service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"minibus-console/internal/lease"
	"minibus-console/internal/models"
	"minibus-console/internal/models/config"
	"minibus-console/internal/service"

	"go.uber.org/zap"
)

var _ service.Sweeper = (*Runner)(nil)

const sweepLeaseKey = "expiry-sweep"

// Runner sweeps once on start and then every Interval.
type Runner struct {
	svc      service.ExpiryService
	locker   lease.Locker
	interval time.Duration
	leaseTTL time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(svc service.ExpiryService, locker lease.Locker, cfg config.SweeperConfig, log *zap.Logger) *Runner {
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Runner{
		svc:      svc,
		locker:   locker,
		interval: cfg.Interval,
		leaseTTL: ttl,
		log:      log.Named("sweep_runner"),
	}
}

func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
	r.log.Info("sweep runner started", zap.Duration("interval", r.interval))
}

// Stop cancels the loop and waits for an in-flight sweep, or for ctx.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context) {
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps if the lease is free. ran is false when another instance
// holds the lease.
func (r *Runner) RunOnce(ctx context.Context) (report *models.SweepReport, ran bool) {
	report, err := r.Sweep(ctx)
	switch {
	case errors.Is(err, models.ErrConflict):
		r.log.Debug("sweep lease is held elsewhere, skipping")
		return nil, false
	case report == nil:
		r.log.Error("sweep did not run", zap.Error(err))
		return nil, false
	case err != nil:
		r.log.Error("sweep finished with errors", zap.Error(err))
	}
	return report, true
}

// Sweep runs one sweep under the lease. It returns a Conflict error when
// another sweep holds the lease.
func (r *Runner) Sweep(ctx context.Context) (*models.SweepReport, error) {
	release, ok, err := r.locker.TryAcquire(ctx, sweepLeaseKey, r.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to take sweep lease: %w", err)
	}
	if !ok {
		return nil, models.NewError(models.KindConflict, "another sweep is already running")
	}
	defer release()

	return r.svc.Sweep(ctx)
}
