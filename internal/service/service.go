package service

import (
	"context"

	"minibus-console/internal/models"
)

// AssignmentService keeps Bus.CurrentRiders and User.BusAssignments in step.
type AssignmentService interface {
	Assign(ctx context.Context, riderID, busID string, subscriptionType models.SubscriptionType, locationID string) (*models.AssignmentResult, error)
	UpdatePaymentStatus(ctx context.Context, riderID, busID string, status models.PaymentStatus) (*models.AssignmentResult, error)
	UpdateSubscriptionType(ctx context.Context, riderID, busID string, subscriptionType models.SubscriptionType) (*models.AssignmentResult, error)
	Remove(ctx context.Context, riderID, busID string) (*models.AssignmentResult, error)
}

// ExpiryService evicts expired links and repairs one-sided ones.
// Sweeper runs an expiry sweep on behalf of an operator. Implementations
// may refuse with a Conflict error while another sweep holds the lease.
type Sweeper interface {
	Sweep(ctx context.Context) (*models.SweepReport, error)
}

type ExpiryService interface {
	Sweep(ctx context.Context) (*models.SweepReport, error)
	Reconcile(ctx context.Context) (*models.ReconcileReport, error)
}

type BusService interface {
	Create(ctx context.Context, bus *models.Bus) (*models.Bus, error)
	Get(ctx context.Context, id string) (*models.Bus, error)
	List(ctx context.Context) ([]*models.Bus, error)
	Update(ctx context.Context, id string, patch models.BusPatch) (*models.Bus, error)
	Delete(ctx context.Context, id string) error
	AssignDriver(ctx context.Context, busID, driverID string) (*models.Bus, error)
	Roster(ctx context.Context, busID string) ([]models.RiderLink, error)
}

type UserService interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	// List returns every user when role is empty.
	List(ctx context.Context, role string) ([]*models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, id string) error
}
