package repository

import (
	"context"
	"errors"

	"minibus-console/internal/models"
)

const (
	BusesCollection = "buses"
	UsersCollection = "users"
)

// ErrDocumentNotFound is returned by DocumentStore.Get and Update.
var ErrDocumentNotFound = errors.New("document not found")

// Document is a JSON-shaped record. Reads always carry the "id" key.
type Document map[string]interface{}

// Filter matches documents whose top-level fields equal the given values.
// An empty filter matches everything.
type Filter map[string]interface{}

// DocumentStore is the persistence contract the engine is written against.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Create(ctx context.Context, collection string, data Document) (string, error)
	// Update merges partial into the stored document; absent fields are untouched.
	Update(ctx context.Context, collection, id string, partial Document) error
	Delete(ctx context.Context, collection, id string) error
}

type BusRepository interface {
	Create(ctx context.Context, bus *models.Bus) error
	GetByID(ctx context.Context, id string) (*models.Bus, error)
	GetAll(ctx context.Context) ([]*models.Bus, error)
	GetByDriverID(ctx context.Context, driverID string) ([]*models.Bus, error)
	UpdateFields(ctx context.Context, id string, fields Document) error
	UpdateRoster(ctx context.Context, id string, riders []models.RiderLink) error
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetAll(ctx context.Context) ([]*models.User, error)
	GetByRole(ctx context.Context, role string) ([]*models.User, error)
	UpdateFields(ctx context.Context, id string, fields Document) error
	UpdateBusAssignments(ctx context.Context, id string, assignments []models.BusAssignment) error
	UpdateDriverBuses(ctx context.Context, id string, buses []models.DriverBus) error
	Delete(ctx context.Context, id string) error
}
