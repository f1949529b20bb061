package user

import (
	"context"
	"errors"
	"fmt"

	"minibus-console/internal/models"
	"minibus-console/internal/repository"
)

type userRepository struct {
	store repository.DocumentStore
}

func NewUserRepository(store repository.DocumentStore) repository.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	doc, err := repository.ToDocument(user)
	if err != nil {
		return err
	}
	delete(doc, "createdAt")
	delete(doc, "updatedAt")
	if user.ID == "" {
		delete(doc, "id")
	}

	id, err := r.store.Create(ctx, repository.UsersCollection, doc)
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, repository.UsersCollection, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, models.NewError(models.KindNotFound, "user %s not found", id)
		}
		return nil, err
	}
	return decodeUser(doc)
}

func (r *userRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, nil)
}

func (r *userRepository) GetByRole(ctx context.Context, role string) ([]*models.User, error) {
	return r.query(ctx, repository.Filter{"role": role})
}

func (r *userRepository) query(ctx context.Context, filter repository.Filter) ([]*models.User, error) {
	docs, err := r.store.Query(ctx, repository.UsersCollection, filter)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id string, fields repository.Document) error {
	patch, err := repository.ToDocument(fields)
	if err != nil {
		return err
	}
	return r.update(ctx, id, patch)
}

func (r *userRepository) UpdateBusAssignments(ctx context.Context, id string, assignments []models.BusAssignment) error {
	if assignments == nil {
		assignments = []models.BusAssignment{}
	}
	patch, err := repository.ToDocument(struct {
		BusAssignments []models.BusAssignment `json:"busAssignments"`
	}{assignments})
	if err != nil {
		return err
	}
	return r.update(ctx, id, patch)
}

func (r *userRepository) UpdateDriverBuses(ctx context.Context, id string, buses []models.DriverBus) error {
	if buses == nil {
		buses = []models.DriverBus{}
	}
	patch, err := repository.ToDocument(struct {
		DriverBuses []models.DriverBus `json:"driverBuses"`
	}{buses})
	if err != nil {
		return err
	}
	return r.update(ctx, id, patch)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, repository.UsersCollection, id)
}

func (r *userRepository) update(ctx context.Context, id string, patch repository.Document) error {
	err := r.store.Update(ctx, repository.UsersCollection, id, patch)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return models.NewError(models.KindNotFound, "user %s not found", id)
	}
	return err
}

func decodeUser(doc repository.Document) (*models.User, error) {
	var user models.User
	if err := repository.FromDocument(doc, &user); err != nil {
		return nil, fmt.Errorf("user %v: %w", doc["id"], err)
	}
	if user.BusAssignments == nil {
		user.BusAssignments = []models.BusAssignment{}
	}
	return &user, nil
}
