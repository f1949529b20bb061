package bus

import (
	"context"
	"errors"
	"fmt"

	"minibus-console/internal/models"
	"minibus-console/internal/repository"
)

type busRepository struct {
	store repository.DocumentStore
}

func NewBusRepository(store repository.DocumentStore) repository.BusRepository {
	return &busRepository{store: store}
}

func (r *busRepository) Create(ctx context.Context, bus *models.Bus) error {
	doc, err := repository.ToDocument(bus)
	if err != nil {
		return err
	}
	delete(doc, "createdAt")
	delete(doc, "updatedAt")
	if bus.ID == "" {
		delete(doc, "id")
	}

	id, err := r.store.Create(ctx, repository.BusesCollection, doc)
	if err != nil {
		return err
	}
	bus.ID = id
	return nil
}

func (r *busRepository) GetByID(ctx context.Context, id string) (*models.Bus, error) {
	doc, err := r.store.Get(ctx, repository.BusesCollection, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, models.NewError(models.KindNotFound, "bus %s not found", id)
		}
		return nil, err
	}
	return decodeBus(doc)
}

func (r *busRepository) GetAll(ctx context.Context) ([]*models.Bus, error) {
	return r.query(ctx, nil)
}

func (r *busRepository) GetByDriverID(ctx context.Context, driverID string) ([]*models.Bus, error) {
	return r.query(ctx, repository.Filter{"driverId": driverID})
}

func (r *busRepository) query(ctx context.Context, filter repository.Filter) ([]*models.Bus, error) {
	docs, err := r.store.Query(ctx, repository.BusesCollection, filter)
	if err != nil {
		return nil, err
	}

	buses := make([]*models.Bus, 0, len(docs))
	for _, doc := range docs {
		bus, err := decodeBus(doc)
		if err != nil {
			return nil, err
		}
		buses = append(buses, bus)
	}
	return buses, nil
}

func (r *busRepository) UpdateFields(ctx context.Context, id string, fields repository.Document) error {
	patch, err := repository.ToDocument(fields)
	if err != nil {
		return err
	}
	return r.update(ctx, id, patch)
}

func (r *busRepository) UpdateRoster(ctx context.Context, id string, riders []models.RiderLink) error {
	if riders == nil {
		riders = []models.RiderLink{}
	}
	patch, err := repository.ToDocument(struct {
		CurrentRiders []models.RiderLink `json:"currentRiders"`
	}{riders})
	if err != nil {
		return err
	}
	return r.update(ctx, id, patch)
}

func (r *busRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, repository.BusesCollection, id)
}

func (r *busRepository) update(ctx context.Context, id string, patch repository.Document) error {
	err := r.store.Update(ctx, repository.BusesCollection, id, patch)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return models.NewError(models.KindNotFound, "bus %s not found", id)
	}
	return err
}

func decodeBus(doc repository.Document) (*models.Bus, error) {
	var bus models.Bus
	if err := repository.FromDocument(doc, &bus); err != nil {
		return nil, fmt.Errorf("bus %v: %w", doc["id"], err)
	}
	if bus.CurrentRiders == nil {
		bus.CurrentRiders = []models.RiderLink{}
	}
	return &bus, nil
}
