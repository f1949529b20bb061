// Package memory provides an in-process DocumentStore for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"minibus-console/internal/repository"

	"github.com/google/uuid"
)

var _ repository.DocumentStore = (*Store)(nil)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]repository.Document
	order       map[string][]string
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]repository.Document),
		order:       make(map[string][]string),
		now:         time.Now,
	}
}

func (s *Store) Get(_ context.Context, collection, id string) (repository.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, repository.ErrDocumentNotFound)
	}
	return clone(doc)
}

// Query returns matches in insertion order.
func (s *Store) Query(_ context.Context, collection string, filter repository.Filter) ([]repository.Document, error) {
	want := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		nv, err := repository.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("normalize filter %q: %w", k, err)
		}
		want[k] = nv
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []repository.Document
	for _, id := range s.order[collection] {
		doc := s.collections[collection][id]
		if !matches(doc, want) {
			continue
		}
		c, err := clone(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func (s *Store) Create(_ context.Context, collection string, data repository.Document) (string, error) {
	doc, err := clone(data)
	if err != nil {
		return "", err
	}

	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	doc["id"] = id
	doc["createdAt"] = stamp
	doc["updatedAt"] = stamp

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]repository.Document)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return "", fmt.Errorf("%s/%s already exists", collection, id)
	}
	docs[id] = doc
	s.order[collection] = append(s.order[collection], id)
	return id, nil
}

func (s *Store) Update(_ context.Context, collection, id string, partial repository.Document) error {
	patch, err := clone(partial)
	if err != nil {
		return err
	}
	delete(patch, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, repository.ErrDocumentNotFound)
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return nil
	}
	delete(s.collections[collection], id)

	ids := s.order[collection]
	for i, existing := range ids {
		if existing == id {
			s.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func matches(doc repository.Document, want map[string]interface{}) bool {
	for k, v := range want {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}

func clone(doc repository.Document) (repository.Document, error) {
	if doc == nil {
		return repository.Document{}, nil
	}
	return repository.ToDocument(doc)
}
