package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minibus-console/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const dbTimeout = 5 * time.Second

var _ repository.DocumentStore = (*Store)(nil)

// Store maps each collection onto a MongoDB collection keyed by a string _id.
type Store struct {
	db  *mongo.Database
	now func() time.Time
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, repository.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return rawToDocument(raw)
}

func (s *Store) Query(ctx context.Context, collection string, filter repository.Filter) ([]repository.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := bson.M{}
	for k, v := range filter {
		query[k] = v
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []repository.Document
	for cursor.Next(ctx) {
		doc, err := rawToDocument(cursor.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) Create(ctx context.Context, collection string, data repository.Document) (string, error) {
	id, _ := data["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	doc := bson.M{}
	for k, v := range data {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	doc["_id"] = id
	doc["createdAt"] = stamp
	doc["updatedAt"] = stamp

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%s/%s already exists", collection, id)
		}
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, partial repository.Document) error {
	set := bson.M{}
	for k, v := range partial {
		if k == "id" || k == "_id" || k == "createdAt" {
			continue
		}
		set[k] = v
	}
	set["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, repository.ErrDocumentNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// rawToDocument goes through relaxed extended JSON so nested values come
// back as plain maps and slices instead of driver primitives.
func rawToDocument(raw bson.Raw) (repository.Document, error) {
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("decode bson: %w", err)
	}
	doc, err := repository.DecodeJSON(ext)
	if err != nil {
		return nil, fmt.Errorf("decode bson: %w", err)
	}
	if id, ok := doc["_id"]; ok {
		doc["id"] = id
		delete(doc, "_id")
	}
	return doc, nil
}
