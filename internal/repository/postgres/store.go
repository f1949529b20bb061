package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"minibus-console/internal/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	dbTimeout = 5 * time.Second
	schema    = "minibus"

	uniqueViolation = "23505"
)

var _ repository.DocumentStore = (*Store)(nil)

// Store keeps each collection in its own JSONB table: minibus.<collection>.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type documentRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Migrate creates the schema and collection tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{`CREATE SCHEMA IF NOT EXISTS ` + schema}
	for _, collection := range []string{repository.BusesCollection, repository.UsersCollection} {
		table, _ := tableName(collection)
		statements = append(statements, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`, table))
		statements = append(statements, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s_data_gin ON %s USING GIN (data jsonb_path_ops)`,
			collection, table))
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var row documentRow
	query := `SELECT id, data, created_at, updated_at FROM ` + table + ` WHERE id = $1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, repository.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return rowToDocument(row)
}

func (s *Store) Query(ctx context.Context, collection string, filter repository.Filter) ([]repository.Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = repository.Filter{}
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var rows []documentRow
	query := `
		SELECT id, data, created_at, updated_at FROM ` + table + `
		WHERE data @> $1::jsonb
		ORDER BY created_at, id`
	if err := s.db.SelectContext(ctx, &rows, query, string(raw)); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	docs := make([]repository.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := rowToDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Create(ctx context.Context, collection string, data repository.Document) (string, error) {
	table, err := tableName(collection)
	if err != nil {
		return "", err
	}

	id, _ := data["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := json.Marshal(stripManaged(data))
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", collection, err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `INSERT INTO ` + table + ` (id, data) VALUES ($1, $2::jsonb) RETURNING id`
	if err := s.db.QueryRowxContext(ctx, query, id, string(raw)).Scan(&id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", fmt.Errorf("%s/%s already exists", collection, id)
		}
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, partial repository.Document) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(stripManaged(partial))
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `UPDATE ` + table + ` SET data = data || $1::jsonb, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, string(raw), id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, repository.ErrDocumentNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// tableName maps a collection onto its table. Only known collections are
// accepted because the name is spliced into SQL.
func tableName(collection string) (string, error) {
	switch collection {
	case repository.BusesCollection, repository.UsersCollection:
		return schema + "." + collection, nil
	}
	return "", fmt.Errorf("unknown collection %q", collection)
}

func rowToDocument(row documentRow) (repository.Document, error) {
	doc, err := repository.DecodeJSON(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", row.ID, err)
	}
	if doc == nil {
		doc = repository.Document{}
	}
	doc["id"] = row.ID
	doc["createdAt"] = row.CreatedAt.UTC().Format(time.RFC3339Nano)
	doc["updatedAt"] = row.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return doc, nil
}

// stripManaged drops keys owned by the table columns.
func stripManaged(data repository.Document) repository.Document {
	out := make(repository.Document, len(data))
	for k, v := range data {
		switch k {
		case "id", "createdAt", "updatedAt":
			continue
		}
		out[k] = v
	}
	return out
}
