package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const recordsSchema = `CREATE TABLE IF NOT EXISTS records (
	seq BIGSERIAL,
	entity TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (entity, id)
)`

// PostgresStore keeps every entity in a single JSONB table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the records table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, recordsSchema); err != nil {
		return fmt.Errorf("ensure records schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, entity string) ([]json.RawMessage, error) {
	if err := validEntity(entity); err != nil {
		return nil, err
	}
	const query = `SELECT data FROM records WHERE entity = $1 ORDER BY seq ASC`
	var rows []string
	if err := s.db.SelectContext(ctx, &rows, query, entity); err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	out := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		out[i] = json.RawMessage(row)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, entity string, record interface{}) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	raw, id, err := marshalRecord(record)
	if err != nil {
		return err
	}
	const query = `INSERT INTO records (entity, id, data, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (entity, id)
DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, entity, id, string(raw)); err != nil {
		return fmt.Errorf("save %s: %w", entity, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, entity, id string) error {
	if err := validEntity(entity); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrRecordID
	}
	const query = `DELETE FROM records WHERE entity = $1 AND id = $2`
	if _, err := s.db.ExecContext(ctx, query, entity, id); err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
