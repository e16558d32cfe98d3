package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/foxhunt72/bscp/internal/dbx"
)

// Dialect selects placeholder style and migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Repository is the checkpoints key/value table.
type Repository struct {
	db      dbx.DBTX
	dialect Dialect
}

func NewRepository(db dbx.DBTX, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

func (r *Repository) getQuery() string {
	if r.dialect == DialectPostgres {
		return `SELECT payload FROM checkpoints WHERE name = $1`
	}
	return `SELECT payload FROM checkpoints WHERE name = ?`
}

func (r *Repository) setQuery() string {
	if r.dialect == DialectPostgres {
		return `
		INSERT INTO checkpoints (name, payload, updated_at) VALUES ($1, $2, now())
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	}
	return `
		INSERT INTO checkpoints (name, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
}

// Get returns (nil, nil) when name has no row.
func (r *Repository) Get(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, r.getQuery(), name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint[%s]: %w", name, err)
	}
	return payload, nil
}

func (r *Repository) Set(ctx context.Context, name string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, r.setQuery(), name, payload)
	if err != nil {
		return fmt.Errorf("failed to set checkpoint[%s]: %w", name, err)
	}
	return nil
}
