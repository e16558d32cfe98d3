package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/foxhunt72/bscp/internal/checkpoint/migrations"
	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLBackend keeps payloads in the checkpoints table.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLBackend(db *sql.DB, dialect Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect}
}

// OpenSQLite opens (creating if needed) a SQLite database file and applies
// the migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLBackend, error) {
	return openSQL(ctx, "sqlite", path, DialectSQLite, "sqlite")
}

// OpenPostgres connects through the pgx stdlib driver and applies the
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLBackend, error) {
	return openSQL(ctx, "pgx", dsn, DialectPostgres, "postgres")
}

func openSQL(ctx context.Context, driver, dsn string, dialect Dialect, dir string) (*SQLBackend, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := RunMigrations(ctx, db, dialect, dir); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLBackend(db, dialect), nil
}

func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect, dir string) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("checkpoint migrations: %w", err)
	}
	return nil
}

func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := NewRepository(b.db, b.dialect).Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, common.ErrorNotFound
	}
	return payload, nil
}

// Put writes all objects in a single transaction.
func (b *SQLBackend) Put(ctx context.Context, objects ...Object) error {
	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewRepository(tx, b.dialect)
		for _, obj := range objects {
			if err := repo.Set(ctx, obj.Key, obj.Data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
