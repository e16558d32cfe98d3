package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/foxhunt72/bscp/internal/common"
	"github.com/foxhunt72/bscp/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	s := NewStore(backend, logging.NewNopLogger())
	t.Cleanup(func() { _ = s.Close() })

	assert.Nil(t, s.Load(ctx, "sdb"))

	require.NoError(t, s.Save(ctx, "sdb", sample()))
	got := s.Load(ctx, "sdb")
	require.NotNil(t, got)
	assert.Equal(t, sample(), got)

	// upsert
	next := sample()
	next.Index = 1
	require.NoError(t, s.Save(ctx, "sdb", next))
	got = s.Load(ctx, "sdb")
	require.NotNil(t, got)
	assert.Equal(t, uint64(1), got.Index)
}

func TestSQLite_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, Object{Key: "k", Data: []byte("v")}))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	v, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestPostgres_PutUsesOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checkpoints \(name, payload, updated_at\) VALUES \(\$1, \$2, now\(\)\)`).
		WithArgs("sdb", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO checkpoints`).
		WithArgs("sdb.v2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewStore(NewSQLBackend(db, DialectPostgres), logging.NewNopLogger())
	require.NoError(t, s.Save(context.Background(), "sdb", sample()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checkpoints`).
		WithArgs("sdb", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO checkpoints`).
		WithArgs("sdb.v2", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := NewStore(NewSQLBackend(db, DialectPostgres), logging.NewNopLogger())
	require.Error(t, s.Save(context.Background(), "sdb", sample()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRowAndMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT payload FROM checkpoints WHERE name = \$1`).
		WithArgs("present").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("data")))
	mock.ExpectQuery(`SELECT payload FROM checkpoints WHERE name = \$1`).
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	b := NewSQLBackend(db, DialectPostgres)
	ctx := context.Background()

	v, err := b.Get(ctx, "present")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), v)

	_, err = b.Get(ctx, "absent")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetWrapsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT payload FROM checkpoints WHERE name = \?`).
		WithArgs("k").
		WillReturnError(errors.New("locked"))

	_, err = NewRepository(db, DialectSQLite).Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get checkpoint[k]")
}
