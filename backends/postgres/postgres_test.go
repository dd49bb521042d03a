package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/botirk38/semanticrouter/types"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBackend(t *testing.T, config types.BackendConfig) (*Backend, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS faq_test").WillReturnResult(sqlmock.NewResult(0, 0))

	config.TableName = "faq_test"
	b, err := NewBackendWithDB(context.Background(), sqlx.NewDb(db, "postgres"), config)
	require.NoError(t, err)
	return b, mock
}

func TestNewBackendWithDB(t *testing.T) {
	t.Run("rejects unsafe table names", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		_, err = NewBackendWithDB(context.Background(), sqlx.NewDb(db, "postgres"), types.BackendConfig{
			TableName: "entries; DROP TABLE users",
		})
		assert.ErrorIs(t, err, ErrInvalidTableName)
	})

	t.Run("creates a fixed dimension column", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`embedding VECTOR\(3\) NOT NULL`).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err = NewBackendWithDB(context.Background(), sqlx.NewDb(db, "postgres"), types.BackendConfig{Dimensions: 3})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("surfaces extension errors", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnError(errors.New("permission denied"))

		_, err = NewBackendWithDB(context.Background(), sqlx.NewDb(db, "postgres"), types.BackendConfig{})
		assert.ErrorContains(t, err, "vector extension")
	})
}

func TestBackendInsert(t *testing.T) {
	b, mock := newMockBackend(t, types.BackendConfig{Dimensions: 3})

	mock.ExpectExec("INSERT INTO faq_test").
		WithArgs("hours", "9 to 5", "[1,0,0]").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := b.Insert(context.Background(), types.Entry{Question: "hours", Embedding: []float32{1, 0, 0}, Answer: "9 to 5"})
	require.NoError(t, err)

	err = b.Insert(context.Background(), types.Entry{Question: "bad", Embedding: []float32{1, 0}, Answer: "x"})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendNearest(t *testing.T) {
	ctx := context.Background()

	t.Run("returns best row", func(t *testing.T) {
		b, mock := newMockBackend(t, types.BackendConfig{})

		mock.ExpectQuery(`ORDER BY embedding <=> \$1 ASC, id ASC`).
			WithArgs("[0.9,0.1,0]").
			WillReturnRows(sqlmock.NewRows([]string{"question", "answer", "embedding", "score"}).
				AddRow("hours", "9 to 5", "[1,0,0]", 0.99))

		match, found, err := b.Nearest(ctx, []float32{0.9, 0.1, 0})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "hours", match.Entry.Question)
		assert.Equal(t, "9 to 5", match.Entry.Answer)
		assert.Equal(t, []float32{1, 0, 0}, match.Entry.Embedding)
		assert.InDelta(t, 0.99, match.Score, 1e-6)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty table", func(t *testing.T) {
		b, mock := newMockBackend(t, types.BackendConfig{})

		mock.ExpectQuery("SELECT question, answer, embedding").
			WillReturnRows(sqlmock.NewRows([]string{"question", "answer", "embedding", "score"}))

		_, found, err := b.Nearest(ctx, []float32{1, 0, 0})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		b, _ := newMockBackend(t, types.BackendConfig{Dimensions: 3})

		_, _, err := b.Nearest(ctx, []float32{1, 0})
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	})
}

func TestBackendReadOperations(t *testing.T) {
	ctx := context.Background()
	b, mock := newMockBackend(t, types.BackendConfig{})

	mock.ExpectQuery("WHERE question = \\$1").
		WithArgs("address").
		WillReturnRows(sqlmock.NewRows([]string{"question", "answer", "embedding"}).
			AddRow("address", "Main St", "[0,1]"))
	mock.ExpectQuery("WHERE question = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"question", "answer", "embedding"}))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM faq_test`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("ORDER BY id ASC").
		WillReturnRows(sqlmock.NewRows([]string{"question", "answer", "embedding"}).
			AddRow("hours", "9 to 5", "[1,0]").
			AddRow("address", "Main St", "[0,1]"))
	mock.ExpectExec("TRUNCATE TABLE faq_test").WillReturnResult(sqlmock.NewResult(0, 0))

	entry, found, err := b.Get(ctx, "address")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Main St", entry.Answer)

	_, found, err = b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := b.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "hours", entries[0].Question)
	assert.Equal(t, "address", entries[1].Question)

	require.NoError(t, b.Reset(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
