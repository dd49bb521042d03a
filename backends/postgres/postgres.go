// Package postgres implements the similarity index on PostgreSQL with the
// pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/botirk38/semanticrouter/types"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const defaultTableName = "semantic_router_entries"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ErrInvalidTableName is returned for table names that are not plain lowercase identifiers.
var ErrInvalidTableName = errors.New("invalid table name")

// Backend implements IndexBackend with a single table. The embedding column
// is deliberately left without an ANN index: Nearest must be an exact scan.
type Backend struct {
	db         *sqlx.DB
	table      string
	dimensions int
}

type row struct {
	Question  string          `db:"question"`
	Answer    string          `db:"answer"`
	Embedding pgvector.Vector `db:"embedding"`
	Score     float64         `db:"score"`
}

func (r row) entry() types.Entry {
	return types.Entry{Question: r.Question, Embedding: r.Embedding.Slice(), Answer: r.Answer}
}

// NewBackend connects to config.DSN and ensures the schema exists.
func NewBackend(ctx context.Context, config types.BackendConfig) (*Backend, error) {
	if config.DSN == "" {
		return nil, errors.New("postgres DSN is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	b, err := NewBackendWithDB(ctx, db, config)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewBackendWithDB wraps an existing connection and ensures the schema exists.
func NewBackendWithDB(ctx context.Context, db *sqlx.DB, config types.BackendConfig) (*Backend, error) {
	table := config.TableName
	if table == "" {
		table = defaultTableName
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	if config.Dimensions < 0 {
		return nil, fmt.Errorf("invalid dimensions %d", config.Dimensions)
	}

	b := &Backend{db: db, table: table, dimensions: config.Dimensions}
	if err := b.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// ensureSchema creates the extension and table.
// The table name is validated against tableNamePattern, so formatting it into
// the statement is safe.
func (b *Backend) ensureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	column := "VECTOR"
	if b.dimensions > 0 {
		column = fmt.Sprintf("VECTOR(%d)", b.dimensions)
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		question TEXT NOT NULL UNIQUE,
		answer TEXT NOT NULL,
		embedding %s NOT NULL
	)`, b.table, column)

	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Insert upserts the entry. The row id, and with it the iteration position,
// is kept when a question is replaced.
func (b *Backend) Insert(ctx context.Context, entry types.Entry) error {
	if b.dimensions != 0 && len(entry.Embedding) != b.dimensions {
		return fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(entry.Embedding), b.dimensions)
	}

	_, err := b.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (question, answer, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (question)
		DO UPDATE SET
			answer = EXCLUDED.answer,
			embedding = EXCLUDED.embedding`, b.table),
		entry.Question,
		entry.Answer,
		pgvector.NewVector(entry.Embedding))
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Nearest orders by cosine distance, then by id so the earliest insert wins ties.
func (b *Backend) Nearest(ctx context.Context, query []float32) (types.Match, bool, error) {
	if b.dimensions != 0 && len(query) != b.dimensions {
		return types.Match{}, false, fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(query), b.dimensions)
	}

	var r row
	err := b.db.GetContext(ctx, &r, fmt.Sprintf(`
		SELECT question, answer, embedding, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1 ASC, id ASC
		LIMIT 1`, b.table),
		pgvector.NewVector(query))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Match{}, false, nil
	}
	if err != nil {
		return types.Match{}, false, fmt.Errorf("nearest query failed: %w", err)
	}

	return types.Match{Entry: r.entry(), Score: float32(r.Score)}, true, nil
}

// Get retrieves an entry by question
func (b *Backend) Get(ctx context.Context, question string) (types.Entry, bool, error) {
	var r row
	err := b.db.GetContext(ctx, &r, fmt.Sprintf(
		`SELECT question, answer, embedding FROM %s WHERE question = $1`, b.table), question)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Entry{}, false, nil
	}
	if err != nil {
		return types.Entry{}, false, fmt.Errorf("failed to get entry: %w", err)
	}
	return r.entry(), true, nil
}

// Len returns the number of rows
func (b *Backend) Len(ctx context.Context) (int, error) {
	var n int
	if err := b.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, b.table)); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// Entries returns every row in insertion order
func (b *Backend) Entries(ctx context.Context) ([]types.Entry, error) {
	var rows []row
	if err := b.db.SelectContext(ctx, &rows, fmt.Sprintf(
		`SELECT question, answer, embedding FROM %s ORDER BY id ASC`, b.table)); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	entries := make([]types.Entry, len(rows))
	for i, r := range rows {
		entries[i] = r.entry()
	}
	return entries, nil
}

// Reset truncates the table
func (b *Backend) Reset(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY`, b.table)); err != nil {
		return fmt.Errorf("failed to reset table: %w", err)
	}
	return nil
}

// Close closes the database handle
func (b *Backend) Close() error {
	return b.db.Close()
}
