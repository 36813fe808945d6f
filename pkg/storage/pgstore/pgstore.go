// Package pgstore persists notebook entries in Postgres, for deployments
// where the notebook outlives any single machine.
package pgstore

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/aunorthrop/nora/pkg/core/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store satisfies the notebook persister contract on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Append inserts one note. Insertion order is preserved by the serial key.
func (s *Store) Append(ctx context.Context, note types.Note) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notes (recorded_at, input, response) VALUES ($1, $2, $3)`,
		note.Timestamp, note.Input, note.Response)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// Load returns every note in submission order.
func (s *Store) Load(ctx context.Context) ([]types.Note, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT recorded_at, input, response FROM notes ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []types.Note
	for rows.Next() {
		var note types.Note
		if err := rows.Scan(&note.Timestamp, &note.Input, &note.Response); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}
	return notes, nil
}

// Clear deletes every note.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
