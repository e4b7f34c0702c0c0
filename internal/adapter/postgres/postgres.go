// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, username TEXT UNIQUE NOT NULL, status TEXT NOT NULL CHECK(status IN ('online','offline','playing')), score INTEGER NOT NULL DEFAULT 0, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS games (id TEXT PRIMARY KEY, player_x TEXT NOT NULL REFERENCES users(id), player_o TEXT NOT NULL REFERENCES users(id), board CHAR(9) NOT NULL, current_turn SMALLINT NOT NULL CHECK(current_turn IN (1,2)), status TEXT NOT NULL CHECK(status IN ('pending','in_progress','finished','draw','rejected')), winner TEXT REFERENCES users(id), created_at TIMESTAMPTZ NOT NULL, updated_at TIMESTAMPTZ NOT NULL, CHECK(player_x <> player_o));",
		"CREATE INDEX IF NOT EXISTS idx_games_player_x ON games(player_x);",
		"CREATE INDEX IF NOT EXISTS idx_games_player_o ON games(player_o);",
		"CREATE INDEX IF NOT EXISTS idx_games_created_at ON games(created_at);",
		"CREATE TABLE IF NOT EXISTS audit_events (id BIGSERIAL PRIMARY KEY, type TEXT NOT NULL, data JSONB NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(type, created_at);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
