package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tictactoe/internal/domain"
)

var _ domain.SessionRepository = (*DB)(nil)

const gameColumns = "id, player_x, player_o, board, current_turn, status, winner, created_at, updated_at"

func scanGame(row rowScanner) (*domain.Session, error) {
	var (
		s      domain.Session
		board  string
		turn   int
		winner sql.NullString
	)
	if err := row.Scan(&s.ID, &s.PlayerX, &s.PlayerO, &board, &turn, &s.Status, &winner, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := domain.DecodeBoard(board)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", s.ID, err)
	}
	s.Board = b
	s.CurrentTurn = domain.Cell(turn)
	s.Winner = winner.String
	return &s, nil
}

// GetSession retrieves a game by ID.
func (d *DB) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	s, err := scanGame(d.sql.QueryRowContext(ctx,
		"SELECT "+gameColumns+" FROM games WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: game %s", domain.ErrNotFound, id)
	}
	return s, err
}

// SaveSession upserts a game and the changed users in one transaction.
func (d *DB) SaveSession(ctx context.Context, s *domain.Session, changed ...*domain.User) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range changed {
		if err := saveUser(ctx, tx, u); err != nil {
			return err
		}
	}

	var winner sql.NullString
	if s.Winner != "" {
		winner = sql.NullString{String: s.Winner, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO games ("+gameColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) "+
			"ON CONFLICT (id) DO UPDATE SET board = EXCLUDED.board, current_turn = EXCLUDED.current_turn, "+
			"status = EXCLUDED.status, winner = EXCLUDED.winner, updated_at = EXCLUDED.updated_at",
		s.ID, s.PlayerX, s.PlayerO, s.Board.Encode(), int(s.CurrentTurn), s.Status, winner, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// sessionQuery builds the SELECT for f.
func sessionQuery(f domain.SessionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Participant != "" {
		p := arg(f.Participant)
		where = append(where, "(player_x = "+p+" OR player_o = "+p+")")
	}
	if f.Invitee != "" {
		where = append(where, "player_o = "+arg(f.Invitee))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}

	q := "SELECT " + gameColumns + " FROM games"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY created_at DESC, id DESC", args
}

// QuerySessions returns games matching f, newest first.
func (d *DB) QuerySessions(ctx context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	q, args := sessionQuery(f)
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
