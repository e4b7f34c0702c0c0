package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"tictactoe/internal/domain"
)

var _ domain.AuditLog = (*DB)(nil)

// Append inserts an audit event.
func (d *DB) Append(ctx context.Context, e domain.AuditEvent) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode audit data: %w", err)
	}
	_, err = d.sql.ExecContext(ctx,
		"INSERT INTO audit_events (type, data, created_at) VALUES ($1, $2, $3)",
		e.Type, data, e.CreatedAt,
	)
	return err
}
