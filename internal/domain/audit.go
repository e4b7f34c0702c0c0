package domain

import (
	"context"
	"time"
)

// Audit event types, one per stream of game activity.
const (
	AuditGameRequests = "game_requests"
	AuditGameUpdates  = "game_updates"
	AuditUserStatus   = "user_status"
)

// AuditEvent is one appended audit record.
type AuditEvent struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditLog is an optional fire-and-forget event sink. Failures must never
// affect the game operation that produced the event.
type AuditLog interface {
	Append(ctx context.Context, e AuditEvent) error
}
