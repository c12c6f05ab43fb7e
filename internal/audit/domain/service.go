package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Event struct {
	TenantID   snowflake.ID
	ActorType  string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type Service interface {
	// Record writes an audit entry. Failures are logged and swallowed;
	// the caller's primary operation must never depend on the trail.
	Record(ctx context.Context, event Event)

	ListRecent(ctx context.Context, tenantID snowflake.ID, limit int) ([]AuditLog, error)
}

var ErrInvalidAction = errors.New("invalid_action")
