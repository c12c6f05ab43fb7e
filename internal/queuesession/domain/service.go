package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Service interface {
	// Join creates a queue entry and its active session in one step.
	Join(ctx context.Context, req JoinRequest) (*JoinResult, error)

	// Validate is a read-only lifecycle check. Absent, cancelled and
	// long-expired sessions all come back Recovered=false rather than
	// as errors; only storage failures surface as errors.
	Validate(ctx context.Context, sessionID string) (*ValidationResult, error)

	// Extend pushes the expiry horizon of an active session. Inactive
	// sessions are rejected with ErrSessionNotFound; reactivation goes
	// through recovery, never through extension.
	Extend(ctx context.Context, sessionID string) (time.Time, error)

	// Cancel terminates the entry and deactivates the session.
	// Idempotent: cancelling an already cancelled session succeeds.
	Cancel(ctx context.Context, sessionID string) error
}

type JoinRequest struct {
	TenantID    snowflake.ID
	QueueID     snowflake.ID
	SessionID   string
	Origin      string
	DisplayName string
	Metadata    datatypes.JSONMap
}

type JoinResult struct {
	Session  *QueueSession
	Entry    *QueueEntry
	Position int
}

type ValidationResult struct {
	Recovered         bool
	WithinGracePeriod bool
	Position          int
	ExpiresAt         time.Time
	RecoveryToken     string
}
