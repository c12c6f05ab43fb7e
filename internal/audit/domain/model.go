// Package domain contains types for the authentication audit trail.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActorTypeAdmin  = "admin"
	ActorTypeMember = "member"
	ActorTypeSystem = "system"

	ActionLoginSucceeded     = "auth.login.succeeded"
	ActionLoginFailed        = "auth.login.failed"
	ActionLogout             = "auth.logout"
	ActionIsolationViolation = "session.isolation_violation"
	ActionSessionDestroyed   = "session.destroyed"
)

// AuditLog records one authentication or session lifecycle event.
// Writes are best-effort; a failed insert never fails the login path.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID      `gorm:"index" json:"tenant_id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
