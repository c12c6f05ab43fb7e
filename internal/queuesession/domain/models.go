// Package domain contains core types for anonymous queue sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EntryStatusWaiting   = "waiting"
	EntryStatusNoShow    = "no_show"
	EntryStatusCompleted = "completed"
	EntryStatusCancelled = "cancelled"

	OriginWebchat = "webchat"
	OriginWalkIn  = "walk_in"
)

// QueueSession is an anonymous customer's claim on a queue entry. The
// client holds the opaque SessionID; at most one active row exists per
// queue entry.
type QueueSession struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	SessionID        string       `gorm:"type:text;not null;uniqueIndex:ux_queue_sessions_session_id" json:"session_id"`
	QueueEntryID     snowflake.ID `gorm:"not null;index" json:"queue_entry_id"`
	IsActive         bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	SessionExpiresAt time.Time    `gorm:"not null" json:"session_expires_at"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (QueueSession) TableName() string { return "queue_sessions" }

// QueueEntry is one customer's place in a tenant queue.
type QueueEntry struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	QueueID          snowflake.ID      `gorm:"not null;index" json:"queue_id"`
	Status           string            `gorm:"type:text;not null;default:'waiting';index" json:"status"`
	Origin           string            `gorm:"type:text;not null;default:'webchat'" json:"origin"`
	DisplayName      string            `gorm:"type:text" json:"display_name"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	LastActivityAt   time.Time         `gorm:"not null" json:"last_activity_at"`
	SessionExpiresAt time.Time         `gorm:"not null" json:"session_expires_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (QueueEntry) TableName() string { return "queue_entries" }

// Terminal reports whether the entry left the waiting pool.
func (e *QueueEntry) Terminal() bool {
	switch e.Status {
	case EntryStatusCompleted, EntryStatusCancelled, EntryStatusNoShow:
		return true
	}
	return false
}
