// Package domain contains core types for the identity service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ActorType discriminates who holds a session. The two durable actor
// types are mutually exclusive within one session; anonymous customers
// carry no durable identity at all.
type ActorType string

const (
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeMember ActorType = "member"
)

// PlatformAdmin operates the administrative portal and is
// tenant-agnostic.
type PlatformAdmin struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Email          string       `gorm:"type:text;not null;uniqueIndex:ux_platform_admins_email" json:"email"`
	PasswordHash   *string      `gorm:"type:text" json:"-"`
	IsActive       bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	LastActivityAt *time.Time   `gorm:"column:last_activity_at" json:"last_activity_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PlatformAdmin) TableName() string { return "platform_admins" }

// OrganizationUser belongs to exactly one tenant.
type OrganizationUser struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_users_tenant_email,priority:1" json:"tenant_id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex:ux_org_users_tenant_email,priority:2" json:"email"`
	PasswordHash *string      `gorm:"type:text" json:"-"`
	Role         string       `gorm:"type:text;not null" json:"role"`
	IsActive     bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationUser) TableName() string { return "organization_users" }

// Actor is the loaded identity behind an authenticated session.
// Exactly one of Admin or Member is set, matching Type.
type Actor struct {
	Type   ActorType
	Admin  *PlatformAdmin
	Member *OrganizationUser
}

func (a Actor) ID() snowflake.ID {
	switch a.Type {
	case ActorTypeAdmin:
		if a.Admin != nil {
			return a.Admin.ID
		}
	case ActorTypeMember:
		if a.Member != nil {
			return a.Member.ID
		}
	}
	return 0
}

// TenantID returns the owning tenant for members, zero for admins.
func (a Actor) TenantID() snowflake.ID {
	if a.Type == ActorTypeMember && a.Member != nil {
		return a.Member.TenantID
	}
	return 0
}
