// Package domain contains persistence models for the tenant service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tenant represents one customer organization, addressed by its slug
// subdomain or an optional custom domain.
type Tenant struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex:ux_tenants_slug" json:"slug"`
	CustomDomain *string           `gorm:"type:text;index" json:"custom_domain,omitempty"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Subscription *Subscription `gorm:"foreignKey:TenantID" json:"subscription,omitempty"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

const (
	SubscriptionStatusTrial     = "trial"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusInactive  = "inactive"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription is one-to-one with Tenant.
type Subscription struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID `gorm:"not null;uniqueIndex:ux_subscriptions_tenant" json:"tenant_id"`
	Status     string       `gorm:"type:text;not null" json:"status"`
	MaxMembers int          `gorm:"not null;default:10" json:"max_members"`
	MaxQueues  int          `gorm:"not null;default:5" json:"max_queues"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Entitled reports whether the subscription status grants access.
func (s Subscription) Entitled() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrial
}
