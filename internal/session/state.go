// Package session holds the server-side session state shared across
// the admin portal and tenant subdomains, keyed by an opaque cookie.
package session

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Type tags which actor family owns a session.
type Type string

const (
	TypeNone   Type = ""
	TypeAdmin  Type = "admin"
	TypeTenant Type = "tenant"
)

// ActorState is the actor half of a session record. The Kind tag keeps
// the two durable actor types mutually exclusive; the purge helpers
// repair records where both sets of fields survived (legacy blobs, or
// a cookie replayed across subdomains sharing a cookie domain).
type ActorState struct {
	Kind         Type         `json:"kind"`
	AdminID      snowflake.ID `json:"admin_id,omitempty"`
	UserID       snowflake.ID `json:"user_id,omitempty"`
	TenantID     snowflake.ID `json:"tenant_id,omitempty"`
	TenantSlug   string       `json:"tenant_slug,omitempty"`
	LastActivity time.Time    `json:"last_activity"`
}

func (s ActorState) HasAdmin() bool  { return s.AdminID != 0 }
func (s ActorState) HasTenant() bool { return s.UserID != 0 }

// Record is the full server-side session. The CSRF token and flash
// messages are orthogonal to the actor state and survive actor-type
// transitions; only the CSRF fields survive regeneration.
type Record struct {
	ID            string            `json:"id"`
	State         ActorState        `json:"state"`
	CSRFToken     string            `json:"csrf_token,omitempty"`
	CSRFExpiresAt time.Time         `json:"csrf_expires_at,omitempty"`
	Flashes       map[string]string `json:"flashes,omitempty"`

	// ResolvedTenantID/Slug cache the outcome of tenant resolution so
	// later requests can detect forged cross-tenant sessions.
	ResolvedTenantID   snowflake.ID `json:"resolved_tenant_id,omitempty"`
	ResolvedTenantSlug string       `json:"resolved_tenant_slug,omitempty"`
}

// SetAdmin replaces the actor state with a platform admin identity.
func (r *Record) SetAdmin(adminID snowflake.ID, now time.Time) {
	r.State = ActorState{
		Kind:         TypeAdmin,
		AdminID:      adminID,
		LastActivity: now,
	}
}

// SetTenantUser replaces the actor state with an organization user.
func (r *Record) SetTenantUser(userID, tenantID snowflake.ID, tenantSlug string, now time.Time) {
	r.State = ActorState{
		Kind:         TypeTenant,
		UserID:       userID,
		TenantID:     tenantID,
		TenantSlug:   tenantSlug,
		LastActivity: now,
	}
}

// PurgeTenant drops organization-user identity, keeping the admin.
func (r *Record) PurgeTenant(now time.Time) {
	r.State.UserID = 0
	r.State.TenantID = 0
	r.State.TenantSlug = ""
	if r.State.HasAdmin() {
		r.State.Kind = TypeAdmin
	} else {
		r.State.Kind = TypeNone
	}
	r.State.LastActivity = now
}

// PurgeAdmin drops platform-admin identity, keeping the tenant user.
func (r *Record) PurgeAdmin(now time.Time) {
	r.State.AdminID = 0
	if r.State.HasTenant() {
		r.State.Kind = TypeTenant
	} else {
		r.State.Kind = TypeNone
	}
	r.State.LastActivity = now
}

// AddFlash stores a one-shot message under key.
func (r *Record) AddFlash(key, value string) {
	if r.Flashes == nil {
		r.Flashes = map[string]string{}
	}
	r.Flashes[key] = value
}

// TakeFlash removes and returns the message under key.
func (r *Record) TakeFlash(key string) (string, bool) {
	value, ok := r.Flashes[key]
	if ok {
		delete(r.Flashes, key)
	}
	return value, ok
}
