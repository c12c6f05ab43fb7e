package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/waitline/internal/audit/domain"
	identitydomain "github.com/smallbiznis/waitline/internal/identity/domain"
	"github.com/smallbiznis/waitline/internal/session"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates against whichever namespace the host resolved
// to: admin credentials on the admin portal, member credentials on a
// tenant host. The session identifier is regenerated before any
// identity is written to it.
func (s *Server) Login(c *gin.Context) {
	resolution := resolutionFrom(c)

	entry, ok := entryTypeFor(resolution)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	record := sessionFrom(c)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	now := s.clock.Now()

	switch entry {
	case session.TypeAdmin:
		admin, err := s.identitySvc.AuthenticateAdmin(ctx, req.Email, req.Password)
		if err != nil {
			s.auditSvc.Record(ctx, auditdomain.Event{
				ActorType:  auditdomain.ActorTypeAdmin,
				Action:     auditdomain.ActionLoginFailed,
				TargetType: "platform_admin",
				Metadata:   map[string]any{"email": req.Email},
			})
			AbortWithError(c, err)
			return
		}

		fresh, err := s.sessions.Regenerate(ctx, c, record)
		if err != nil {
			s.log.Error("session regeneration failed")
			AbortWithError(c, ErrInternal)
			return
		}
		fresh.SetAdmin(admin.ID, now)
		if err := s.sessions.Save(ctx, fresh); err != nil {
			AbortWithError(c, ErrInternal)
			return
		}

		s.auditSvc.Record(ctx, auditdomain.Event{
			ActorType:  auditdomain.ActorTypeAdmin,
			ActorID:    admin.ID.String(),
			Action:     auditdomain.ActionLoginSucceeded,
			TargetType: "platform_admin",
			TargetID:   admin.ID.String(),
		})

		c.JSON(http.StatusOK, gin.H{
			"actor_type": auditdomain.ActorTypeAdmin,
			"id":         admin.ID.String(),
			"email":      admin.Email,
		})

	case session.TypeTenant:
		resolved := resolution.Tenant
		user, err := s.identitySvc.AuthenticateMember(ctx, resolved.ID, req.Email, req.Password)
		if err != nil {
			s.auditSvc.Record(ctx, auditdomain.Event{
				TenantID:   resolved.ID,
				ActorType:  auditdomain.ActorTypeMember,
				Action:     auditdomain.ActionLoginFailed,
				TargetType: "organization_user",
				Metadata:   map[string]any{"email": req.Email},
			})
			AbortWithError(c, err)
			return
		}

		fresh, err := s.sessions.Regenerate(ctx, c, record)
		if err != nil {
			s.log.Error("session regeneration failed")
			AbortWithError(c, ErrInternal)
			return
		}
		fresh.SetTenantUser(user.ID, resolved.ID, resolved.Slug, now)
		fresh.ResolvedTenantID = resolved.ID
		fresh.ResolvedTenantSlug = resolved.Slug
		if err := s.sessions.Save(ctx, fresh); err != nil {
			AbortWithError(c, ErrInternal)
			return
		}

		s.auditSvc.Record(ctx, auditdomain.Event{
			TenantID:   resolved.ID,
			ActorType:  auditdomain.ActorTypeMember,
			ActorID:    user.ID.String(),
			Action:     auditdomain.ActionLoginSucceeded,
			TargetType: "organization_user",
			TargetID:   user.ID.String(),
		})

		c.JSON(http.StatusOK, gin.H{
			"actor_type": auditdomain.ActorTypeMember,
			"id":         user.ID.String(),
			"email":      user.Email,
			"role":       user.Role,
			"tenant_id":  resolved.ID.String(),
		})
	}
}

// Logout destroys the session regardless of who holds it. Destroying a
// guest session is a no-op beyond clearing the cookie.
func (s *Server) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	record := sessionFrom(c)

	if record != nil && record.State.Kind != session.TypeNone {
		event := auditdomain.Event{
			Action:     auditdomain.ActionLogout,
			TargetType: "session",
		}
		switch record.State.Kind {
		case session.TypeAdmin:
			event.ActorType = auditdomain.ActorTypeAdmin
			event.ActorID = record.State.AdminID.String()
		case session.TypeTenant:
			event.ActorType = auditdomain.ActorTypeMember
			event.ActorID = record.State.UserID.String()
			event.TenantID = record.State.TenantID
		}
		s.auditSvc.Record(ctx, event)
	}

	s.sessions.Destroy(ctx, c, record)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me returns the actor behind the current session, whichever family it
// belongs to.
func (s *Server) Me(c *gin.Context) {
	ctx := c.Request.Context()
	record := sessionFrom(c)
	if record == nil || record.State.Kind == session.TypeNone {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var (
		actor identitydomain.Actor
		err   error
	)
	switch record.State.Kind {
	case session.TypeAdmin:
		actor, err = s.identitySvc.LoadActor(ctx, identitydomain.ActorTypeAdmin, record.State.AdminID)
	case session.TypeTenant:
		actor, err = s.identitySvc.LoadActor(ctx, identitydomain.ActorTypeMember, record.State.UserID)
	}
	if err != nil {
		s.sessions.Destroy(ctx, c, record)
		AbortWithError(c, ErrUnauthorized)
		return
	}

	switch actor.Type {
	case identitydomain.ActorTypeAdmin:
		c.JSON(http.StatusOK, gin.H{
			"actor_type": auditdomain.ActorTypeAdmin,
			"id":         actor.Admin.ID.String(),
			"email":      actor.Admin.Email,
		})
	case identitydomain.ActorTypeMember:
		c.JSON(http.StatusOK, gin.H{
			"actor_type": auditdomain.ActorTypeMember,
			"id":         actor.Member.ID.String(),
			"email":      actor.Member.Email,
			"role":       actor.Member.Role,
			"tenant_id":  actor.Member.TenantID.String(),
		})
	}
}
