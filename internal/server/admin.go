package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/waitline/internal/identity/domain"
	tenantdomain "github.com/smallbiznis/waitline/internal/tenant/domain"
)

type createTenantRequest struct {
	Name         string `json:"name" binding:"required"`
	Slug         string `json:"slug"`
	CustomDomain string `json:"custom_domain"`
}

func (s *Server) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.tenantSvc.Create(c.Request.Context(), tenantdomain.CreateTenantRequest{
		Name:         req.Name,
		Slug:         req.Slug,
		CustomDomain: req.CustomDomain,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) DeactivateTenant(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "tenant id must be a valid identifier"))
		return
	}
	if err := s.tenantSvc.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

type createAdminRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) CreateAdmin(c *gin.Context) {
	var req createAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	admin, err := s.identitySvc.CreateAdmin(c.Request.Context(), identitydomain.CreateAdminRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, admin)
}

type createMemberRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

func (s *Server) CreateMember(c *gin.Context) {
	tenantID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "tenant id must be a valid identifier"))
		return
	}

	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.identitySvc.CreateMember(c.Request.Context(), identitydomain.CreateMemberRequest{
		TenantID: tenantID,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var tenantID snowflake.ID
	if raw := c.Query("tenant_id"); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("tenant_id", "invalid_id", "tenant id must be a valid identifier"))
			return
		}
		tenantID = parsed
	}

	logs, err := s.auditSvc.ListRecent(c.Request.Context(), tenantID, limitQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}

// Dashboard is the landing payload for an authenticated member.
func (s *Server) Dashboard(c *gin.Context) {
	resolution := resolutionFrom(c)
	actor, ok := actorFrom(c)
	if !ok || actor.Member == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant": gin.H{
			"id":   resolution.Tenant.ID.String(),
			"name": resolution.Tenant.Name,
			"slug": resolution.Tenant.Slug,
		},
		"member": gin.H{
			"id":    actor.Member.ID.String(),
			"email": actor.Member.Email,
			"role":  actor.Member.Role,
		},
	})
}

// ListTenantAuditLogs is tenant-scoped by the resolved host, never by a
// caller-supplied tenant id.
func (s *Server) ListTenantAuditLogs(c *gin.Context) {
	resolution := resolutionFrom(c)

	logs, err := s.auditSvc.ListRecent(c.Request.Context(), resolution.Tenant.ID, limitQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}

func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		return 50
	}
	return limit
}
