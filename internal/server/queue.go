package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	queuedomain "github.com/smallbiznis/waitline/internal/queuesession/domain"
	"gorm.io/datatypes"
)

type joinQueueRequest struct {
	QueueID     string         `json:"queue_id" binding:"required"`
	SessionID   string         `json:"session_id" binding:"required"`
	Origin      string         `json:"origin"`
	DisplayName string         `json:"display_name"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) JoinQueue(c *gin.Context) {
	resolution := resolutionFrom(c)

	var req joinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	queueID, err := snowflake.ParseString(strings.TrimSpace(req.QueueID))
	if err != nil {
		AbortWithError(c, newValidationError("queue_id", "invalid_id", "queue id must be a valid identifier"))
		return
	}

	result, err := s.queueSvc.Join(c.Request.Context(), queuedomain.JoinRequest{
		TenantID:    resolution.Tenant.ID,
		QueueID:     queueID,
		SessionID:   req.SessionID,
		Origin:      req.Origin,
		DisplayName: req.DisplayName,
		Metadata:    datatypes.JSONMap(req.Metadata),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": result.Session.SessionID,
		"entry_id":   result.Entry.ID.String(),
		"position":   result.Position,
		"expires_at": result.Session.SessionExpiresAt.Format(time.RFC3339),
	})
}

// ValidateQueueSession is the recovery check a returning customer hits
// before re-rendering their place in line. It never mutates state.
func (s *Server) ValidateQueueSession(c *gin.Context) {
	result, err := s.queueSvc.Validate(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := gin.H{
		"recovered":           result.Recovered,
		"within_grace_period": result.WithinGracePeriod,
	}
	if result.Recovered {
		body["position"] = result.Position
		body["expires_at"] = result.ExpiresAt.Format(time.RFC3339)
	}
	if result.RecoveryToken != "" {
		body["recovery_token"] = result.RecoveryToken
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) ExtendQueueSession(c *gin.Context) {
	expiresAt, err := s.queueSvc.Extend(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

func (s *Server) CancelQueueSession(c *gin.Context) {
	if err := s.queueSvc.Cancel(c.Request.Context(), c.Param("session_id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
