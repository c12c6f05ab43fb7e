package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/waitline/internal/audit"
	auditdomain "github.com/smallbiznis/waitline/internal/audit/domain"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/hostname"
	"github.com/smallbiznis/waitline/internal/identity"
	identitydomain "github.com/smallbiznis/waitline/internal/identity/domain"
	"github.com/smallbiznis/waitline/internal/member"
	"github.com/smallbiznis/waitline/internal/queuesession"
	queuedomain "github.com/smallbiznis/waitline/internal/queuesession/domain"
	"github.com/smallbiznis/waitline/internal/session"
	"github.com/smallbiznis/waitline/internal/tenant"
	tenantdomain "github.com/smallbiznis/waitline/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	hostname.Module,
	fx.Provide(registerGin),
	tenant.Module,
	identity.Module,
	session.Module,
	member.Module,
	audit.Module,
	queuesession.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(RequestMeta())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

// RequestLogger emits one structured access line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	access := log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		access.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("host", c.Request.Host),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	db          *gorm.DB
	genID       *snowflake.Node
	clock       clock.Clock
	resolver    tenantdomain.Resolver
	tenantSvc   tenantdomain.Service
	identitySvc identitydomain.Service
	sessions    *session.Manager
	validator   *member.Validator
	queueSvc    queuedomain.Service
	auditSvc    auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	GenID       *snowflake.Node
	Clock       clock.Clock
	Resolver    tenantdomain.Resolver
	TenantSvc   tenantdomain.Service
	IdentitySvc identitydomain.Service
	Sessions    *session.Manager
	Validator   *member.Validator
	QueueSvc    queuedomain.Service
	AuditSvc    auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		db:          p.DB,
		genID:       p.GenID,
		clock:       p.Clock,
		resolver:    p.Resolver,
		tenantSvc:   p.TenantSvc,
		identitySvc: p.IdentitySvc,
		sessions:    p.Sessions,
		validator:   p.Validator,
		queueSvc:    p.QueueSvc,
		auditSvc:    p.AuditSvc,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	root := s.engine.Group("/", s.ResolveTenant())

	auth := root.Group("/auth")
	auth.POST("/login", s.RequireGuest(), s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.Me)

	// Reachable only through the reserved admin namespace; every other
	// host sees a 404 here.
	admin := root.Group("/admin", s.RequireAdminPortal(), s.Authenticated(session.TypeAdmin))
	admin.POST("/tenants", s.CreateTenant)
	admin.DELETE("/tenants/:id", s.DeactivateTenant)
	admin.POST("/tenants/:id/members", s.CreateMember)
	admin.POST("/admins", s.CreateAdmin)
	admin.GET("/audit-logs", s.ListAuditLogs)

	dashboard := root.Group("/dashboard", s.RequireTenantHost(), s.Authenticated(session.TypeTenant))
	dashboard.GET("", s.Dashboard)
	dashboard.GET("/audit-logs", s.ListTenantAuditLogs)

	// Anonymous customer surface. No durable identity, only the opaque
	// queue session id.
	queue := root.Group("/queue", s.RequireTenantHost())
	queue.POST("/join", s.JoinQueue)
	queue.GET("/session/:session_id", s.ValidateQueueSession)
	queue.POST("/session/:session_id/extend", s.ExtendQueueSession)
	queue.POST("/session/:session_id/cancel", s.CancelQueueSession)
}
