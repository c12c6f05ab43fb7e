package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/waitline/internal/audit/domain"
	auditrepo "github.com/smallbiznis/waitline/internal/audit/repository"
	auditservice "github.com/smallbiznis/waitline/internal/audit/service"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/hostname"
	identitydomain "github.com/smallbiznis/waitline/internal/identity/domain"
	identityrepo "github.com/smallbiznis/waitline/internal/identity/repository"
	identityservice "github.com/smallbiznis/waitline/internal/identity/service"
	"github.com/smallbiznis/waitline/internal/member"
	queuedomain "github.com/smallbiznis/waitline/internal/queuesession/domain"
	queuerepo "github.com/smallbiznis/waitline/internal/queuesession/repository"
	queueservice "github.com/smallbiznis/waitline/internal/queuesession/service"
	"github.com/smallbiznis/waitline/internal/session"
	tenantdomain "github.com/smallbiznis/waitline/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/waitline/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/waitline/internal/tenant/service"
	"github.com/smallbiznis/waitline/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	srv         *Server
	engine      *gin.Engine
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	tenantRepo  tenantdomain.Repository
	identitySvc identitydomain.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = dbConn.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.Subscription{},
		&identitydomain.PlatformAdmin{},
		&identitydomain.OrganizationUser{},
		&queuedomain.QueueEntry{},
		&queuedomain.QueueSession{},
		&auditdomain.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	cfg := config.Config{
		AdminLabel:       "admin",
		APILabel:         "api",
		LocalRootDomains: []string{"lvh.me", "localhost"},
	}
	policy := config.NewStaticLifecyclePolicyHolder(config.DefaultLifecyclePolicy())
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	classifier := hostname.NewClassifier(cfg.LocalRootDomains)
	log := zap.NewNop()

	tenantRepository := tenantrepo.NewRepository(dbConn)
	resolver := tenantservice.NewResolver(log, cfg, classifier, tenantRepository)
	tenantSvc := tenantservice.NewService(log, cfg, dbConn, tenantRepository, node, fakeClock)

	identitySvc := identityservice.New(log, identityrepo.NewRepository(dbConn), node, fakeClock)

	sessions := session.NewManager(log, cfg, policy, session.NewMemoryStore(), classifier, fakeClock)

	queueSvc := queueservice.NewService(log, dbConn, queuerepo.NewRepository(dbConn), node, fakeClock, policy)

	auditSvc := auditservice.NewService(auditservice.Params{
		Log:   log,
		GenID: node,
		Repo:  auditrepo.NewRepository(dbConn),
		Clock: fakeClock,
	})

	engine := NewEngine(log)
	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		Log:         log,
		DB:          dbConn,
		GenID:       node,
		Clock:       fakeClock,
		Resolver:    resolver,
		TenantSvc:   tenantSvc,
		IdentitySvc: identitySvc,
		Sessions:    sessions,
		Validator:   member.NewValidator(log),
		QueueSvc:    queueSvc,
		AuditSvc:    auditSvc,
	})

	return &testServer{
		srv:         srv,
		engine:      engine,
		db:          dbConn,
		node:        node,
		clock:       fakeClock,
		tenantRepo:  tenantRepository,
		identitySvc: identitySvc,
	}
}

func (ts *testServer) seedTenant(t *testing.T, slug string) *tenantdomain.Tenant {
	t.Helper()
	now := time.Now().UTC()
	seeded := &tenantdomain.Tenant{
		ID:        ts.node.Generate(),
		Name:      slug,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	seeded.Subscription = &tenantdomain.Subscription{
		ID:        ts.node.Generate(),
		TenantID:  seeded.ID,
		Status:    tenantdomain.SubscriptionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ts.tenantRepo.Create(context.Background(), seeded); err != nil {
		t.Fatalf("failed to seed tenant %s: %v", slug, err)
	}
	return seeded
}

func (ts *testServer) seedMember(t *testing.T, tenantID snowflake.ID, email, password string) *identitydomain.OrganizationUser {
	t.Helper()
	user, err := ts.identitySvc.CreateMember(context.Background(), identitydomain.CreateMemberRequest{
		TenantID: tenantID,
		Email:    email,
		Password: password,
		Role:     "staff",
	})
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
	return user
}

func (ts *testServer) seedAdmin(t *testing.T, email, password string) *identitydomain.PlatformAdmin {
	t.Helper()
	admin, err := ts.identitySvc.CreateAdmin(context.Background(), identitydomain.CreateAdminRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	return admin
}

func jsonRequest(t *testing.T, method, host, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

// sessionCookie returns the last session cookie written: a login
// response carries two when the request arrived without one (the guest
// record's cookie, then the regenerated one).
func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			found = c
		}
	}
	if found == nil {
		t.Fatalf("no session cookie in response")
	}
	return found
}

func (ts *testServer) login(t *testing.T, host, email, password string) *http.Cookie {
	t.Helper()
	w := ts.do(jsonRequest(t, http.MethodPost, host, "/auth/login", gin.H{
		"email":    email,
		"password": password,
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("login on %s: expected 200, got %d: %s", host, w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func TestMemberLoginAndDashboard(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.seedTenant(t, "acme")
	ts.seedMember(t, acme.ID, "staff@acme.test", "super-secret-pw")

	cookie := ts.login(t, "acme.lvh.me", "staff@acme.test", "super-secret-pw")

	req := jsonRequest(t, http.MethodGet, "acme.lvh.me", "/dashboard", nil)
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "staff@acme.test") {
		t.Fatalf("dashboard payload missing member email: %s", w.Body.String())
	}

	var succeeded int64
	ts.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", auditdomain.ActionLoginSucceeded).
		Count(&succeeded)
	if succeeded != 1 {
		t.Fatalf("expected one login audit entry, got %d", succeeded)
	}
}

func TestDashboardWithoutSession(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, "acme")

	// data callers get a structured denial
	w := ts.do(jsonRequest(t, http.MethodGet, "acme.lvh.me", "/dashboard", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// browsers get a login redirect carrying the original path
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "acme.lvh.me"
	w = ts.do(req)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	location := w.Header().Get("Location")
	if !strings.Contains(location, "/login") || !strings.Contains(location, "return_to=%2Fdashboard") {
		t.Fatalf("unexpected redirect target %q", location)
	}
}

func TestLoginRegeneratesSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.seedTenant(t, "acme")
	ts.seedMember(t, acme.ID, "staff@acme.test", "super-secret-pw")

	// first touch mints a guest session
	guest := ts.do(jsonRequest(t, http.MethodGet, "acme.lvh.me", "/queue/session/unknown", nil))
	guestCookie := sessionCookie(t, guest)

	req := jsonRequest(t, http.MethodPost, "acme.lvh.me", "/auth/login", gin.H{
		"email":    "staff@acme.test",
		"password": "super-secret-pw",
	})
	req.AddCookie(guestCookie)
	w := ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	loggedIn := sessionCookie(t, w)
	if loggedIn.Value == guestCookie.Value {
		t.Fatalf("session identifier survived login")
	}
}

func TestRepeatLoginBounced(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.seedTenant(t, "acme")
	ts.seedMember(t, acme.ID, "staff@acme.test", "super-secret-pw")

	cookie := ts.login(t, "acme.lvh.me", "staff@acme.test", "super-secret-pw")

	// a signed-in data caller re-posting credentials gets a conflict
	req := jsonRequest(t, http.MethodPost, "acme.lvh.me", "/auth/login", gin.H{
		"email":    "staff@acme.test",
		"password": "super-secret-pw",
	})
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusConflict {
		t.Fatalf("repeat login: expected 409, got %d: %s", w.Code, w.Body.String())
	}

	// a browser goes back home instead
	browser := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"staff@acme.test","password":"super-secret-pw"}`))
	browser.Host = "acme.lvh.me"
	browser.Header.Set("Content-Type", "application/json")
	browser.AddCookie(cookie)
	w = ts.do(browser)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Fatalf("repeat login: expected redirect home, got %d %q", w.Code, w.Header().Get("Location"))
	}

	// only the first login was recorded
	var succeeded int64
	ts.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", auditdomain.ActionLoginSucceeded).
		Count(&succeeded)
	if succeeded != 1 {
		t.Fatalf("expected one login audit entry, got %d", succeeded)
	}
}

func TestWrongPasswordRejectedAndAudited(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.seedTenant(t, "acme")
	ts.seedMember(t, acme.ID, "staff@acme.test", "super-secret-pw")

	w := ts.do(jsonRequest(t, http.MethodPost, "acme.lvh.me", "/auth/login", gin.H{
		"email":    "staff@acme.test",
		"password": "wrong",
	}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}

	var failed int64
	ts.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", auditdomain.ActionLoginFailed).
		Count(&failed)
	if failed != 1 {
		t.Fatalf("expected one failed-login audit entry, got %d", failed)
	}
}

func TestAdminRoutesHiddenOnTenantHost(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, "acme")
	ts.seedAdmin(t, "root@waitline.test", "super-secret-pw")

	cookie := ts.login(t, "admin.lvh.me", "root@waitline.test", "super-secret-pw")

	req := jsonRequest(t, http.MethodPost, "acme.lvh.me", "/admin/tenants", gin.H{"name": "Evil"})
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("admin route on tenant host: expected 404, got %d", w.Code)
	}
}

func TestAdminSessionPurgedOnTenantHost(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, "acme")
	ts.seedAdmin(t, "root@waitline.test", "super-secret-pw")

	cookie := ts.login(t, "admin.lvh.me", "root@waitline.test", "super-secret-pw")

	req := jsonRequest(t, http.MethodGet, "acme.lvh.me", "/dashboard", nil)
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after isolation purge, got %d: %s", w.Code, w.Body.String())
	}

	var violations int64
	ts.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", auditdomain.ActionIsolationViolation).
		Count(&violations)
	if violations != 1 {
		t.Fatalf("expected one isolation audit entry, got %d", violations)
	}
}

func TestMemberSessionRejectedOnForeignTenantHost(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.seedTenant(t, "acme")
	ts.seedTenant(t, "umbrella")
	ts.seedMember(t, acme.ID, "staff@acme.test", "super-secret-pw")

	cookie := ts.login(t, "acme.lvh.me", "staff@acme.test", "super-secret-pw")

	req := jsonRequest(t, http.MethodGet, "umbrella.lvh.me", "/dashboard", nil)
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on foreign tenant host, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "session_error") {
		t.Fatalf("expected session_error payload, got %s", w.Body.String())
	}

	// the session was destroyed, not just denied
	retry := jsonRequest(t, http.MethodGet, "acme.lvh.me", "/dashboard", nil)
	retry.AddCookie(cookie)
	w = ts.do(retry)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected destroyed session to stay out, got %d", w.Code)
	}
}

func TestTenantAuditLogsScopedToResolvedHost(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.seedTenant(t, "acme")
	umbrella := ts.seedTenant(t, "umbrella")
	ts.seedMember(t, acme.ID, "staff@acme.test", "super-secret-pw")

	cookie := ts.login(t, "acme.lvh.me", "staff@acme.test", "super-secret-pw")

	foreign := &auditdomain.AuditLog{
		ID:         ts.node.Generate(),
		TenantID:   umbrella.ID,
		ActorType:  auditdomain.ActorTypeMember,
		Action:     "umbrella.only.action",
		TargetType: "session",
		CreatedAt:  time.Now().UTC(),
	}
	if err := ts.db.Create(foreign).Error; err != nil {
		t.Fatalf("seed foreign audit log: %v", err)
	}

	// a smuggled tenant_id cannot widen the listing past the host's tenant
	req := jsonRequest(t, http.MethodGet, "acme.lvh.me",
		"/dashboard/audit-logs?tenant_id="+umbrella.ID.String(), nil)
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("audit logs: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "umbrella.only.action") {
		t.Fatalf("foreign tenant log leaked: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), auditdomain.ActionLoginSucceeded) {
		t.Fatalf("expected own login entry in listing, got %s", w.Body.String())
	}
}

func TestIdleTimeoutRedirectsWithReason(t *testing.T) {
	ts := newTestServer(t)
	acme := ts.seedTenant(t, "acme")
	ts.seedMember(t, acme.ID, "staff@acme.test", "super-secret-pw")

	cookie := ts.login(t, "acme.lvh.me", "staff@acme.test", "super-secret-pw")

	ts.clock.Advance(31 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "acme.lvh.me"
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	location := w.Header().Get("Location")
	if !strings.Contains(location, "reason=session_timeout") {
		t.Fatalf("expected session_timeout reason, got %q", location)
	}
}

func TestAdminCreatesAndDeactivatesTenant(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAdmin(t, "root@waitline.test", "super-secret-pw")
	cookie := ts.login(t, "admin.lvh.me", "root@waitline.test", "super-secret-pw")

	req := jsonRequest(t, http.MethodPost, "admin.lvh.me", "/admin/tenants", gin.H{
		"name": "Globex Corporation",
		"slug": "globex",
	})
	req.AddCookie(cookie)
	w := ts.do(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create tenant: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created tenantdomain.Tenant
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created tenant: %v", err)
	}

	req = jsonRequest(t, http.MethodDelete, "admin.lvh.me", "/admin/tenants/"+created.ID.String(), nil)
	req.AddCookie(cookie)
	w = ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate tenant: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(jsonRequest(t, http.MethodGet, "globex.lvh.me", "/dashboard", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("deactivated tenant must not resolve, got %d", w.Code)
	}
}

func TestQueueLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, "acme")
	queueID := ts.node.Generate()

	w := ts.do(jsonRequest(t, http.MethodPost, "acme.lvh.me", "/queue/join", gin.H{
		"queue_id":     queueID.String(),
		"session_id":   "visitor-abc",
		"display_name": "Ada",
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("join: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"position":1`) {
		t.Fatalf("expected position 1, got %s", w.Body.String())
	}

	w = ts.do(jsonRequest(t, http.MethodGet, "acme.lvh.me", "/queue/session/visitor-abc", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"recovered":true`) {
		t.Fatalf("validate: expected recovered session, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(jsonRequest(t, http.MethodPost, "acme.lvh.me", "/queue/session/visitor-abc/extend", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("extend: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(jsonRequest(t, http.MethodPost, "acme.lvh.me", "/queue/session/visitor-abc/cancel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(jsonRequest(t, http.MethodGet, "acme.lvh.me", "/queue/session/visitor-abc", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"recovered":false`) {
		t.Fatalf("validate after cancel: expected unrecoverable, got %d: %s", w.Code, w.Body.String())
	}

	// duplicate join with the same opaque id conflicts
	w = ts.do(jsonRequest(t, http.MethodPost, "acme.lvh.me", "/queue/join", gin.H{
		"queue_id":   queueID.String(),
		"session_id": "visitor-abc",
	}))
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate join: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestQueueRoutesNeedATenantHost(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, "acme")

	w := ts.do(jsonRequest(t, http.MethodPost, "waitline.app", "/queue/join", gin.H{
		"queue_id":   ts.node.Generate().String(),
		"session_id": "visitor-abc",
	}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("apex join: expected 404, got %d", w.Code)
	}
}
