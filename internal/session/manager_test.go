package session

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/hostname"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *clock.FakeClock, Store) {
	t.Helper()

	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore()
	cfg := config.Config{LocalRootDomains: []string{"lvh.me", "localhost"}}
	policy := config.NewStaticLifecyclePolicyHolder(config.DefaultLifecyclePolicy())
	manager := NewManager(zap.NewNop(), cfg, policy, store, hostname.NewClassifier(cfg.LocalRootDomains), fakeClock)
	return manager, fakeClock, store
}

func newTestGinContext(t *testing.T, host string) *gin.Context {
	t.Helper()

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "http://"+host+"/", nil)
	c.Request.Host = host
	return c
}

func TestRegenerateReplacesIdentifierAndKeepsCSRF(t *testing.T) {
	manager, _, store := newTestManager(t)
	c := newTestGinContext(t, "acme.lvh.me")
	ctx := context.Background()

	before, err := manager.Load(ctx, c)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	preLoginID := before.ID
	preLoginCSRF := before.CSRFToken
	if preLoginCSRF == "" {
		t.Fatal("expected a CSRF token on a fresh record")
	}

	node, _ := snowflake.NewNode(1)
	after, err := manager.Regenerate(ctx, c, before)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	after.SetAdmin(node.Generate(), time.Now().UTC())
	if err := manager.Save(ctx, after); err != nil {
		t.Fatalf("save: %v", err)
	}

	if after.ID == preLoginID {
		t.Fatal("session identifier must change on login")
	}
	if after.CSRFToken != preLoginCSRF {
		t.Fatal("CSRF token must survive regeneration")
	}
	if after.State.Kind != TypeAdmin {
		t.Fatalf("expected admin state, got %q", after.State.Kind)
	}

	// a captured pre-login identifier must no longer resolve
	if _, err := store.Get(ctx, preLoginID); err != ErrNotFound {
		t.Fatalf("expected pre-login record gone, got %v", err)
	}
	if _, err := store.Get(ctx, after.ID); err != nil {
		t.Fatalf("expected post-login record persisted, got %v", err)
	}
}

func TestEnforceIsolationPurgesOtherActorType(t *testing.T) {
	manager, fakeClock, _ := newTestManager(t)
	node, _ := snowflake.NewNode(1)
	now := fakeClock.Now()

	record := &Record{ID: "sess-both"}
	record.State = ActorState{
		Kind:         TypeAdmin,
		AdminID:      node.Generate(),
		UserID:       node.Generate(),
		TenantID:     node.Generate(),
		TenantSlug:   "acme",
		LastActivity: now,
	}

	if purged := manager.EnforceIsolation(record, TypeAdmin); !purged {
		t.Fatal("expected purge at admin entry point")
	}
	if record.State.HasTenant() {
		t.Fatal("tenant identity must be gone after admin-side purge")
	}
	if !record.State.HasAdmin() || record.State.Kind != TypeAdmin {
		t.Fatal("admin identity must survive admin-side purge")
	}

	record2 := &Record{ID: "sess-both-2"}
	record2.State = ActorState{
		Kind:         TypeTenant,
		AdminID:      node.Generate(),
		UserID:       node.Generate(),
		TenantID:     node.Generate(),
		LastActivity: now,
	}

	if purged := manager.EnforceIsolation(record2, TypeTenant); !purged {
		t.Fatal("expected purge at tenant entry point")
	}
	if record2.State.HasAdmin() {
		t.Fatal("admin identity must be gone after tenant-side purge")
	}
	if !record2.State.HasTenant() || record2.State.Kind != TypeTenant {
		t.Fatal("tenant identity must survive tenant-side purge")
	}

	// clean records pass untouched
	clean := &Record{ID: "sess-clean"}
	clean.SetAdmin(node.Generate(), now)
	if purged := manager.EnforceIsolation(clean, TypeAdmin); purged {
		t.Fatal("clean admin session must not be purged")
	}
}

func TestIdleTimeoutSlides(t *testing.T) {
	manager, fakeClock, _ := newTestManager(t)
	node, _ := snowflake.NewNode(1)
	timeout := 30 * time.Minute

	record := &Record{ID: "sess-idle"}
	record.SetAdmin(node.Generate(), fakeClock.Now())

	fakeClock.Advance(29 * time.Minute)
	if manager.IdleTimedOut(record, timeout) {
		t.Fatal("session must survive inside the idle window")
	}
	manager.Touch(record)

	fakeClock.Advance(29 * time.Minute)
	if manager.IdleTimedOut(record, timeout) {
		t.Fatal("touch must slide the idle window")
	}

	fakeClock.Advance(31 * time.Minute)
	if !manager.IdleTimedOut(record, timeout) {
		t.Fatal("session must time out past the idle window")
	}
}

func TestIdleTimeoutDefaultsMissingActivityToNow(t *testing.T) {
	manager, _, _ := newTestManager(t)

	record := &Record{ID: "sess-fresh"}
	if manager.IdleTimedOut(record, time.Minute) {
		t.Fatal("record without activity must be treated as fresh")
	}
	if record.State.LastActivity.IsZero() {
		t.Fatal("missing activity must be stamped with now")
	}
}
