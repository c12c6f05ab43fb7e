package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/hostname"
	"go.uber.org/zap"
)

const (
	DefaultCookieName = "_sid"

	// recordTTL bounds how long an untouched record survives in the
	// store; idle timeouts are enforced separately per actor type.
	recordTTL = 24 * time.Hour

	sessionTokenBytes = 32
)

// Manager owns the session cookie and the record lifecycle around it:
// loading, regeneration on privilege change, idle timeout and the
// actor-type isolation purge.
type Manager struct {
	log        *zap.Logger
	store      Store
	classifier *hostname.Classifier
	clock      clock.Clock
	policy     *config.LifecyclePolicyHolder
	cookieName string
	secure     bool
}

func NewManager(log *zap.Logger, cfg config.Config, policy *config.LifecyclePolicyHolder, store Store, classifier *hostname.Classifier, clk clock.Clock) *Manager {
	return &Manager{
		log:        log.Named("session.manager"),
		store:      store,
		classifier: classifier,
		clock:      clk,
		policy:     policy,
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	if strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// SetCookie writes the session cookie scoped to the request host's
// cookie domain so sibling subdomains share one session store key.
func (m *Manager) SetCookie(c *gin.Context, value string) {
	domain, hostOnly := m.classifier.CookieScopeFor(c.Request.Host)
	if hostOnly {
		domain = ""
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, int(recordTTL.Seconds()), "/", domain, m.secure, true)
}

func (m *Manager) ClearCookie(c *gin.Context) {
	domain, hostOnly := m.classifier.CookieScopeFor(c.Request.Host)
	if hostOnly {
		domain = ""
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", domain, m.secure, true)
}

// Load returns the record behind the request cookie, creating a fresh
// empty one (and setting its cookie) when none exists.
func (m *Manager) Load(ctx context.Context, c *gin.Context) (*Record, error) {
	if token, ok := m.ReadToken(c); ok {
		record, err := m.store.Get(ctx, token)
		if err == nil {
			m.ensureCSRF(record)
			return record, nil
		}
		if err != ErrNotFound {
			return nil, err
		}
	}

	record := m.newRecord()
	if err := m.Save(ctx, record); err != nil {
		return nil, err
	}
	m.SetCookie(c, record.ID)
	return record, nil
}

func (m *Manager) Save(ctx context.Context, record *Record) error {
	return m.store.Save(ctx, record, recordTTL)
}

// Destroy removes the record and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, c *gin.Context, record *Record) {
	if record != nil && record.ID != "" {
		if err := m.store.Delete(ctx, record.ID); err != nil {
			m.log.Warn("failed to delete session record", zap.Error(err))
		}
	}
	m.ClearCookie(c)
}

// Regenerate replaces the session identifier after a privilege change,
// carrying over only the CSRF token and its expiry. The new record is
// persisted before the old one is dropped so the caller can write the
// cookie and respond without a window where neither id resolves.
func (m *Manager) Regenerate(ctx context.Context, c *gin.Context, old *Record) (*Record, error) {
	fresh := m.newRecord()
	if old != nil {
		fresh.CSRFToken = old.CSRFToken
		fresh.CSRFExpiresAt = old.CSRFExpiresAt
	}
	m.ensureCSRF(fresh)

	if err := m.Save(ctx, fresh); err != nil {
		return nil, err
	}
	if old != nil && old.ID != "" {
		if err := m.store.Delete(ctx, old.ID); err != nil {
			m.log.Warn("failed to drop pre-login session", zap.Error(err))
		}
	}
	m.SetCookie(c, fresh.ID)
	return fresh, nil
}

// EnforceIsolation purges whichever actor type does not belong at the
// given entry point. Returns true when a purge happened, so callers
// can record the violation.
func (m *Manager) EnforceIsolation(record *Record, entry Type) bool {
	now := m.clock.Now()
	purged := false

	switch entry {
	case TypeAdmin:
		if record.State.HasTenant() {
			record.PurgeTenant(now)
			purged = true
		}
	case TypeTenant:
		if record.State.HasAdmin() {
			record.PurgeAdmin(now)
			purged = true
		}
	}

	if purged {
		m.log.Warn("session held both actor types, purged",
			zap.String("entry", string(entry)),
			zap.String("session_id", record.ID),
		)
	}
	return purged
}

// IdleTimedOut checks the sliding idle window. A record that never saw
// activity is stamped with now and treated as fresh.
func (m *Manager) IdleTimedOut(record *Record, timeout time.Duration) bool {
	now := m.clock.Now()
	if record.State.LastActivity.IsZero() {
		record.State.LastActivity = now
		return false
	}
	return now.Sub(record.State.LastActivity) > timeout
}

// Touch refreshes the sliding-expiration stamp.
func (m *Manager) Touch(record *Record) {
	record.State.LastActivity = m.clock.Now()
}

// Policy returns the current lifecycle policy snapshot.
func (m *Manager) Policy() config.LifecyclePolicy {
	return m.policy.Get()
}

func (m *Manager) newRecord() *Record {
	return &Record{ID: newToken()}
}

func (m *Manager) ensureCSRF(record *Record) {
	now := m.clock.Now()
	if record.CSRFToken == "" || now.After(record.CSRFExpiresAt) {
		record.CSRFToken = newToken()
		record.CSRFExpiresAt = now.Add(m.policy.Get().CSRFTokenTTL)
	}
}

func newToken() string {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
