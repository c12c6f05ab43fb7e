package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/queuesession/domain"
	"github.com/smallbiznis/waitline/internal/queuesession/repository"
	"github.com/smallbiznis/waitline/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	repo  domain.Repository
	conn  *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.QueueSession{}, &domain.QueueEntry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewRepository(conn)
	policy := config.NewStaticLifecyclePolicyHolder(config.DefaultLifecyclePolicy())

	return &fixture{
		svc:   NewService(zap.NewNop(), conn, repo, node, fakeClock, policy),
		repo:  repo,
		conn:  conn,
		clock: fakeClock,
		node:  node,
	}
}

func (f *fixture) join(t *testing.T, sessionID string) *domain.JoinResult {
	t.Helper()
	result, err := f.svc.Join(context.Background(), domain.JoinRequest{
		TenantID:  f.node.Generate(),
		QueueID:   f.node.Generate(),
		SessionID: sessionID,
	})
	require.NoError(t, err)
	return result
}

func TestJoinValidateRoundTrip(t *testing.T) {
	f := newFixture(t)
	joined := f.join(t, "client-abc")

	require.True(t, joined.Session.IsActive)
	require.Equal(t, domain.EntryStatusWaiting, joined.Entry.Status)
	require.Equal(t, domain.OriginWebchat, joined.Entry.Origin)
	require.Equal(t, 1, joined.Position)

	result, err := f.svc.Validate(context.Background(), "client-abc")
	require.NoError(t, err)
	require.True(t, result.Recovered)
	require.False(t, result.WithinGracePeriod)
	require.Equal(t, 1, result.Position)
	require.Equal(t, joined.Session.SessionExpiresAt, result.ExpiresAt)
}

func TestJoinDuplicateSessionID(t *testing.T) {
	f := newFixture(t)
	f.join(t, "client-dup")

	_, err := f.svc.Join(context.Background(), domain.JoinRequest{
		TenantID:  f.node.Generate(),
		QueueID:   f.node.Generate(),
		SessionID: "client-dup",
	})
	require.ErrorIs(t, err, domain.ErrSessionExists)
}

func TestValidateUnknownSession(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Validate(context.Background(), "never-joined")
	require.NoError(t, err)
	require.False(t, result.Recovered)
	require.False(t, result.WithinGracePeriod)
}

func TestValidateCancelledEntryNotRecoverable(t *testing.T) {
	f := newFixture(t)
	f.join(t, "client-cancelled")
	require.NoError(t, f.svc.Cancel(context.Background(), "client-cancelled"))

	result, err := f.svc.Validate(context.Background(), "client-cancelled")
	require.NoError(t, err)
	require.False(t, result.Recovered)
}

func TestValidateGracePeriodBoundary(t *testing.T) {
	grace := config.DefaultLifecyclePolicy().GracePeriod
	ctx := context.Background()

	t.Run("inside grace window", func(t *testing.T) {
		f := newFixture(t)
		joined := f.join(t, "client-grace-in")

		f.clock.Advance(5 * time.Hour) // well past the 4h horizon
		now := f.clock.Now().UTC()

		entry, err := f.repo.FindEntryByID(ctx, joined.Entry.ID)
		require.NoError(t, err)
		entry.LastActivityAt = now.Add(-grace + time.Second)
		require.NoError(t, f.repo.UpdateEntry(ctx, entry))

		result, err := f.svc.Validate(ctx, "client-grace-in")
		require.NoError(t, err)
		require.True(t, result.Recovered)
		require.True(t, result.WithinGracePeriod)
		require.NotEmpty(t, result.RecoveryToken)
		require.Equal(t, 1, result.Position)
	})

	t.Run("outside grace window", func(t *testing.T) {
		f := newFixture(t)
		joined := f.join(t, "client-grace-out")

		f.clock.Advance(5 * time.Hour)
		now := f.clock.Now().UTC()

		entry, err := f.repo.FindEntryByID(ctx, joined.Entry.ID)
		require.NoError(t, err)
		entry.LastActivityAt = now.Add(-grace - time.Second)
		require.NoError(t, f.repo.UpdateEntry(ctx, entry))

		result, err := f.svc.Validate(ctx, "client-grace-out")
		require.NoError(t, err)
		require.False(t, result.Recovered)
		require.False(t, result.WithinGracePeriod)
	})
}

func TestExtendPushesExpiry(t *testing.T) {
	f := newFixture(t)
	joined := f.join(t, "client-extend")
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	newExpiry, err := f.svc.Extend(ctx, "client-extend")
	require.NoError(t, err)

	duration := config.DefaultLifecyclePolicy().QueueSessionDuration
	require.Equal(t, f.clock.Now().UTC().Add(duration), newExpiry)
	require.True(t, newExpiry.After(joined.Session.SessionExpiresAt))

	entry, err := f.repo.FindEntryByID(ctx, joined.Entry.ID)
	require.NoError(t, err)
	require.Equal(t, f.clock.Now().UTC(), entry.LastActivityAt.UTC())
	require.Equal(t, newExpiry, entry.SessionExpiresAt.UTC())
}

func TestExtendInactiveSessionRejected(t *testing.T) {
	f := newFixture(t)
	joined := f.join(t, "client-stale")
	ctx := context.Background()

	session, err := f.repo.FindSessionBySessionID(ctx, "client-stale")
	require.NoError(t, err)
	session.IsActive = false
	require.NoError(t, f.repo.UpdateSession(ctx, session))

	_, err = f.svc.Extend(ctx, "client-stale")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	// inactivity must not be silently undone
	session, err = f.repo.FindSessionBySessionID(ctx, "client-stale")
	require.NoError(t, err)
	require.False(t, session.IsActive)
	require.Equal(t, joined.Session.SessionExpiresAt, session.SessionExpiresAt.UTC())
}

func TestCancelIdempotent(t *testing.T) {
	f := newFixture(t)
	joined := f.join(t, "client-cancel")
	ctx := context.Background()

	require.NoError(t, f.svc.Cancel(ctx, "client-cancel"))

	session, err := f.repo.FindSessionBySessionID(ctx, "client-cancel")
	require.NoError(t, err)
	require.False(t, session.IsActive)

	entry, err := f.repo.FindEntryByID(ctx, joined.Entry.ID)
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusCancelled, entry.Status)
	firstStamp := entry.LastActivityAt

	// second cancel is a no-op success, not an error
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.Cancel(ctx, "client-cancel"))

	entry, err = f.repo.FindEntryByID(ctx, joined.Entry.ID)
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusCancelled, entry.Status)
	require.Equal(t, firstStamp.UTC(), entry.LastActivityAt.UTC())
}

func TestPositionCountsWaitingAhead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tenantID := f.node.Generate()
	queueID := f.node.Generate()
	join := func(sessionID string) *domain.JoinResult {
		result, err := f.svc.Join(ctx, domain.JoinRequest{
			TenantID:  tenantID,
			QueueID:   queueID,
			SessionID: sessionID,
		})
		require.NoError(t, err)
		return result
	}

	join("first")
	join("second")
	third := join("third")
	require.Equal(t, 3, third.Position)

	// cancelling an earlier entry moves everyone behind it up
	require.NoError(t, f.svc.Cancel(ctx, "first"))
	result, err := f.svc.Validate(ctx, "third")
	require.NoError(t, err)
	require.Equal(t, 2, result.Position)
}
