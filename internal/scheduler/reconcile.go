package scheduler

import (
	"context"
	"errors"
	"time"

	obsmetrics "github.com/smallbiznis/waitline/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	stepExpireSessions  = "expire_sessions"
	stepDeleteSessions  = "delete_sessions"
	stepAnnotateEntries = "annotate_entries"
	stepNoShowEntries   = "no_show_entries"

	// expiredNoteKey marks a waiting entry whose session lapsed. Keyed
	// by the expiry stamp so re-running the sweep never duplicates the
	// note for the same expiry.
	expiredNoteKey = "session_expired_at"
)

// Counts reports how many rows each reconciliation step touched.
type Counts struct {
	SessionsExpired  int64
	SessionsDeleted  int64
	EntriesAnnotated int64
	EntriesNoShow    int64
}

// ReconcileSessions runs the four cleanup steps. Each step is its own
// bounded operation; one failing step never blocks the others.
func (s *Scheduler) ReconcileSessions(ctx context.Context) (Counts, error) {
	now := s.clock.Now().UTC()
	policy := s.policy.Get()
	recMetrics := obsmetrics.Reconciler()

	var counts Counts
	var jobErr error

	expired, err := s.repo.DeactivateExpiredSessions(ctx, now)
	if err != nil {
		jobErr = errors.Join(jobErr, err)
		s.log.Error("expire sessions step failed", zap.Error(err))
	} else {
		counts.SessionsExpired = expired
		recMetrics.AddStepChanges(stepExpireSessions, expired)
	}

	deleted, err := s.repo.DeleteInactiveSessionsBefore(ctx, now.Add(-policy.RetentionWindow))
	if err != nil {
		jobErr = errors.Join(jobErr, err)
		s.log.Error("delete sessions step failed", zap.Error(err))
	} else {
		counts.SessionsDeleted = deleted
		recMetrics.AddStepChanges(stepDeleteSessions, deleted)
	}

	annotated, err := s.annotateExpiredEntries(ctx, now)
	if err != nil {
		jobErr = errors.Join(jobErr, err)
		s.log.Error("annotate entries step failed", zap.Error(err))
	}
	counts.EntriesAnnotated = annotated
	recMetrics.AddStepChanges(stepAnnotateEntries, annotated)

	noShows, err := s.repo.MarkAbandonedWebchatNoShow(ctx, now.Add(-policy.OrphanThreshold), now)
	if err != nil {
		jobErr = errors.Join(jobErr, err)
		s.log.Error("no-show entries step failed", zap.Error(err))
	} else {
		counts.EntriesNoShow = noShows
		recMetrics.AddStepChanges(stepNoShowEntries, noShows)
	}

	s.log.Info("session reconciliation finished",
		zap.Int64("sessions_expired", counts.SessionsExpired),
		zap.Int64("sessions_deleted", counts.SessionsDeleted),
		zap.Int64("entries_annotated", counts.EntriesAnnotated),
		zap.Int64("entries_no_show", counts.EntriesNoShow),
	)
	return counts, jobErr
}

// annotateExpiredEntries flags waiting webchat entries whose session
// horizon lapsed. The entry stays waiting; the note is for operator
// visibility only.
func (s *Scheduler) annotateExpiredEntries(ctx context.Context, now time.Time) (int64, error) {
	entries, err := s.repo.ListExpiredWaitingWebchatEntries(ctx, now)
	if err != nil {
		return 0, err
	}

	var annotated int64
	var stepErr error
	for i := range entries {
		entry := &entries[i]
		stamp := entry.SessionExpiresAt.UTC().Format(time.RFC3339)
		if existing, ok := entry.Metadata[expiredNoteKey].(string); ok && existing == stamp {
			continue
		}
		if entry.Metadata == nil {
			entry.Metadata = datatypes.JSONMap{}
		}
		entry.Metadata[expiredNoteKey] = stamp
		entry.UpdatedAt = now

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).UpdateEntry(ctx, entry)
		})
		if err != nil {
			stepErr = errors.Join(stepErr, err)
			s.log.Warn("failed to annotate expired entry",
				zap.Int64("entry_id", int64(entry.ID)),
				zap.Error(err),
			)
			continue
		}
		annotated++
	}
	return annotated, stepErr
}
