package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateEntry(ctx context.Context, entry *QueueEntry) error
	CreateSession(ctx context.Context, session *QueueSession) error

	FindSessionBySessionID(ctx context.Context, sessionID string) (*QueueSession, error)
	FindEntryByID(ctx context.Context, id snowflake.ID) (*QueueEntry, error)

	// UpdateSession and UpdateEntry persist rows exactly as given;
	// timestamp stamping is the caller's concern.
	UpdateSession(ctx context.Context, session *QueueSession) error
	UpdateEntry(ctx context.Context, entry *QueueEntry) error

	// WaitingPosition counts how many waiting entries in the same queue
	// are ahead of the given entry, inclusive of the entry itself.
	WaitingPosition(ctx context.Context, entry *QueueEntry) (int, error)

	// Reconciliation sweeps. Each is a single bounded statement (or a
	// short per-row loop) so the hourly job never holds a long
	// transaction over live tables.
	DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	DeleteInactiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListExpiredWaitingWebchatEntries(ctx context.Context, now time.Time) ([]QueueEntry, error)
	MarkAbandonedWebchatNoShow(ctx context.Context, idleCutoff, now time.Time) (int64, error)
}
