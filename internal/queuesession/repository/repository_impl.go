package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/queuesession/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateEntry(ctx context.Context, entry *domain.QueueEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateSession(ctx context.Context, session *domain.QueueSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindSessionBySessionID(ctx context.Context, sessionID string) (*domain.QueueSession, error) {
	var session domain.QueueSession
	err := r.db.WithContext(ctx).
		First(&session, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindEntryByID(ctx context.Context, id snowflake.ID) (*domain.QueueEntry, error) {
	var entry domain.QueueEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) UpdateSession(ctx context.Context, session *domain.QueueSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repository) UpdateEntry(ctx context.Context, entry *domain.QueueEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *repository) WaitingPosition(ctx context.Context, entry *domain.QueueEntry) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("queue_id = ? AND status = ?", entry.QueueID, domain.EntryStatusWaiting).
		Where("(created_at < ?) OR (created_at = ? AND id <= ?)", entry.CreatedAt, entry.CreatedAt, entry.ID).
		Count(&count).Error
	return int(count), err
}

func (r *repository) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.QueueSession{}).
		Where("is_active = ? AND session_expires_at < ?", true, now).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteInactiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_active = ? AND updated_at < ?", false, cutoff).
		Delete(&domain.QueueSession{})
	return result.RowsAffected, result.Error
}

func (r *repository) ListExpiredWaitingWebchatEntries(ctx context.Context, now time.Time) ([]domain.QueueEntry, error) {
	var entries []domain.QueueEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND origin = ? AND session_expires_at < ?",
			domain.EntryStatusWaiting, domain.OriginWebchat, now).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) MarkAbandonedWebchatNoShow(ctx context.Context, idleCutoff, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.QueueEntry{}).
		Where("status = ? AND origin = ? AND last_activity_at < ?",
			domain.EntryStatusWaiting, domain.OriginWebchat, idleCutoff).
		Updates(map[string]any{
			"status":       domain.EntryStatusNoShow,
			"completed_at": now,
			"updated_at":   now,
		})
	return result.RowsAffected, result.Error
}
