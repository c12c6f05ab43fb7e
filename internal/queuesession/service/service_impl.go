package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/queuesession/domain"
	"github.com/smallbiznis/waitline/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recoveryTokenBytes = 24

// Service drives the anonymous queue-session state machine: active,
// expired, recoverable within grace, terminated.
type Service struct {
	log    *zap.Logger
	dbConn *gorm.DB
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	policy *config.LifecyclePolicyHolder
}

func NewService(log *zap.Logger, dbConn *gorm.DB, repo domain.Repository, genID *snowflake.Node, clk clock.Clock, policy *config.LifecyclePolicyHolder) domain.Service {
	return &Service{
		log:    log.Named("queuesession.service"),
		dbConn: dbConn,
		repo:   repo,
		genID:  genID,
		clock:  clk,
		policy: policy,
	}
}

func (s *Service) Join(ctx context.Context, req domain.JoinRequest) (*domain.JoinResult, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" || req.TenantID == 0 || req.QueueID == 0 {
		return nil, domain.ErrInvalidJoin
	}

	origin := strings.TrimSpace(req.Origin)
	if origin == "" {
		origin = domain.OriginWebchat
	}

	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.policy.Get().QueueSessionDuration)

	entry := &domain.QueueEntry{
		ID:               s.genID.Generate(),
		TenantID:         req.TenantID,
		QueueID:          req.QueueID,
		Status:           domain.EntryStatusWaiting,
		Origin:           origin,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		Metadata:         req.Metadata,
		LastActivityAt:   now,
		SessionExpiresAt: expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	session := &domain.QueueSession{
		ID:               s.genID.Generate(),
		TenantID:         req.TenantID,
		SessionID:        sessionID,
		QueueEntryID:     entry.ID,
		IsActive:         true,
		SessionExpiresAt: expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.dbConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return repo.CreateSession(ctx, session)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSessionExists
		}
		s.log.Error("queue join failed",
			zap.Int64("tenant_id", int64(req.TenantID)),
			zap.Int64("queue_id", int64(req.QueueID)),
			zap.Error(err),
		)
		return nil, err
	}

	position, err := s.repo.WaitingPosition(ctx, entry)
	if err != nil {
		s.log.Warn("waiting position lookup failed", zap.Error(err))
		position = 0
	}

	return &domain.JoinResult{Session: session, Entry: entry, Position: position}, nil
}

func (s *Service) Validate(ctx context.Context, sessionID string) (*domain.ValidationResult, error) {
	session, err := s.repo.FindSessionBySessionID(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return &domain.ValidationResult{}, nil
		}
		return nil, err
	}

	entry, err := s.repo.FindEntryByID(ctx, session.QueueEntryID)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return &domain.ValidationResult{}, nil
		}
		return nil, err
	}
	if entry.Status == domain.EntryStatusCancelled {
		return &domain.ValidationResult{}, nil
	}

	now := s.clock.Now().UTC()
	if session.IsActive && now.Before(session.SessionExpiresAt) {
		position, err := s.repo.WaitingPosition(ctx, entry)
		if err != nil {
			return nil, err
		}
		return &domain.ValidationResult{
			Recovered: true,
			Position:  position,
			ExpiresAt: session.SessionExpiresAt,
		}, nil
	}

	// Expired. A brief disconnect is recoverable while the entry's own
	// activity stamp is inside the grace window; recovery here is a
	// read-only signal, the record is reactivated by a rejoin or
	// extend, never by validate itself.
	if now.Sub(entry.LastActivityAt) <= s.policy.Get().GracePeriod {
		position, err := s.repo.WaitingPosition(ctx, entry)
		if err != nil {
			return nil, err
		}
		return &domain.ValidationResult{
			Recovered:         true,
			WithinGracePeriod: true,
			Position:          position,
			RecoveryToken:     newRecoveryToken(),
		}, nil
	}

	return &domain.ValidationResult{}, nil
}

func (s *Service) Extend(ctx context.Context, sessionID string) (time.Time, error) {
	session, err := s.repo.FindSessionBySessionID(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return time.Time{}, err
	}
	if !session.IsActive {
		return time.Time{}, domain.ErrSessionNotFound
	}

	now := s.clock.Now().UTC()
	newExpiry := now.Add(s.policy.Get().QueueSessionDuration)

	err = s.dbConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		session.SessionExpiresAt = newExpiry
		session.UpdatedAt = now
		if err := repo.UpdateSession(ctx, session); err != nil {
			return err
		}

		entry, err := repo.FindEntryByID(ctx, session.QueueEntryID)
		if err != nil {
			return err
		}
		entry.SessionExpiresAt = newExpiry
		entry.LastActivityAt = now
		entry.UpdatedAt = now
		return repo.UpdateEntry(ctx, entry)
	})
	if err != nil {
		return time.Time{}, err
	}
	return newExpiry, nil
}

func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	session, err := s.repo.FindSessionBySessionID(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	return s.dbConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if session.IsActive {
			session.IsActive = false
			session.UpdatedAt = now
			if err := repo.UpdateSession(ctx, session); err != nil {
				return err
			}
		}

		entry, err := repo.FindEntryByID(ctx, session.QueueEntryID)
		if err != nil {
			if errors.Is(err, domain.ErrEntryNotFound) {
				return nil
			}
			return err
		}
		if entry.Terminal() {
			return nil
		}
		entry.Status = domain.EntryStatusCancelled
		entry.LastActivityAt = now
		entry.UpdatedAt = now
		return repo.UpdateEntry(ctx, entry)
	})
}

func newRecoveryToken() string {
	buf := make([]byte, recoveryTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
