package services

import (
	"context"
	"log"
	"time"

	"edugate/internal/models"
	"edugate/internal/repositories"
)

type SessionService interface {
	// CreateOrRefresh — upsert по (userID, fingerprint). Если отпечаток
	// новый и лимит сессий выбран, сперва выселяется самая старая.
	CreateOrRefresh(ctx context.Context, userID int, fingerprint, token string, ttl time.Duration) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	Drop(ctx context.Context, userID int, fingerprint string) error

	Revoke(ctx context.Context, token, tokenType string, userID int, reason string, tokenExpiry time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type sessionService struct {
	sessions   repositories.SessionRepository
	revoked    repositories.RevokedTokenRepository
	maxPerUser int
	now        func() time.Time
}

func NewSessionService(sessions repositories.SessionRepository, revoked repositories.RevokedTokenRepository, maxPerUser int) SessionService {
	if maxPerUser <= 0 {
		maxPerUser = 2
	}
	return &sessionService{
		sessions:   sessions,
		revoked:    revoked,
		maxPerUser: maxPerUser,
		now:        time.Now,
	}
}

func (s *sessionService) CreateOrRefresh(ctx context.Context, userID int, fingerprint, token string, ttl time.Duration) (*models.Session, error) {
	if fingerprint == "" || token == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.sessions.GetByUserAndFingerprint(ctx, userID, fingerprint)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// новый класс устройства: проверяем лимит и выселяем старейшую
		n, err := s.sessions.CountByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if n >= s.maxPerUser {
			if err := s.sessions.DeleteOldest(ctx, userID); err != nil {
				return nil, err
			}
			log.Printf("[session][evict] oldest session dropped: user_id=%d cap=%d", userID, s.maxPerUser)
		}
	}

	sess := &models.Session{
		UserID:      userID,
		Fingerprint: fingerprint,
		Token:       token,
		ExpiresAt:   s.now().Add(ttl),
	}
	return s.sessions.Upsert(ctx, sess)
}

func (s *sessionService) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrInvalidInput
	}
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *sessionService) Drop(ctx context.Context, userID int, fingerprint string) error {
	return s.sessions.Delete(ctx, userID, fingerprint)
}

// Revoke — токен попадает в леджер максимум на свой собственный
// остаток жизни; уже истёкший токен записывать незачем.
func (s *sessionService) Revoke(ctx context.Context, token, tokenType string, userID int, reason string, tokenExpiry time.Time) error {
	if token == "" {
		return ErrInvalidInput
	}
	if !tokenExpiry.After(s.now()) {
		return nil
	}
	err := s.revoked.Insert(ctx, &models.RevokedToken{
		Token:     token,
		TokenType: tokenType,
		UserID:    userID,
		Reason:    reason,
		ExpiresAt: tokenExpiry,
	})
	if err != nil {
		return err
	}
	log.Printf("[session][revoke] token_type=%s user_id=%d reason=%s", tokenType, userID, reason)
	return nil
}

func (s *sessionService) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.revoked.Exists(ctx, token)
}
