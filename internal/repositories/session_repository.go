package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"edugate/internal/models"
)

type SessionRepository interface {
	// Upsert — ключ (user_id, fingerprint): повторный вход с того же
	// устройства перезаписывает токен и срок, created_at сохраняется.
	Upsert(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByUserAndFingerprint(ctx context.Context, userID int, fingerprint string) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	CountByUser(ctx context.Context, userID int) (int, error)
	// DeleteOldest — убирает самую старую по created_at живую сессию пользователя.
	DeleteOldest(ctx context.Context, userID int) error
	Delete(ctx context.Context, userID int, fingerprint string) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessionRepository struct{ DB *sql.DB }

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{DB: db}
}

const sessionColumns = `id, user_id, fingerprint, token, created_at, expires_at`

func (r *sessionRepository) Upsert(ctx context.Context, s *models.Session) (*models.Session, error) {
	const q = `
		INSERT INTO sessions (user_id, fingerprint, token, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, fingerprint) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		RETURNING ` + sessionColumns
	var out models.Session
	if err := r.DB.QueryRowContext(ctx, q, s.UserID, s.Fingerprint, s.Token, s.ExpiresAt).Scan(
		&out.ID, &out.UserID, &out.Fingerprint, &out.Token, &out.CreatedAt, &out.ExpiresAt,
	); err != nil {
		return nil, fmt.Errorf("session upsert: %w", err)
	}
	return &out, nil
}

func (r *sessionRepository) GetByUserAndFingerprint(ctx context.Context, userID int, fingerprint string) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND fingerprint = $2`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, userID, fingerprint))
}

func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE token = $1 AND expires_at > NOW()`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, token))
}

func (r *sessionRepository) scanOne(row *sql.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Fingerprint, &s.Token, &s.CreatedAt, &s.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session scan: %w", err)
	}
	return &s, nil
}

func (r *sessionRepository) CountByUser(ctx context.Context, userID int) (int, error) {
	var c int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND expires_at > NOW()`, userID,
	).Scan(&c); err != nil {
		return 0, fmt.Errorf("session count: %w", err)
	}
	return c, nil
}

func (r *sessionRepository) DeleteOldest(ctx context.Context, userID int) error {
	// только живые строки: протухшая сессия не должна принимать
	// вытеснение на себя, иначе лимит живых сессий пробивается
	const q = `
		DELETE FROM sessions
		WHERE id = (
			SELECT id FROM sessions
			WHERE user_id = $1 AND expires_at > NOW()
			ORDER BY created_at ASC
			LIMIT 1
		)
	`
	if _, err := r.DB.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("session delete oldest: %w", err)
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, userID int, fingerprint string) error {
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND fingerprint = $2`, userID, fingerprint,
	); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (r *sessionRepository) DeleteByToken(ctx context.Context, token string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("session delete by token: %w", err)
	}
	return nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("session delete expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
