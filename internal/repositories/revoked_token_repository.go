package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"edugate/internal/models"
)

type RevokedTokenRepository interface {
	Insert(ctx context.Context, t *models.RevokedToken) error
	// Exists — O(1) по индексу на token; протухшие записи за отозванные
	// не считаем, их собственный exp уже всё запрещает.
	Exists(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type revokedTokenRepository struct{ DB *sql.DB }

func NewRevokedTokenRepository(db *sql.DB) RevokedTokenRepository {
	return &revokedTokenRepository{DB: db}
}

func (r *revokedTokenRepository) Insert(ctx context.Context, t *models.RevokedToken) error {
	const q = `
		INSERT INTO revoked_tokens (token, token_type, user_id, reason, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO NOTHING
	`
	if _, err := r.DB.ExecContext(ctx, q, t.Token, t.TokenType, t.UserID, t.Reason, t.ExpiresAt); err != nil {
		return fmt.Errorf("revoked_token insert: %w", err)
	}
	return nil
}

func (r *revokedTokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token = $1 AND expires_at > NOW())`, token,
	).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("revoked_token exists: %w", err)
	}
	return exists, nil
}

func (r *revokedTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("revoked_token delete expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
