package models

import "time"

// Session — одна сессия на (user_id, fingerprint).
// Повторный вход с того же класса устройства перезаписывает запись.
type Session struct {
	ID          int64     `json:"id"`
	UserID      int       `json:"user_id"`
	Fingerprint string    `json:"fingerprint"`
	Token       string    `json:"-"` // opaque refresh
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const (
	RevokeReasonLogout   = "logout"
	RevokeReasonSecurity = "security"
	RevokeReasonExpired  = "expired"
	RevokeReasonRefresh  = "refresh"
)

// RevokedToken — запись в леджере отозванных токенов.
// Пока токен здесь — аутентификация с ним запрещена, даже если
// его собственный exp ещё в будущем. Чистится по expires_at.
type RevokedToken struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	TokenType string    `json:"token_type"`
	UserID    int       `json:"user_id"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}
