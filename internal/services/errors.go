package services

import "errors"

// Ошибки кодов подтверждения.
var (
	ErrCodeNotFound    = errors.New("no active code, request a new one")
	ErrCodeExpired     = errors.New("code expired")
	ErrCodeInvalid     = errors.New("code invalid")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrResendThrottled = errors.New("resend throttled")

	// ErrDeliveryDeferred — не фатальная ошибка: код выдан и действует,
	// но канал пока недоступен (например, telegram-чат ещё не привязан).
	ErrDeliveryDeferred = errors.New("delivery deferred")
)

// Ошибки аккаунтов и сессий.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrSessionNotFound    = errors.New("session not found")
	ErrTokenRevoked       = errors.New("token revoked")
)
