package services

import (
	"context"
	"log"
	"time"

	"edugate/internal/repositories"
)

// Sweeper — фоновая чистка протухших кодов, сессий и записей леджера.
// Читающие запросы и так фильтруют по expires_at, задача свипера —
// не давать таблицам расти.
type Sweeper struct {
	passcodes repositories.PasscodeRepository
	sessions  repositories.SessionRepository
	revoked   repositories.RevokedTokenRepository
	interval  time.Duration
}

func NewSweeper(
	passcodes repositories.PasscodeRepository,
	sessions repositories.SessionRepository,
	revoked repositories.RevokedTokenRepository,
	interval time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{passcodes: passcodes, sessions: sessions, revoked: revoked, interval: interval}
}

func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	if n, err := w.passcodes.DeleteExpired(ctx); err != nil {
		log.Printf("[sweep] passcodes failed: %v", err)
	} else if n > 0 {
		log.Printf("[sweep] passcodes removed: %d", n)
	}
	if n, err := w.sessions.DeleteExpired(ctx); err != nil {
		log.Printf("[sweep] sessions failed: %v", err)
	} else if n > 0 {
		log.Printf("[sweep] sessions removed: %d", n)
	}
	if n, err := w.revoked.DeleteExpired(ctx); err != nil {
		log.Printf("[sweep] revoked tokens failed: %v", err)
	} else if n > 0 {
		log.Printf("[sweep] revoked tokens removed: %d", n)
	}
}
