package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"edugate/internal/models"
)

type ChatBindingRepository interface {
	Upsert(ctx context.Context, phone string, chatID int64, botType string) (*models.ChatBinding, error)
	GetByPhone(ctx context.Context, phone string) (*models.ChatBinding, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.ChatBinding, error)
	Delete(ctx context.Context, phone string) error
}

type chatBindingRepository struct{ DB *sql.DB }

func NewChatBindingRepository(db *sql.DB) ChatBindingRepository {
	return &chatBindingRepository{DB: db}
}

func (r *chatBindingRepository) Upsert(ctx context.Context, phone string, chatID int64, botType string) (*models.ChatBinding, error) {
	const q = `
		INSERT INTO chat_bindings (phone, chat_id, bot_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET chat_id = EXCLUDED.chat_id, bot_type = EXCLUDED.bot_type, updated_at = NOW()
		RETURNING id, phone, chat_id, bot_type, created_at, updated_at
	`
	var b models.ChatBinding
	if err := r.DB.QueryRowContext(ctx, q, phone, chatID, botType).Scan(
		&b.ID, &b.Phone, &b.ChatID, &b.BotType, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("chat_binding upsert: %w", err)
	}
	return &b, nil
}

func (r *chatBindingRepository) GetByPhone(ctx context.Context, phone string) (*models.ChatBinding, error) {
	const q = `
		SELECT id, phone, chat_id, bot_type, created_at, updated_at
		FROM chat_bindings
		WHERE phone = $1
	`
	var b models.ChatBinding
	err := r.DB.QueryRowContext(ctx, q, phone).Scan(&b.ID, &b.Phone, &b.ChatID, &b.BotType, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat_binding by phone: %w", err)
	}
	return &b, nil
}

func (r *chatBindingRepository) GetByChatID(ctx context.Context, chatID int64) (*models.ChatBinding, error) {
	const q = `
		SELECT id, phone, chat_id, bot_type, created_at, updated_at
		FROM chat_bindings
		WHERE chat_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var b models.ChatBinding
	err := r.DB.QueryRowContext(ctx, q, chatID).Scan(&b.ID, &b.Phone, &b.ChatID, &b.BotType, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat_binding by chat: %w", err)
	}
	return &b, nil
}

func (r *chatBindingRepository) Delete(ctx context.Context, phone string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM chat_bindings WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("chat_binding delete: %w", err)
	}
	return nil
}
