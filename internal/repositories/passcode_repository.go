package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"edugate/internal/models"
)

type PasscodeRepository interface {
	// Issue — удаляет непроверенные записи по (identifier, purpose)
	// и вставляет новую: активный код всегда один.
	Issue(ctx context.Context, p *models.Passcode) (int64, error)
	FindActive(ctx context.Context, identifier string, purpose models.Purpose) (*models.Passcode, error)
	// FindActiveByIdentifier — последняя активная запись по любому purpose
	// (нужно боту: он знает только телефон).
	FindActiveByIdentifier(ctx context.Context, identifier string) (*models.Passcode, error)
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	MarkVerified(ctx context.Context, id int64) error
	SetChat(ctx context.Context, id int64, chatID int64, botType string) error
	MarkCodeSent(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type passcodeRepository struct {
	DB *sql.DB
}

func NewPasscodeRepository(db *sql.DB) PasscodeRepository {
	return &passcodeRepository{DB: db}
}

const passcodeColumns = `id, identifier, purpose, code_hash, channel, ip, user_agent,
	COALESCE(chat_id, 0), COALESCE(bot_type, ''), code_sent, sent_at, expires_at, verified, attempts`

func (r *passcodeRepository) Issue(ctx context.Context, p *models.Passcode) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("passcode issue begin: %w", err)
	}
	defer tx.Rollback()

	// вытесняем предыдущий непроверенный код
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM passcodes
		WHERE identifier = $1 AND purpose = $2 AND verified = FALSE
	`, p.Identifier, p.Purpose); err != nil {
		return 0, fmt.Errorf("passcode supersede: %w", err)
	}

	const q = `
		INSERT INTO passcodes (identifier, purpose, code_hash, channel, ip, user_agent, chat_id, bot_type, code_sent, sent_at, expires_at, verified, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), NULLIF($8, ''), $9, $10, $11, FALSE, 0)
		RETURNING id
	`
	var id int64
	if err := tx.QueryRowContext(ctx, q,
		p.Identifier, p.Purpose, p.CodeHash, p.Channel, p.IP, p.UserAgent,
		p.ChatID, p.BotType, p.CodeSent, p.SentAt, p.ExpiresAt,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("passcode create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("passcode issue commit: %w", err)
	}
	return id, nil
}

// FindActive — по сроку не фильтруем: просрочку решает движок,
// чтобы отличать Expired от NotFound. Совсем старые строки убирает свип.
func (r *passcodeRepository) FindActive(ctx context.Context, identifier string, purpose models.Purpose) (*models.Passcode, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM passcodes
		WHERE identifier = $1 AND purpose = $2 AND verified = FALSE
		ORDER BY sent_at DESC
		LIMIT 1
	`, passcodeColumns)
	return r.scanOne(r.DB.QueryRowContext(ctx, q, identifier, purpose))
}

func (r *passcodeRepository) FindActiveByIdentifier(ctx context.Context, identifier string) (*models.Passcode, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM passcodes
		WHERE identifier = $1 AND verified = FALSE AND expires_at > NOW()
		ORDER BY sent_at DESC
		LIMIT 1
	`, passcodeColumns)
	return r.scanOne(r.DB.QueryRowContext(ctx, q, identifier))
}

func (r *passcodeRepository) scanOne(row *sql.Row) (*models.Passcode, error) {
	var p models.Passcode
	err := row.Scan(
		&p.ID, &p.Identifier, &p.Purpose, &p.CodeHash, &p.Channel, &p.IP, &p.UserAgent,
		&p.ChatID, &p.BotType, &p.CodeSent, &p.SentAt, &p.ExpiresAt, &p.Verified, &p.Attempts,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("passcode scan: %w", err)
	}
	return &p, nil
}

func (r *passcodeRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	const q = `
		UPDATE passcodes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("passcode increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *passcodeRepository) MarkVerified(ctx context.Context, id int64) error {
	if _, err := r.DB.ExecContext(ctx, `UPDATE passcodes SET verified = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("passcode mark verified: %w", err)
	}
	return nil
}

func (r *passcodeRepository) SetChat(ctx context.Context, id int64, chatID int64, botType string) error {
	if _, err := r.DB.ExecContext(ctx,
		`UPDATE passcodes SET chat_id = $2, bot_type = $3 WHERE id = $1`,
		id, chatID, botType,
	); err != nil {
		return fmt.Errorf("passcode set chat: %w", err)
	}
	return nil
}

func (r *passcodeRepository) MarkCodeSent(ctx context.Context, id int64) error {
	if _, err := r.DB.ExecContext(ctx, `UPDATE passcodes SET code_sent = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("passcode mark sent: %w", err)
	}
	return nil
}

func (r *passcodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM passcodes WHERE expires_at <= NOW() - INTERVAL '1 hour'`)
	if err != nil {
		return 0, fmt.Errorf("passcode delete expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
