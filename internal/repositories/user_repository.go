package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"edugate/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	// GetByIdentifier — email или телефон, что пришло.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	SetStatus(ctx context.Context, id int, status string) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, full_name, email, COALESCE(phone, ''), password_hash, role, status, created_at, activated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (full_name, email, phone, password_hash, role, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.DB.QueryRowContext(ctx, q,
		user.FullName, user.Email, user.Phone, user.PasswordHash, user.Role, user.Status,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, email))
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, q, phone))
}

func (r *userRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return r.GetByEmail(ctx, identifier)
	}
	return r.GetByPhone(ctx, identifier)
}

func (r *userRepository) scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var activatedAt sql.NullTime
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt, &activatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user scan: %w", err)
	}
	if activatedAt.Valid {
		t := activatedAt.Time
		u.ActivatedAt = &t
	}
	return u, nil
}

func (r *userRepository) SetStatus(ctx context.Context, id int, status string) error {
	var err error
	if status == models.StatusActive {
		_, err = r.DB.ExecContext(ctx,
			`UPDATE users SET status = $2, activated_at = NOW() WHERE id = $1`, id, status)
	} else {
		_, err = r.DB.ExecContext(ctx,
			`UPDATE users SET status = $2 WHERE id = $1`, id, status)
	}
	if err != nil {
		return fmt.Errorf("user set status: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	if _, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash,
	); err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	return nil
}

// isUniqueViolation — pq code 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
