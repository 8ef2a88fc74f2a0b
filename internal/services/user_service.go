package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"edugate/internal/models"
	"edugate/internal/repositories"
	"edugate/internal/utils"
)

type RegisterInput struct {
	FullName string
	Email    string
	Phone    string
	Password string
	Role     string
}

type UserService interface {
	// Register — создаёт аккаунт в статусе pending; активирует его
	// только успешная верификация кода.
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	Activate(ctx context.Context, userID int) error
	UpdatePassword(ctx context.Context, userID int, plainPassword string) error
}

type userService struct {
	repo   repositories.UserRepository
	emails EmailService
	auth   AuthService
}

func NewUserService(repo repositories.UserRepository, emails EmailService, auth AuthService) UserService {
	return &userService{repo: repo, emails: emails, auth: auth}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := utils.NormalizeEmail(in.Email)
	phone := utils.NormalizePhone(in.Phone)
	if email == "" && phone == "" {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(in.Password) == "" || len(in.Password) < 6 {
		return nil, ErrInvalidInput
	}
	// самостоятельная регистрация — только student/teacher;
	// moderator и admin назначаются отдельно
	role := in.Role
	switch role {
	case "":
		role = models.RoleStudent
	case models.RoleStudent, models.RoleTeacher:
	default:
		return nil, ErrInvalidInput
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
		Status:       models.StatusPending,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	log.Printf("[user][register] created: id=%d role=%s", user.ID, user.Role)
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *userService) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.repo.GetByIdentifier(ctx, utils.NormalizeIdentifier(identifier))
}

func (s *userService) Activate(ctx context.Context, userID int) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Status == models.StatusActive {
		return nil
	}
	if err := s.repo.SetStatus(ctx, userID, models.StatusActive); err != nil {
		return err
	}
	if s.emails != nil && user.Email != "" {
		if err := s.emails.SendWelcomeEmail(user.Email, user.FullName); err != nil {
			// письмо не критично, активацию не роняем
			log.Printf("[user][activate] welcome email failed: id=%d err=%v", userID, err)
		}
	}
	return nil
}

func (s *userService) UpdatePassword(ctx context.Context, userID int, plainPassword string) error {
	if strings.TrimSpace(plainPassword) == "" || len(plainPassword) < 6 {
		return ErrInvalidInput
	}
	hash, err := s.auth.HashPassword(plainPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, hash)
}
