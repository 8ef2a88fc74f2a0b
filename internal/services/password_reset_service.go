package services

import (
	"context"
	"log"

	"edugate/internal/models"
	"edugate/internal/utils"
)

type PasswordResetService interface {
	// RequestReset — выдаёт код reset_password через общий OTP-движок.
	// Существование аккаунта не раскрываем: ответ одинаковый.
	RequestReset(ctx context.Context, identifier, ip, userAgent string) error
	// ConfirmReset — проверяет код и ставит новый пароль.
	ConfirmReset(ctx context.Context, identifier, code, newPassword string) error
}

type passwordResetService struct {
	otp    OTPService
	users  UserService
	emails EmailService
}

func NewPasswordResetService(otp OTPService, users UserService, emails EmailService) PasswordResetService {
	return &passwordResetService{otp: otp, users: users, emails: emails}
}

func (s *passwordResetService) RequestReset(ctx context.Context, identifier, ip, userAgent string) error {
	identifier = utils.NormalizeIdentifier(identifier)
	if identifier == "" {
		return ErrInvalidInput
	}

	_, err := s.otp.Issue(ctx, IssueRequest{
		Identifier: identifier,
		Purpose:    models.PurposeResetPassword,
		IP:         ip,
		UserAgent:  userAgent,
	})
	switch err {
	case nil:
		return nil
	case ErrResendThrottled:
		return err
	case ErrUserNotFound:
		// существование аккаунта не раскрываем
		log.Printf("[password-reset] request for unknown identifier=%q", identifier)
		return nil
	default:
		return err
	}
}

func (s *passwordResetService) ConfirmReset(ctx context.Context, identifier, code, newPassword string) error {
	user, err := s.otp.Verify(ctx, identifier, models.PurposeResetPassword, code)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	if s.emails != nil && user.Email != "" {
		if err := s.emails.SendPasswordChangedEmail(user.Email); err != nil {
			log.Printf("[password-reset] changed-notice email failed: id=%d err=%v", user.ID, err)
		}
	}
	log.Printf("[password-reset] OK user_id=%d", user.ID)
	return nil
}
