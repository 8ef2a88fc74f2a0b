package services

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"edugate/internal/models"
)

type EmailService interface {
	SendPasscodeEmail(email, code string, purpose models.Purpose) error
	SendWelcomeEmail(email, fullName string) error
	SendPasswordChangedEmail(email string) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

func passcodeSubject(purpose models.Purpose) string {
	switch purpose {
	case models.PurposeResetPassword:
		return "Password reset code"
	case models.PurposeLogin:
		return "Login code"
	default:
		return "Verification code"
	}
}

func (s *emailService) SendPasscodeEmail(email, code string, purpose models.Purpose) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", passcodeSubject(purpose))

	body := fmt.Sprintf(`
		<h3>Your verification code</h3>
		<p>Use the following code to continue: <strong>%s</strong></p>
		<p>The code is valid for a limited time. If you did not request it, ignore this email.</p>
	`, code)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send passcode email: %w", err)
	}

	return nil
}

func (s *emailService) SendWelcomeEmail(email, fullName string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Welcome to EduGate!")

	body := fmt.Sprintf(`
		<h2>Welcome to EduGate, %s!</h2>
		<p>Your account has been activated. You can now sign in and start learning.</p>
		<p>Best regards,<br>The EduGate Team</p>
	`, fullName)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	return nil
}

func (s *emailService) SendPasswordChangedEmail(email string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your password was changed")

	body := `
                <h3>Password changed</h3>
                <p>The password for your account was just changed.</p>
                <p>If this was not you, contact support immediately.</p>
        `

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password changed email: %w", err)
	}

	return nil
}
