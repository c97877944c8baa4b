package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/samburke97/bord-business-sub001/internal/email"
)

// EmailService sends the verification and reset messages over SMTP.
type EmailService struct {
	Settings  email.SMTPSettings
	FromName  string
	FromEmail string
}

func (s *EmailService) configured() bool {
	return s.Settings.Host != "" && s.FromEmail != ""
}

func (s *EmailService) SendVerificationCode(ctx context.Context, toEmail, code string) error {
	if !s.configured() {
		return fmt.Errorf("smtp not configured")
	}

	body := strings.Join([]string{
		"Your verification code is:",
		"",
		code,
		"",
		"The code expires in 10 minutes. If you did not request it, you can ignore this email.",
	}, "\n")

	_ = ctx
	return email.SendSMTP(s.Settings, email.Message{
		FromName:  s.FromName,
		FromEmail: s.FromEmail,
		ToEmail:   toEmail,
		Subject:   "Your verification code",
		TextBody:  body,
	})
}

func (s *EmailService) SendPasswordReset(ctx context.Context, toEmail, resetURL string) error {
	if !s.configured() {
		return fmt.Errorf("smtp not configured")
	}

	body := strings.Join([]string{
		"You requested a password reset.",
		"",
		"Reset your password using this link:",
		resetURL,
		"",
		"The link expires in 1 hour. If you did not request this, you can ignore this email.",
	}, "\n")

	_ = ctx
	return email.SendSMTP(s.Settings, email.Message{
		FromName:  s.FromName,
		FromEmail: s.FromEmail,
		ToEmail:   toEmail,
		Subject:   "Reset your password",
		TextBody:  body,
	})
}
