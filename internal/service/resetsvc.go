package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/journey"
)

type ResetCredentialsStore interface {
	GetCredentialByUserID(ctx context.Context, userID string) (domain.Credential, error)
	ListPasswordHistory(ctx context.Context, credentialID string, limit int) ([]domain.PasswordHistoryEntry, error)
	// CompletePasswordReset applies the whole reset in one transaction:
	// push the old hash to history, overwrite the credential, delete the
	// consumed token, sweep expired rows, and append the audit event.
	// Returns domain.ErrTokenInvalid if the token was already consumed.
	CompletePasswordReset(ctx context.Context, reset domain.PasswordReset) error
}

// passwordHistoryDepth is how many previous hashes a new password is
// checked against.
const passwordHistoryDepth = 10

const resetTokenTTL = time.Hour

// ResetService implements the token-based password reset protocol.
type ResetService struct {
	Tokens      TokensStore
	Users       UsersStore
	Credentials ResetCredentialsStore
	Events      SecurityEventsStore
	Journey     *journey.Cache
	Now         func() time.Time
}

func (s *ResetService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateResetToken issues an opaque token for the email and returns the
// raw secret for delivery. Unknown emails return ErrNotFound so the
// handler can hide them behind the enumeration-safe 204.
func (s *ResetService) CreateResetToken(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return "", domain.NewValidationError(map[string]string{"email": "must be a valid email"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u.Status == domain.UserStatusSuspended {
		return "", domain.ErrNotFound
	}
	if _, err := s.Credentials.GetCredentialByUserID(ctx, u.ID); err != nil {
		// OAuth-only accounts have no password to reset.
		return "", err
	}

	raw, hash, err := auth.NewResetToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	if _, err := s.Tokens.CreateToken(ctx, domain.VerificationToken{
		Identifier: email,
		TokenHash:  hash,
		Purpose:    domain.TokenPurposePasswordReset,
		CreatedAt:  now,
		ExpiresAt:  now.Add(resetTokenTTL),
	}); err != nil {
		return "", err
	}
	return raw, nil
}

// ResetPassword consumes a reset token and installs a new password,
// refusing reuse of the current password or any of the retained
// history. All causes of rejection that touch the token collapse to
// ErrTokenInvalid.
func (s *ResetService) ResetPassword(ctx context.Context, email, rawToken, newPassword, ip, userAgent string) error {
	email = normalizeEmail(email)
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	now := s.now()

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}

	tokens, err := s.Tokens.FindValidTokens(ctx, email, domain.TokenPurposePasswordReset, now)
	if err != nil {
		return err
	}
	presented := auth.HashToken(rawToken)
	matchID := ""
	for _, t := range tokens {
		if auth.SecureCompare(presented, t.TokenHash) {
			matchID = t.ID
			break
		}
	}
	if matchID == "" {
		return domain.ErrTokenInvalid
	}

	cred, err := s.Credentials.GetCredentialByUserID(ctx, u.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}

	reused, err := s.passwordReused(ctx, cred, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return domain.ErrPasswordReused
	}

	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Credentials.CompletePasswordReset(ctx, domain.PasswordReset{
		UserID:       u.ID,
		CredentialID: cred.ID,
		OldHash:      cred.PasswordHash,
		NewHash:      newHash,
		TokenID:      matchID,
		Identifier:   email,
		When:         now,
		IP:           ip,
		UserAgent:    userAgent,
	}); err != nil {
		return err
	}

	_ = s.Journey.Invalidate(ctx, u.ID)
	return nil
}

func (s *ResetService) passwordReused(ctx context.Context, cred domain.Credential, plaintext string) (bool, error) {
	if ok, err := auth.VerifyPassword(cred.PasswordHash, plaintext); err == nil && ok {
		return true, nil
	}

	history, err := s.Credentials.ListPasswordHistory(ctx, cred.ID, passwordHistoryDepth)
	if err != nil {
		return false, err
	}
	for _, entry := range history {
		if ok, err := auth.VerifyPassword(entry.PasswordHash, plaintext); err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}
