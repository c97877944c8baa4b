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

type TokensStore interface {
	CreateToken(ctx context.Context, token domain.VerificationToken) (string, error)
	FindValidTokens(ctx context.Context, identifier string, purpose domain.TokenPurpose, now time.Time) ([]domain.VerificationToken, error)
	DeleteTokenByID(ctx context.Context, id string) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type VerificationUsersStore interface {
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	// CompleteEmailVerification consumes the token row and promotes the
	// user in one transaction. It returns domain.ErrTokenInvalid when
	// the token row was already claimed by a concurrent consumer.
	CompleteEmailVerification(ctx context.Context, userID, tokenID string, when time.Time, ip, userAgent string) (domain.User, error)
}

type CodeSender interface {
	SendVerificationCode(ctx context.Context, toEmail, code string) error
}

const verificationCodeTTL = 10 * time.Minute

// VerificationService issues and consumes the 4-digit email codes.
type VerificationService struct {
	Tokens  TokensStore
	Users   VerificationUsersStore
	Sender  CodeSender
	Journey *journey.Cache
	Now     func() time.Time
}

func (s *VerificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SendCode issues a fresh code for the email. If delivery fails the
// just-created token row is rolled back so no undeliverable code is
// left claimable.
func (s *VerificationService) SendCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return domain.NewValidationError(map[string]string{"email": "must be a valid email"})
	}

	code, err := auth.NewNumericCode(4)
	if err != nil {
		return err
	}

	now := s.now()
	tokenID, err := s.Tokens.CreateToken(ctx, domain.VerificationToken{
		Identifier: email,
		TokenHash:  auth.HashToken(code),
		Purpose:    domain.TokenPurposeEmailVerification,
		CreatedAt:  now,
		ExpiresAt:  now.Add(verificationCodeTTL),
	})
	if err != nil {
		return err
	}

	if err := s.Sender.SendVerificationCode(ctx, email, code); err != nil {
		if delErr := s.Tokens.DeleteTokenByID(ctx, tokenID); delErr != nil {
			return fmt.Errorf("send code: %w (token cleanup also failed: %v)", err, delErr)
		}
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

// VerifyEmail consumes a presented code. Every non-expired row for the
// identifier is a candidate; the comparison is constant-time; any miss
// collapses to ErrTokenInvalid.
func (s *VerificationService) VerifyEmail(ctx context.Context, email, code, ip, userAgent string) (domain.User, error) {
	email = normalizeEmail(email)
	now := s.now()

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}

	tokens, err := s.Tokens.FindValidTokens(ctx, email, domain.TokenPurposeEmailVerification, now)
	if err != nil {
		return domain.User{}, err
	}

	presented := auth.HashToken(code)
	matchID := ""
	for _, t := range tokens {
		if auth.SecureCompare(presented, t.TokenHash) {
			matchID = t.ID
			break
		}
	}
	if matchID == "" {
		return domain.User{}, domain.ErrTokenInvalid
	}

	verified, err := s.Users.CompleteEmailVerification(ctx, u.ID, matchID, now, ip, userAgent)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The row vanished between the read and the claim: a
			// concurrent consumer won.
			return domain.User{}, domain.ErrTokenInvalid
		}
		return domain.User{}, err
	}

	_ = s.Journey.Invalidate(ctx, u.ID)
	return verified, nil
}
