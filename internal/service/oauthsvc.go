package service

import (
	"context"
	"errors"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/journey"
)

// OAuthService resolves an inbound provider identity to a user: an
// existing link, a fresh pending user, a silent link onto a
// compatible account, or an ErrAccountNotLinked conflict.
type OAuthService struct {
	Users       UsersStore
	Accounts    AccountsStore
	Credentials CredentialsStore
	Events      SecurityEventsStore
	Journey     *journey.Cache
	Now         func() time.Time

	GoogleWebClientID string
	AppleServiceID    string

	VerifyGoogleIDToken func(ctx context.Context, tokenString, expectedAud string) (*auth.ExternalTokenClaims, error)
	VerifyAppleIDToken  func(ctx context.Context, tokenString, expectedAud string) (*auth.ExternalTokenClaims, error)
}

func (s *OAuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *OAuthService) LoginWithGoogle(ctx context.Context, idToken, ip, userAgent string) (domain.User, error) {
	verify := s.VerifyGoogleIDToken
	if verify == nil {
		verify = auth.VerifyGoogleIDToken
	}
	claims, err := verify(ctx, idToken, s.GoogleWebClientID)
	if err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return s.resolve(ctx, "google", claims, ip, userAgent)
}

func (s *OAuthService) LoginWithApple(ctx context.Context, idToken, ip, userAgent string) (domain.User, error) {
	verify := s.VerifyAppleIDToken
	if verify == nil {
		verify = auth.VerifyAppleIDToken
	}
	claims, err := verify(ctx, idToken, s.AppleServiceID)
	if err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return s.resolve(ctx, "apple", claims, ip, userAgent)
}

// resolve implements the linking decision. The conflict rule: an email
// that already holds a password credential, or a link from a different
// provider, refuses the sign-in rather than merging silently.
func (s *OAuthService) resolve(ctx context.Context, provider string, claims *auth.ExternalTokenClaims, ip, userAgent string) (domain.User, error) {
	if claims.Subject == "" || claims.Email == "" {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	u, err := s.Accounts.GetUserByExternalAccount(ctx, provider, claims.Subject)
	if err == nil {
		return s.finishLogin(ctx, u, ip, userAgent)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	u, err = s.Users.GetUserByEmail(ctx, claims.Email)
	if errors.Is(err, domain.ErrNotFound) {
		u, err = s.Accounts.CreateUserWithExternalAccount(ctx, provider, claims.Subject, claims.Email)
		if errors.Is(err, domain.ErrEmailTaken) || errors.Is(err, domain.ErrExternalAccountTaken) {
			// Lost a concurrent first-login race; the other request
			// created the row, so link against it instead.
			return s.linkExisting(ctx, provider, claims, ip, userAgent)
		}
		if err != nil {
			return domain.User{}, err
		}
		return s.finishLogin(ctx, u, ip, userAgent)
	}
	if err != nil {
		return domain.User{}, err
	}

	return s.linkToUser(ctx, u, provider, claims, ip, userAgent)
}

func (s *OAuthService) linkExisting(ctx context.Context, provider string, claims *auth.ExternalTokenClaims, ip, userAgent string) (domain.User, error) {
	if u, err := s.Accounts.GetUserByExternalAccount(ctx, provider, claims.Subject); err == nil {
		return s.finishLogin(ctx, u, ip, userAgent)
	}
	u, err := s.Users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		return domain.User{}, err
	}
	return s.linkToUser(ctx, u, provider, claims, ip, userAgent)
}

func (s *OAuthService) linkToUser(ctx context.Context, u domain.User, provider string, claims *auth.ExternalTokenClaims, ip, userAgent string) (domain.User, error) {
	cred, err := s.Credentials.GetCredentialByUserID(ctx, u.ID)
	if err == nil && cred.PasswordHash != "" {
		return domain.User{}, domain.ErrAccountNotLinked
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	providers, err := s.Accounts.ListProvidersByUserID(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	for _, p := range providers {
		if p != provider {
			return domain.User{}, domain.ErrAccountNotLinked
		}
	}

	if _, err := s.Accounts.LinkExternalAccount(ctx, u.ID, provider, claims.Subject, claims.Email); err != nil {
		if !errors.Is(err, domain.ErrExternalAccountTaken) {
			return domain.User{}, err
		}
		// Another request linked the same account concurrently.
	}
	return s.finishLogin(ctx, u, ip, userAgent)
}

func (s *OAuthService) finishLogin(ctx context.Context, u domain.User, ip, userAgent string) (domain.User, error) {
	if u.Status == domain.UserStatusSuspended {
		return domain.User{}, domain.ErrUserSuspended
	}

	_ = s.Events.AppendSecurityEvent(ctx, domain.SecurityEvent{
		UserID:    u.ID,
		EventType: domain.SecurityEventLoginSuccess,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: s.now(),
	})
	_ = s.Journey.Invalidate(ctx, u.ID)
	return u, nil
}
