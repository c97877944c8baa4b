package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/journey"
)

type UsersStore interface {
	CreateUser(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

type CredentialsStore interface {
	CreateCredential(ctx context.Context, userID, passwordHash string) (domain.Credential, error)
	GetCredentialByUserID(ctx context.Context, userID string) (domain.Credential, error)
	SetPasswordHash(ctx context.Context, credentialID, passwordHash string, when time.Time) error
	RecordLoginSuccess(ctx context.Context, credentialID string, when time.Time, ip, userAgent string) error
	RecordLoginFailure(ctx context.Context, credentialID string, failedAttempts int, lockedUntil *time.Time) error
}

type AccountsStore interface {
	GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, error)
	CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email string) (domain.User, error)
	LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error)
	ListProvidersByUserID(ctx context.Context, userID string) ([]string, error)
}

type SecurityEventsStore interface {
	AppendSecurityEvent(ctx context.Context, event domain.SecurityEvent) error
}

type SecurityEventsReader interface {
	ListSecurityEvents(ctx context.Context, userID string, limit int) ([]domain.SecurityEvent, error)
}

const (
	lockoutThreshold = 5
	lockoutWindow    = 15 * time.Minute
)

// AuthService owns password authentication: lockout bookkeeping,
// credential creation, and the failure-counter reset on success.
type AuthService struct {
	Users        UsersStore
	Credentials  CredentialsStore
	Accounts     AccountsStore
	Events       SecurityEventsStore
	EventsReader SecurityEventsReader
	Journey      *journey.Cache
	Now          func() time.Time
}

// recentEventsLimit caps the account-activity listing.
const recentEventsLimit = 50

func (s *AuthService) RecentSecurityEvents(ctx context.Context, userID string) ([]domain.SecurityEvent, error) {
	if s.EventsReader == nil {
		return nil, nil
	}
	return s.EventsReader.ListSecurityEvents(ctx, userID, recentEventsLimit)
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login authenticates an email+password pair. Lockout is checked before
// the password: a locked account fails even on a correct password, and
// a lockout-state read failure fails closed as locked.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (domain.User, error) {
	email = normalizeEmail(email)
	now := s.now()

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if u.Status == domain.UserStatusSuspended {
		return domain.User{}, domain.ErrUserSuspended
	}

	cred, err := s.Credentials.GetCredentialByUserID(ctx, u.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// OAuth-only account; no password to check.
			return domain.User{}, domain.ErrInvalidCredentials
		}
		// Fail closed: an unreadable lockout state must not bypass it.
		return domain.User{}, domain.ErrAccountLocked
	}
	if cred.Locked(now) {
		return domain.User{}, domain.ErrAccountLocked
	}

	ok, err := auth.VerifyPassword(cred.PasswordHash, password)
	if err != nil {
		return domain.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		if recordErr := s.recordFailure(ctx, u.ID, cred, ip, userAgent, now); recordErr != nil {
			return domain.User{}, recordErr
		}
		return domain.User{}, domain.ErrInvalidCredentials
	}

	if err := s.Credentials.RecordLoginSuccess(ctx, cred.ID, now, ip, userAgent); err != nil {
		return domain.User{}, err
	}
	_ = s.Events.AppendSecurityEvent(ctx, domain.SecurityEvent{
		UserID:    u.ID,
		EventType: domain.SecurityEventLoginSuccess,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
	})
	_ = s.Journey.Invalidate(ctx, u.ID)

	return u, nil
}

func (s *AuthService) recordFailure(ctx context.Context, userID string, cred domain.Credential, ip, userAgent string, now time.Time) error {
	attempts := cred.FailedAttempts + 1

	var lockedUntil *time.Time
	if attempts >= lockoutThreshold {
		until := now.Add(lockoutWindow)
		lockedUntil = &until
	}

	if err := s.Credentials.RecordLoginFailure(ctx, cred.ID, attempts, lockedUntil); err != nil {
		return err
	}

	eventType := domain.SecurityEventLoginFailure
	description := fmt.Sprintf("failed attempt %d", attempts)
	if lockedUntil != nil {
		eventType = domain.SecurityEventAccountLocked
		description = fmt.Sprintf("locked until %s after %d failures", lockedUntil.UTC().Format(time.RFC3339), attempts)
	}
	_ = s.Events.AppendSecurityEvent(ctx, domain.SecurityEvent{
		UserID:      userID,
		EventType:   eventType,
		Description: description,
		IP:          ip,
		UserAgent:   userAgent,
		CreatedAt:   now,
	})
	return nil
}

// SetPassword creates or updates the password credential during email
// signup. Creating the user row on first touch keeps the endpoint
// idempotent for a signup form that is retried.
func (s *AuthService) SetPassword(ctx context.Context, email, password, ip, userAgent string) (domain.User, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return domain.User{}, domain.NewValidationError(map[string]string{"email": "must be a valid email"})
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}

	now := s.now()

	u, err := s.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		u, err = s.Users.CreateUser(ctx, email)
		if errors.Is(err, domain.ErrEmailTaken) {
			// Concurrent first signup; fall through to the existing row.
			u, err = s.Users.GetUserByEmail(ctx, email)
		}
	}
	if err != nil {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	cred, err := s.Credentials.GetCredentialByUserID(ctx, u.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// A user with linked provider accounts must not silently gain a
		// password credential on top.
		providers, perr := s.Accounts.ListProvidersByUserID(ctx, u.ID)
		if perr != nil {
			return domain.User{}, perr
		}
		if len(providers) > 0 {
			return domain.User{}, domain.ErrAccountNotLinked
		}
		if _, err := s.Credentials.CreateCredential(ctx, u.ID, hash); err != nil {
			return domain.User{}, err
		}
	case err != nil:
		return domain.User{}, err
	case u.Status != domain.UserStatusPending:
		// An established account changes its password through the reset
		// flow, not the signup endpoint.
		return domain.User{}, domain.ErrForbidden
	default:
		if err := s.Credentials.SetPasswordHash(ctx, cred.ID, hash, now); err != nil {
			return domain.User{}, err
		}
	}

	_ = s.Events.AppendSecurityEvent(ctx, domain.SecurityEvent{
		UserID:    u.ID,
		EventType: domain.SecurityEventPasswordSet,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
	})
	_ = s.Journey.Invalidate(ctx, u.ID)

	return u, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	host := email[at+1:]
	return strings.Contains(host, ".") && !strings.ContainsAny(email, " \t")
}
