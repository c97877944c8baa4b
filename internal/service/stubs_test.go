package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc     func(context.Context, string) (domain.User, error)
	getUserByIDFunc    func(context.Context, string) (domain.User, error)
	getUserByEmailFunc func(context.Context, string) (domain.User, error)
}

func (s *stubUsersStore) CreateUser(ctx context.Context, email string) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, email)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

type stubCredentialsStore struct {
	t *testing.T

	createCredentialFunc   func(context.Context, string, string) (domain.Credential, error)
	getCredentialFunc      func(context.Context, string) (domain.Credential, error)
	setPasswordHashFunc    func(context.Context, string, string, time.Time) error
	recordLoginSuccessFunc func(context.Context, string, time.Time, string, string) error
	recordLoginFailureFunc func(context.Context, string, int, *time.Time) error
}

func (s *stubCredentialsStore) CreateCredential(ctx context.Context, userID, passwordHash string) (domain.Credential, error) {
	if s.createCredentialFunc != nil {
		return s.createCredentialFunc(ctx, userID, passwordHash)
	}
	s.t.Fatalf("CreateCredential called unexpectedly")
	return domain.Credential{}, errors.New("unexpected call")
}

func (s *stubCredentialsStore) GetCredentialByUserID(ctx context.Context, userID string) (domain.Credential, error) {
	if s.getCredentialFunc != nil {
		return s.getCredentialFunc(ctx, userID)
	}
	s.t.Fatalf("GetCredentialByUserID called unexpectedly")
	return domain.Credential{}, errors.New("unexpected call")
}

func (s *stubCredentialsStore) SetPasswordHash(ctx context.Context, credentialID, passwordHash string, when time.Time) error {
	if s.setPasswordHashFunc != nil {
		return s.setPasswordHashFunc(ctx, credentialID, passwordHash, when)
	}
	s.t.Fatalf("SetPasswordHash called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubCredentialsStore) RecordLoginSuccess(ctx context.Context, credentialID string, when time.Time, ip, userAgent string) error {
	if s.recordLoginSuccessFunc != nil {
		return s.recordLoginSuccessFunc(ctx, credentialID, when, ip, userAgent)
	}
	s.t.Fatalf("RecordLoginSuccess called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubCredentialsStore) RecordLoginFailure(ctx context.Context, credentialID string, failedAttempts int, lockedUntil *time.Time) error {
	if s.recordLoginFailureFunc != nil {
		return s.recordLoginFailureFunc(ctx, credentialID, failedAttempts, lockedUntil)
	}
	s.t.Fatalf("RecordLoginFailure called unexpectedly")
	return errors.New("unexpected call")
}

type stubAccountsStore struct {
	t *testing.T

	getUserByExternalFunc      func(context.Context, string, string) (domain.User, error)
	createUserWithExternalFunc func(context.Context, string, string, string) (domain.User, error)
	linkExternalAccountFunc    func(context.Context, string, string, string, string) (domain.ExternalAccount, error)
	listProvidersFunc          func(context.Context, string) ([]string, error)
}

func (s *stubAccountsStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, error) {
	if s.getUserByExternalFunc != nil {
		return s.getUserByExternalFunc(ctx, provider, providerID)
	}
	s.t.Fatalf("GetUserByExternalAccount called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubAccountsStore) CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email string) (domain.User, error) {
	if s.createUserWithExternalFunc != nil {
		return s.createUserWithExternalFunc(ctx, provider, providerID, email)
	}
	s.t.Fatalf("CreateUserWithExternalAccount called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubAccountsStore) LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	if s.linkExternalAccountFunc != nil {
		return s.linkExternalAccountFunc(ctx, userID, provider, providerID, email)
	}
	s.t.Fatalf("LinkExternalAccount called unexpectedly")
	return domain.ExternalAccount{}, errors.New("unexpected call")
}

func (s *stubAccountsStore) ListProvidersByUserID(ctx context.Context, userID string) ([]string, error) {
	if s.listProvidersFunc != nil {
		return s.listProvidersFunc(ctx, userID)
	}
	s.t.Fatalf("ListProvidersByUserID called unexpectedly")
	return nil, errors.New("unexpected call")
}

// recordingEventsStore collects appended events; Append never fails.
type recordingEventsStore struct {
	events []domain.SecurityEvent
}

func (s *recordingEventsStore) AppendSecurityEvent(_ context.Context, event domain.SecurityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingEventsStore) lastType() string {
	if len(s.events) == 0 {
		return ""
	}
	return s.events[len(s.events)-1].EventType
}

type stubTokensStore struct {
	t *testing.T

	createTokenFunc         func(context.Context, domain.VerificationToken) (string, error)
	findValidTokensFunc     func(context.Context, string, domain.TokenPurpose, time.Time) ([]domain.VerificationToken, error)
	deleteTokenByIDFunc     func(context.Context, string) error
	deleteExpiredTokensFunc func(context.Context, time.Time) (int64, error)
}

func (s *stubTokensStore) CreateToken(ctx context.Context, token domain.VerificationToken) (string, error) {
	if s.createTokenFunc != nil {
		return s.createTokenFunc(ctx, token)
	}
	s.t.Fatalf("CreateToken called unexpectedly")
	return "", errors.New("unexpected call")
}

func (s *stubTokensStore) FindValidTokens(ctx context.Context, identifier string, purpose domain.TokenPurpose, now time.Time) ([]domain.VerificationToken, error) {
	if s.findValidTokensFunc != nil {
		return s.findValidTokensFunc(ctx, identifier, purpose, now)
	}
	s.t.Fatalf("FindValidTokens called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubTokensStore) DeleteTokenByID(ctx context.Context, id string) error {
	if s.deleteTokenByIDFunc != nil {
		return s.deleteTokenByIDFunc(ctx, id)
	}
	s.t.Fatalf("DeleteTokenByID called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubTokensStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	if s.deleteExpiredTokensFunc != nil {
		return s.deleteExpiredTokensFunc(ctx, now)
	}
	s.t.Fatalf("DeleteExpiredTokens called unexpectedly")
	return 0, errors.New("unexpected call")
}
