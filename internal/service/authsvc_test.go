package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestLoginSuccessResetsCounters(t *testing.T) {
	hash := mustHash(t, "correct horse 1")
	now := fixedNow()

	var successCalled bool
	events := &recordingEventsStore{}
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			if email != "a@b.com" {
				t.Fatalf("email: got %q", email)
			}
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusActive}, nil
		}},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{ID: "c1", UserID: "u1", PasswordHash: hash, FailedAttempts: 3}, nil
			},
			recordLoginSuccessFunc: func(_ context.Context, credentialID string, when time.Time, _, _ string) error {
				successCalled = true
				if credentialID != "c1" {
					t.Fatalf("credentialID: got %q", credentialID)
				}
				if !when.Equal(now) {
					t.Fatalf("when: got %v", when)
				}
				return nil
			},
		},
		Events: events,
		Now:    fixedNow,
	}

	u, err := svc.Login(context.Background(), "A@B.com", "correct horse 1", "1.2.3.4", "ua")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("user: got %q", u.ID)
	}
	if !successCalled {
		t.Fatalf("expected RecordLoginSuccess")
	}
	if events.lastType() != domain.SecurityEventLoginSuccess {
		t.Fatalf("event: got %q", events.lastType())
	}
}

func TestLoginUnknownEmailIsInvalidCredentials(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(context.Context, string) (domain.User, error) {
			return domain.User{}, domain.ErrNotFound
		}},
		Credentials: &stubCredentialsStore{t: t},
		Events:      &recordingEventsStore{},
		Now:         fixedNow,
	}

	if _, err := svc.Login(context.Background(), "nobody@b.com", "whatever1", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err: got %v", err)
	}
}

func TestLoginLockoutAfterThreshold(t *testing.T) {
	hash := mustHash(t, "right password 1")
	events := &recordingEventsStore{}

	var gotAttempts int
	var gotLockedUntil *time.Time
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusActive}, nil
		}},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{ID: "c1", UserID: "u1", PasswordHash: hash, FailedAttempts: 4}, nil
			},
			recordLoginFailureFunc: func(_ context.Context, _ string, attempts int, lockedUntil *time.Time) error {
				gotAttempts = attempts
				gotLockedUntil = lockedUntil
				return nil
			},
		},
		Events: events,
		Now:    fixedNow,
	}

	if _, err := svc.Login(context.Background(), "a@b.com", "wrong password", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err: got %v", err)
	}
	if gotAttempts != 5 {
		t.Fatalf("attempts: got %d", gotAttempts)
	}
	if gotLockedUntil == nil {
		t.Fatalf("expected lockout on attempt %d", gotAttempts)
	}
	if want := fixedNow().Add(15 * time.Minute); !gotLockedUntil.Equal(want) {
		t.Fatalf("lockedUntil: got %v want %v", gotLockedUntil, want)
	}
	if events.lastType() != domain.SecurityEventAccountLocked {
		t.Fatalf("event: got %q", events.lastType())
	}
}

func TestLoginFailureBelowThresholdDoesNotLock(t *testing.T) {
	hash := mustHash(t, "right password 1")
	events := &recordingEventsStore{}

	var gotLockedUntil *time.Time
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusActive}, nil
		}},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{ID: "c1", UserID: "u1", PasswordHash: hash}, nil
			},
			recordLoginFailureFunc: func(_ context.Context, _ string, attempts int, lockedUntil *time.Time) error {
				if attempts != 1 {
					t.Fatalf("attempts: got %d", attempts)
				}
				gotLockedUntil = lockedUntil
				return nil
			},
		},
		Events: events,
		Now:    fixedNow,
	}

	if _, err := svc.Login(context.Background(), "a@b.com", "nope", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err: got %v", err)
	}
	if gotLockedUntil != nil {
		t.Fatalf("unexpected lockout at attempt 1")
	}
	if events.lastType() != domain.SecurityEventLoginFailure {
		t.Fatalf("event: got %q", events.lastType())
	}
}

func TestLoginLockedRejectsCorrectPassword(t *testing.T) {
	hash := mustHash(t, "right password 1")
	lockedUntil := fixedNow().Add(5 * time.Minute)

	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusActive}, nil
		}},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{ID: "c1", UserID: "u1", PasswordHash: hash, FailedAttempts: 5, LockedUntil: &lockedUntil}, nil
			},
		},
		Events: &recordingEventsStore{},
		Now:    fixedNow,
	}

	if _, err := svc.Login(context.Background(), "a@b.com", "right password 1", "", ""); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("err: got %v", err)
	}
}

func TestLoginCredentialReadErrorFailsClosed(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusActive}, nil
		}},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{}, errors.New("connection reset")
			},
		},
		Events: &recordingEventsStore{},
		Now:    fixedNow,
	}

	if _, err := svc.Login(context.Background(), "a@b.com", "whatever1", "", ""); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("err: got %v", err)
	}
}

func TestLoginSuspendedUser(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusSuspended}, nil
		}},
		Credentials: &stubCredentialsStore{t: t},
		Events:      &recordingEventsStore{},
		Now:         fixedNow,
	}

	if _, err := svc.Login(context.Background(), "a@b.com", "whatever1", "", ""); !errors.Is(err, domain.ErrUserSuspended) {
		t.Fatalf("err: got %v", err)
	}
}

func TestSetPasswordCreatesPendingUser(t *testing.T) {
	var createdHash string
	events := &recordingEventsStore{}
	svc := &AuthService{
		Users: &stubUsersStore{t: t,
			getUserByEmailFunc: func(context.Context, string) (domain.User, error) {
				return domain.User{}, domain.ErrNotFound
			},
			createUserFunc: func(_ context.Context, email string) (domain.User, error) {
				return domain.User{ID: "u1", Email: email, Status: domain.UserStatusPending}, nil
			},
		},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{}, domain.ErrNotFound
			},
			createCredentialFunc: func(_ context.Context, userID, hash string) (domain.Credential, error) {
				if userID != "u1" {
					t.Fatalf("userID: got %q", userID)
				}
				createdHash = hash
				return domain.Credential{ID: "c1", UserID: userID, PasswordHash: hash}, nil
			},
		},
		Accounts: &stubAccountsStore{t: t, listProvidersFunc: func(context.Context, string) ([]string, error) {
			return nil, nil
		}},
		Events: events,
		Now:    fixedNow,
	}

	u, err := svc.SetPassword(context.Background(), "New@User.com", "password1", "", "")
	if err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if u.Email != "new@user.com" {
		t.Fatalf("email: got %q", u.Email)
	}

	ok, err := auth.VerifyPassword(createdHash, "password1")
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}
	if events.lastType() != domain.SecurityEventPasswordSet {
		t.Fatalf("event: got %q", events.lastType())
	}
}

func TestSetPasswordWeakPasswordRejected(t *testing.T) {
	svc := &AuthService{
		Users:       &stubUsersStore{t: t},
		Credentials: &stubCredentialsStore{t: t},
		Accounts:    &stubAccountsStore{t: t},
		Events:      &recordingEventsStore{},
		Now:         fixedNow,
	}

	for _, password := range []string{"short1", "alllowercase", "12345678"} {
		if _, err := svc.SetPassword(context.Background(), "a@b.com", password, "", ""); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("password %q: got %v", password, err)
		}
	}
}

func TestSetPasswordOAuthAccountConflicts(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusActive}, nil
		}},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{}, domain.ErrNotFound
			},
		},
		Accounts: &stubAccountsStore{t: t, listProvidersFunc: func(context.Context, string) ([]string, error) {
			return []string{"google"}, nil
		}},
		Events: &recordingEventsStore{},
		Now:    fixedNow,
	}

	if _, err := svc.SetPassword(context.Background(), "a@b.com", "password1", "", ""); !errors.Is(err, domain.ErrAccountNotLinked) {
		t.Fatalf("err: got %v", err)
	}
}

func TestSetPasswordEstablishedAccountForbidden(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{t: t, getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
			return domain.User{ID: "u1", Email: email, Status: domain.UserStatusActive}, nil
		}},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{ID: "c1", UserID: "u1", PasswordHash: "x"}, nil
			},
		},
		Accounts: &stubAccountsStore{t: t},
		Events:   &recordingEventsStore{},
		Now:      fixedNow,
	}

	if _, err := svc.SetPassword(context.Background(), "a@b.com", "password1", "", ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err: got %v", err)
	}
}

func TestSetPasswordCreateRaceFallsThrough(t *testing.T) {
	calls := 0
	svc := &AuthService{
		Users: &stubUsersStore{t: t,
			getUserByEmailFunc: func(_ context.Context, email string) (domain.User, error) {
				calls++
				if calls == 1 {
					return domain.User{}, domain.ErrNotFound
				}
				return domain.User{ID: "u1", Email: email, Status: domain.UserStatusPending}, nil
			},
			createUserFunc: func(context.Context, string) (domain.User, error) {
				return domain.User{}, domain.ErrEmailTaken
			},
		},
		Credentials: &stubCredentialsStore{t: t,
			getCredentialFunc: func(context.Context, string) (domain.Credential, error) {
				return domain.Credential{ID: "c1", UserID: "u1", PasswordHash: "old"}, nil
			},
			setPasswordHashFunc: func(context.Context, string, string, time.Time) error {
				return nil
			},
		},
		Accounts: &stubAccountsStore{t: t},
		Events:   &recordingEventsStore{},
		Now:      fixedNow,
	}

	if _, err := svc.SetPassword(context.Background(), "a@b.com", "password1", "", ""); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if calls != 2 {
		t.Fatalf("GetUserByEmail calls: got %d", calls)
	}
}
