package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/service"
)

// memStore is a single in-memory backend implementing every store
// interface the services need, so handler tests exercise the full
// stack below the SQL layer.
type memStore struct {
	mu sync.Mutex

	nextID      int
	users       map[string]*domain.User
	credentials map[string]*domain.Credential
	accounts    []domain.ExternalAccount
	tokens      map[string]*domain.VerificationToken
	history     map[string][]domain.PasswordHistoryEntry
	events      []domain.SecurityEvent
	businesses  map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]*domain.User{},
		credentials: map[string]*domain.Credential{},
		tokens:      map[string]*domain.VerificationToken{},
		history:     map[string][]domain.PasswordHistoryEntry{},
		businesses:  map[string]int{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) CreateUser(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	u := &domain.User{ID: m.id("u"), Email: email, Status: domain.UserStatusPending, GlobalRole: domain.RoleUser}
	m.users[u.ID] = u
	return *u, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u, nil
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) UpdateProfile(_ context.Context, userID string, update domain.ProfileUpdate) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	for _, other := range m.users {
		if other.ID != userID && other.Username == update.Username {
			return domain.User{}, domain.ErrUsernameTaken
		}
	}
	u.FirstName = update.FirstName
	u.LastName = update.LastName
	u.Username = update.Username
	u.Phone = update.Phone
	dob := update.DateOfBirth
	u.DateOfBirth = &dob
	if update.Verify {
		u.IsVerified = true
	}
	if update.Activate {
		u.IsActive = true
		u.Status = domain.UserStatusActive
	}
	return *u, nil
}

func (m *memStore) SetBusinessIntention(_ context.Context, userID string, intention domain.BusinessIntention, when time.Time) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.BusinessIntention = &intention
	u.IntentionSetAt = &when
	return *u, nil
}

func (m *memStore) SetViewedSuccess(_ context.Context, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.HasViewedSuccess = true
	return nil
}

func (m *memStore) CompleteEmailVerification(_ context.Context, userID, tokenID string, when time.Time, ip, userAgent string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tokenID]; !ok {
		return domain.User{}, domain.ErrNotFound
	}
	delete(m.tokens, tokenID)
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.IsVerified = true
	u.IsActive = true
	u.Status = domain.UserStatusActive
	u.EmailVerifiedAt = &when
	m.events = append(m.events, domain.SecurityEvent{UserID: userID, EventType: domain.SecurityEventEmailVerified, IP: ip, UserAgent: userAgent, CreatedAt: when})
	return *u, nil
}

func (m *memStore) CreateCredential(_ context.Context, userID, passwordHash string) (domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &domain.Credential{ID: m.id("c"), UserID: userID, PasswordHash: passwordHash}
	m.credentials[userID] = c
	return *c, nil
}

func (m *memStore) GetCredentialByUserID(_ context.Context, userID string) (domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.credentials[userID]; ok {
		return *c, nil
	}
	return domain.Credential{}, domain.ErrNotFound
}

func (m *memStore) SetPasswordHash(_ context.Context, credentialID, passwordHash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credentials {
		if c.ID == credentialID {
			c.PasswordHash = passwordHash
			c.FailedAttempts = 0
			c.LockedUntil = nil
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) RecordLoginSuccess(_ context.Context, credentialID string, when time.Time, ip, userAgent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credentials {
		if c.ID == credentialID {
			c.FailedAttempts = 0
			c.LockedUntil = nil
			c.LastLoginAt = &when
			c.LastLoginIP = ip
			c.LastLoginUserAgent = userAgent
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) RecordLoginFailure(_ context.Context, credentialID string, failedAttempts int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credentials {
		if c.ID == credentialID {
			c.FailedAttempts = failedAttempts
			c.LockedUntil = lockedUntil
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) ListPasswordHistory(_ context.Context, credentialID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[credentialID]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]domain.PasswordHistoryEntry(nil), entries...), nil
}

func (m *memStore) CompletePasswordReset(_ context.Context, reset domain.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[reset.TokenID]; !ok {
		return domain.ErrTokenInvalid
	}
	delete(m.tokens, reset.TokenID)
	m.history[reset.CredentialID] = append([]domain.PasswordHistoryEntry{{CredentialID: reset.CredentialID, PasswordHash: reset.OldHash, CreatedAt: reset.When}}, m.history[reset.CredentialID]...)
	for _, c := range m.credentials {
		if c.ID == reset.CredentialID {
			c.PasswordHash = reset.NewHash
			c.FailedAttempts = 0
			c.LockedUntil = nil
			break
		}
	}
	m.events = append(m.events, domain.SecurityEvent{UserID: reset.UserID, EventType: domain.SecurityEventPasswordReset, CreatedAt: reset.When})
	return nil
}

func (m *memStore) GetUserByExternalAccount(_ context.Context, provider, providerID string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Provider == provider && a.ProviderID == providerID {
			if u, ok := m.users[a.UserID]; ok {
				return *u, nil
			}
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) CreateUserWithExternalAccount(_ context.Context, provider, providerID, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	u := &domain.User{ID: m.id("u"), Email: email, Status: domain.UserStatusPending, GlobalRole: domain.RoleUser}
	m.users[u.ID] = u
	m.accounts = append(m.accounts, domain.ExternalAccount{ID: m.id("a"), UserID: u.ID, Provider: provider, ProviderID: providerID, Email: email})
	return *u, nil
}

func (m *memStore) LinkExternalAccount(_ context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Provider == provider && a.ProviderID == providerID {
			return domain.ExternalAccount{}, domain.ErrExternalAccountTaken
		}
	}
	a := domain.ExternalAccount{ID: m.id("a"), UserID: userID, Provider: provider, ProviderID: providerID, Email: email}
	m.accounts = append(m.accounts, a)
	return a, nil
}

func (m *memStore) ListProvidersByUserID(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var providers []string
	for _, a := range m.accounts {
		if a.UserID == userID {
			providers = append(providers, a.Provider)
		}
	}
	return providers, nil
}

func (m *memStore) AppendSecurityEvent(_ context.Context, event domain.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memStore) ListSecurityEvents(_ context.Context, userID string, limit int) ([]domain.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SecurityEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].UserID == userID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) CreateToken(_ context.Context, token domain.VerificationToken) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.ID = m.id("t")
	m.tokens[token.ID] = &token
	return token.ID, nil
}

func (m *memStore) FindValidTokens(_ context.Context, identifier string, purpose domain.TokenPurpose, now time.Time) ([]domain.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VerificationToken
	for _, t := range m.tokens {
		if t.Identifier == identifier && t.Purpose == purpose && t.ExpiresAt.After(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTokenByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tokens, id)
	return nil
}

func (m *memStore) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if !t.ExpiresAt.After(now) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountActiveBusinessLinks(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.businesses[userID], nil
}

// captureSender records issued verification codes instead of sending.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (s *captureSender) SendVerificationCode(_ context.Context, toEmail, code string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[toEmail] = code
	return nil
}

func (s *captureSender) codeFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testEnv struct {
	store   *memStore
	sender  *captureSender
	reset   *service.ResetService
	handler http.Handler
}

func newTestEnv() *testEnv {
	store := newMemStore()
	sender := &captureSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authSvc := &service.AuthService{Users: store, Credentials: store, Accounts: store, Events: store, EventsReader: store}
	oauthSvc := &service.OAuthService{Users: store, Accounts: store, Credentials: store, Events: store}
	verificationSvc := &service.VerificationService{Tokens: store, Users: store, Sender: sender}
	resetSvc := &service.ResetService{Tokens: store, Users: store, Credentials: store, Events: store}
	profileSvc := &service.ProfileService{Users: store, Events: store}
	journeySvc := &service.JourneyService{Users: store, Credentials: store, Accounts: store, Businesses: store}

	handler := NewRouter(RouterOpts{
		Logger:       logger,
		Auth:         authSvc,
		OAuth:        oauthSvc,
		Verification: verificationSvc,
		Reset:        resetSvc,
		Profile:      profileSvc,
		Journey:      journeySvc,
		Mailer:       &service.EmailService{},
		PublicURL:    "http://localhost:8080",
		SessionCodec: auth.NewSessionCodec([]byte("0123456789abcdef0123456789abcdef")),
		SessionTTL:   time.Hour,
	})

	return &testEnv{store: store, sender: sender, reset: resetSvc, handler: handler}
}

func (e *testEnv) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			return c
		}
	}
	return nil
}
