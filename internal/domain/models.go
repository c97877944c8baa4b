package domain

import "time"

type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type AuthMethod string

const (
	AuthMethodEmail AuthMethod = "email"
	AuthMethodOAuth AuthMethod = "oauth"
)

type BusinessIntention string

const (
	IntentionSetupNow   BusinessIntention = "setup_now"
	IntentionSetupLater BusinessIntention = "setup_later"
	IntentionSkip       BusinessIntention = "skip"
)

type GlobalRole string

const (
	RoleUser  GlobalRole = "user"
	RoleAdmin GlobalRole = "admin"
)

type User struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	Username    string
	Phone       string
	DateOfBirth *time.Time
	Status      UserStatus
	GlobalRole  GlobalRole
	IsVerified  bool
	IsActive    bool

	BusinessIntention *BusinessIntention
	IntentionSetAt    *time.Time
	HasViewedSuccess  bool
	OnboardingStep    string

	CreatedAt          time.Time
	UpdatedAt          time.Time
	EmailVerifiedAt    *time.Time
	ProfileCompletedAt *time.Time
}

// IsProfileComplete reports whether all identity fields required to
// finish signup are present.
func (u User) IsProfileComplete() bool {
	return u.FirstName != "" &&
		u.LastName != "" &&
		u.Username != "" &&
		u.Phone != "" &&
		u.DateOfBirth != nil
}

// Credential is the password record for an email-auth user. OAuth-only
// users have no credential row.
type Credential struct {
	ID                 string
	UserID             string
	PasswordHash       string
	PasswordChangedAt  *time.Time
	MustChangePassword bool
	FailedAttempts     int
	LockedUntil        *time.Time
	LastLoginAt        *time.Time
	LastLoginIP        string
	LastLoginUserAgent string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Locked reports whether the lockout window is still in force at now.
func (c Credential) Locked(now time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(now)
}

// PasswordHistoryEntry is an immutable snapshot of a previous password
// hash, appended just before the hash is overwritten.
type PasswordHistoryEntry struct {
	ID           string
	CredentialID string
	PasswordHash string
	CreatedAt    time.Time
}

type TokenPurpose string

const (
	TokenPurposeEmailVerification TokenPurpose = "email_verification"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)

// VerificationToken is a single-use hashed secret keyed by email.
// Multiple non-expired rows may coexist per identifier; consumption
// deletes the matched row.
type VerificationToken struct {
	ID         string
	Identifier string
	TokenHash  string
	Purpose    TokenPurpose
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// ExternalAccount binds a provider identity to exactly one user.
type ExternalAccount struct {
	ID         string
	UserID     string
	Provider   string
	ProviderID string
	Email      string
	CreatedAt  time.Time
}

// ProfileUpdate is the mutation applied when a user submits the
// profile-completion form.
type ProfileUpdate struct {
	FirstName   string
	LastName    string
	Username    string
	Phone       string
	DateOfBirth time.Time
	Activate    bool
	Verify      bool
	When        time.Time
}

// PasswordReset carries everything the store needs to apply a reset in
// one transaction.
type PasswordReset struct {
	UserID       string
	CredentialID string
	OldHash      string
	NewHash      string
	TokenID      string
	Identifier   string
	When         time.Time
	IP           string
	UserAgent    string
}

type SecurityEvent struct {
	ID          string
	UserID      string
	EventType   string
	Description string
	IP          string
	UserAgent   string
	CreatedAt   time.Time
}

const (
	SecurityEventLoginSuccess    = "login_success"
	SecurityEventLoginFailure    = "login_failure"
	SecurityEventAccountLocked   = "account_locked"
	SecurityEventPasswordSet     = "password_set"
	SecurityEventPasswordReset   = "password_reset"
	SecurityEventEmailVerified   = "email_verified"
	SecurityEventProfileActivate = "profile_activated"
)
