package service

import (
	"context"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/journey"
)

type ProfileUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (domain.User, error)
	SetBusinessIntention(ctx context.Context, userID string, intention domain.BusinessIntention, when time.Time) (domain.User, error)
	SetViewedSuccess(ctx context.Context, userID string, when time.Time) error
}

const minimumAge = 16

// ProfileService handles profile completion and the business-intention
// bookkeeping the journey router reads.
type ProfileService struct {
	Users   ProfileUsersStore
	Events  SecurityEventsStore
	Journey *journey.Cache
	Now     func() time.Time
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type ProfileInput struct {
	FirstName   string
	LastName    string
	Username    string
	Phone       string
	DateOfBirth time.Time
}

// ActivateProfile completes an email-signup profile. The account only
// becomes active if the email is already verified; otherwise the
// verify-email step still gates activation.
func (s *ProfileService) ActivateProfile(ctx context.Context, userID string, input ProfileInput, ip, userAgent string) (domain.User, error) {
	return s.completeProfile(ctx, userID, input, false, ip, userAgent)
}

// CompleteOAuthProfile completes an OAuth-signup profile. The provider
// already vouched for the email, so this both verifies and activates.
func (s *ProfileService) CompleteOAuthProfile(ctx context.Context, userID string, input ProfileInput, ip, userAgent string) (domain.User, error) {
	return s.completeProfile(ctx, userID, input, true, ip, userAgent)
}

func (s *ProfileService) completeProfile(ctx context.Context, userID string, input ProfileInput, oauth bool, ip, userAgent string) (domain.User, error) {
	now := s.now()
	if err := validateProfileInput(input, now); err != nil {
		return domain.User{}, err
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	update := domain.ProfileUpdate{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Username:    input.Username,
		Phone:       input.Phone,
		DateOfBirth: input.DateOfBirth,
		When:        now,
	}
	if oauth {
		update.Verify = true
		update.Activate = true
	} else {
		update.Activate = u.IsVerified
	}

	updated, err := s.Users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return domain.User{}, err
	}

	if update.Activate {
		_ = s.Events.AppendSecurityEvent(ctx, domain.SecurityEvent{
			UserID:    userID,
			EventType: domain.SecurityEventProfileActivate,
			IP:        ip,
			UserAgent: userAgent,
			CreatedAt: now,
		})
	}
	_ = s.Journey.Invalidate(ctx, userID)

	return updated, nil
}

func (s *ProfileService) SetBusinessIntention(ctx context.Context, userID string, intention domain.BusinessIntention) (domain.User, error) {
	switch intention {
	case domain.IntentionSetupNow, domain.IntentionSetupLater, domain.IntentionSkip:
	default:
		return domain.User{}, domain.NewValidationError(map[string]string{"intention": "must be one of setup_now, setup_later, skip"})
	}

	u, err := s.Users.SetBusinessIntention(ctx, userID, intention, s.now())
	if err != nil {
		return domain.User{}, err
	}
	_ = s.Journey.Invalidate(ctx, userID)
	return u, nil
}

func (s *ProfileService) MarkViewedSuccess(ctx context.Context, userID string) error {
	if err := s.Users.SetViewedSuccess(ctx, userID, s.now()); err != nil {
		return err
	}
	_ = s.Journey.Invalidate(ctx, userID)
	return nil
}

func validateProfileInput(input ProfileInput, now time.Time) error {
	fields := map[string]string{}
	if input.FirstName == "" {
		fields["firstName"] = "required"
	}
	if input.LastName == "" {
		fields["lastName"] = "required"
	}
	if input.Username == "" || !validUsername(input.Username) {
		fields["username"] = "must be 3-24 chars [A-Za-z0-9_]"
	}
	if input.Phone == "" {
		fields["phone"] = "required"
	}
	if input.DateOfBirth.IsZero() {
		fields["dateOfBirth"] = "required"
	} else if age(input.DateOfBirth, now) < minimumAge {
		fields["dateOfBirth"] = "must be at least 16 years old"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		years--
	}
	return years
}

func validUsername(s string) bool {
	if len(s) < 3 || len(s) > 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
