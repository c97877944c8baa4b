// Package journey computes where in the signup/verification/business
// onboarding flow a user stands, and which route they must be shown
// next. The state is never persisted; it is a pure projection of the
// user row plus credential and business-link existence.
package journey

import (
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"
)

// Classification is the full set of inputs the router consumes. The
// route-guard middleware reads the same struct, so the edge filter and
// the destination picker can never disagree on vocabulary.
type Classification struct {
	AuthMethod      domain.AuthMethod         `json:"authMethod"`
	Status          domain.UserStatus         `json:"status"`
	IsVerified      bool                      `json:"isVerified"`
	ProfileComplete bool                      `json:"profileComplete"`
	HasBusiness     bool                      `json:"hasBusiness"`
	ViewedSuccess   bool                      `json:"viewedSuccess"`
	Intention       *domain.BusinessIntention `json:"intention,omitempty"`
	IntentionSetAt  *time.Time                `json:"intentionSetAt,omitempty"`
}

// Derive normalizes raw persisted user fields into a Classification.
// hasCredential and hasOAuth describe whether a password credential or
// linked provider accounts exist; hasBusiness whether the user owns or
// belongs to at least one active business.
func Derive(u domain.User, hasCredential, hasOAuth, hasBusiness bool) Classification {
	method := domain.AuthMethodEmail
	if hasOAuth && !hasCredential {
		method = domain.AuthMethodOAuth
	}

	return Classification{
		AuthMethod:      method,
		Status:          u.Status,
		IsVerified:      u.IsVerified,
		ProfileComplete: u.IsProfileComplete(),
		HasBusiness:     hasBusiness,
		ViewedSuccess:   u.HasViewedSuccess,
		Intention:       u.BusinessIntention,
		IntentionSetAt:  u.IntentionSetAt,
	}
}

// IntentionAged reports whether a recorded SETUP_LATER deferral has
// expired. A missing timestamp counts as recent: re-prompting a user
// whose timestamp failed to persist is worse than one extra deferral.
func (c Classification) IntentionAged(now time.Time) bool {
	if c.IntentionSetAt == nil {
		return false
	}
	return now.Sub(*c.IntentionSetAt) >= IntentionMaxAge
}
