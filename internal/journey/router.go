package journey

import (
	"net/url"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"
)

type Route string

const (
	RouteLogin              Route = "/login"
	RouteProfileSetup       Route = "/signup/setup"
	RouteEmailSetup         Route = "/signup/email-setup"
	RouteVerifyEmail        Route = "/signup/verify-email"
	RouteSuccess            Route = "/signup/success"
	RouteBusinessOnboarding Route = "/business/onboarding"
	RouteDashboard          Route = "/dashboard"
)

// IntentionMaxAge is how long a SETUP_LATER deferral holds before the
// user is re-prompted with the success screen.
const IntentionMaxAge = 24 * time.Hour

// NextRoute maps a Classification to exactly one route. It is total:
// every input combination lands on a concrete route, and repeated calls
// with the same inputs and clock return the same answer.
func NextRoute(c Classification, now time.Time) Route {
	if c.AuthMethod == domain.AuthMethodOAuth {
		return nextOAuthRoute(c, now)
	}
	return nextEmailRoute(c, now)
}

func nextOAuthRoute(c Classification, now time.Time) Route {
	// Identity setup outranks everything, including a stale intention
	// left over from an earlier attempt.
	if c.Status == domain.UserStatusPending || !c.ProfileComplete {
		return RouteProfileSetup
	}
	if !c.ViewedSuccess {
		return RouteSuccess
	}
	return businessRoute(c, now, RouteSuccess)
}

func nextEmailRoute(c Classification, now time.Time) Route {
	if c.Status == domain.UserStatusActive && c.IsVerified && c.ProfileComplete {
		return businessRoute(c, now, RouteDashboard)
	}
	if !c.ProfileComplete {
		return RouteEmailSetup
	}
	if !c.IsVerified {
		return RouteVerifyEmail
	}
	if !c.HasBusiness && !c.ViewedSuccess {
		return RouteSuccess
	}
	return RouteLogin
}

// businessRoute is the shared sub-decision once identity setup is done.
// noIntention is what to show a user who has not recorded an intention
// yet: the success screen for OAuth users, the dashboard for email
// users who already passed through it.
func businessRoute(c Classification, now time.Time, noIntention Route) Route {
	if c.HasBusiness {
		return RouteDashboard
	}
	if c.Intention == nil {
		return noIntention
	}
	switch *c.Intention {
	case domain.IntentionSetupNow:
		return RouteBusinessOnboarding
	case domain.IntentionSkip:
		return RouteDashboard
	case domain.IntentionSetupLater:
		if c.IntentionAged(now) {
			return RouteSuccess
		}
		return RouteDashboard
	default:
		return noIntention
	}
}

// WithEmail appends the email query parameter for routes that carry it
// (email-setup and verify-email).
func WithEmail(r Route, email string) string {
	if email == "" {
		return string(r)
	}
	switch r {
	case RouteEmailSetup, RouteVerifyEmail:
		return string(r) + "?email=" + url.QueryEscape(email)
	default:
		return string(r)
	}
}
