package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/journey"
)

type authCtxKey int

const authUserKey authCtxKey = iota

// requireAuth decodes the session cookie and puts the authenticated
// view in the context. It admits users who are still mid-setup; use
// requireActive for endpoints that need a finished account.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(auth.SessionCookieName)
		if err != nil || c.Value == "" {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		u, ok := a.sessionCodec.Decode(c.Value)
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		if u.Status == domain.UserStatusSuspended {
			WriteDomainError(w, domain.ErrUserSuspended)
			return
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// requireActive additionally refuses accounts that have not finished
// signup, pointing the caller at the setup destination instead. The
// destination comes from the same derivation the journey endpoint
// serves, so the two can never disagree and bounce a client between
// routes.
func (a *api) requireActive(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, _ := CurrentSession(r.Context())
		if u.Status == domain.UserStatusActive && u.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		redirectTo := string(journey.RouteLogin)
		if snap, err := a.journeySvc.State(r.Context(), u.UserID); err == nil {
			redirectTo = journey.WithEmail(snap.Route, u.Email)
		}
		writeRedirectError(w, http.StatusForbidden, "setup_incomplete", "account setup is not finished", redirectTo)
	})
}

func CurrentSession(ctx context.Context) (auth.AuthenticatedUser, bool) {
	u, ok := ctx.Value(authUserKey).(auth.AuthenticatedUser)
	return u, ok
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
