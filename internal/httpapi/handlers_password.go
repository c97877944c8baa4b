package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// handleForgotPassword always answers 204 whether or not the email has
// an account, so the endpoint cannot be used to enumerate users.
func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if !a.loginLimiter.Allow("reset:"+clientIP(r), start) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	raw, err := a.resetSvc.CreateResetToken(r.Context(), req.Email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Unknown or OAuth-only account; same response as success.
	case errors.Is(err, domain.ErrValidation):
		auth.TimingFloor(start, auth.DefaultTimingFloor)
		WriteDomainError(w, err)
		return
	case err != nil:
		auth.TimingFloor(start, auth.DefaultTimingFloor)
		a.logger.Error("create reset token", "err", err)
		WriteDomainError(w, err)
		return
	default:
		if sendErr := a.mailer.SendPasswordReset(r.Context(), req.Email, a.resetURL(req.Email, raw)); sendErr != nil {
			// Still 204: delivery state must not leak account existence.
			a.logger.Error("send reset email", "err", sendErr)
		}
	}

	auth.TimingFloor(start, auth.DefaultTimingFloor)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) resetURL(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return a.publicURL + "/reset-password?" + q.Encode()
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	err := a.resetSvc.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword, clientIP(r), r.UserAgent())
	auth.TimingFloor(start, auth.DefaultTimingFloor)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
