package httpapi

import (
	"net/http"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
)

type sendCodeRequest struct {
	Email string `json:"email"`
}

func (a *api) handleSendVerificationCode(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req sendCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if !a.loginLimiter.Allow("code:"+clientIP(r), start) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	err := a.verificationSvc.SendCode(r.Context(), req.Email)
	// Issuance looks up the account; the floor keeps unknown-user and
	// success branches indistinguishable by timing.
	auth.TimingFloor(start, auth.DefaultTimingFloor)
	if err != nil {
		a.logger.Error("send verification code", "err", err)
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (a *api) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, err := a.verificationSvc.VerifyEmail(r.Context(), req.Email, req.Code, clientIP(r), r.UserAgent())
	auth.TimingFloor(start, auth.DefaultTimingFloor)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	// Verification can flip the account active; refresh the session so
	// the route guard sees the new state without a re-login.
	if err := a.issueSession(w, u); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, u)
}
