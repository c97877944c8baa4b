package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
)

type oauthLoginRequest struct {
	IDToken string `json:"idToken"`
}

func (a *api) handleAuthGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleOAuthLogin(w, r, a.oauthSvc.LoginWithGoogle)
}

func (a *api) handleAuthApple(w http.ResponseWriter, r *http.Request) {
	a.handleOAuthLogin(w, r, a.oauthSvc.LoginWithApple)
}

func (a *api) handleOAuthLogin(w http.ResponseWriter, r *http.Request, login func(ctx context.Context, idToken, ip, userAgent string) (domain.User, error)) {
	start := time.Now()

	// Providers attach extra metadata to the callback payload.
	var req oauthLoginRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.IDToken == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"idToken": "required"}))
		return
	}

	u, err := login(r.Context(), req.IDToken, clientIP(r), r.UserAgent())
	auth.TimingFloor(start, auth.DefaultTimingFloor)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if err := a.issueSession(w, u); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, u)
}
