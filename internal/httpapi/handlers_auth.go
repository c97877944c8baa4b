package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/domain"
)

type setPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleAuthSetPassword serves both signup and the set-password step:
// first call creates the pending user and its credential, a retry
// overwrites the password while the account is still pending.
func (a *api) handleAuthSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, err := a.authSvc.SetPassword(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if err := a.issueSession(w, u); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "password": "required"}))
		return
	}

	ip := clientIP(r)
	if !a.loginLimiter.Allow("ip:"+ip, start) || !a.loginLimiter.Allow("email:"+strings.ToLower(req.Email), start) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, err := a.authSvc.Login(r.Context(), req.Email, req.Password, ip, r.UserAgent())
	// Every outcome past the limiter pays the same floor, so not-found,
	// wrong-password and locked are indistinguishable by timing.
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

func (a *api) handleAuthLogout(w http.ResponseWriter, _ *http.Request) {
	auth.ClearSessionCookie(w, a.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleUserMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	u, err := a.authSvc.Users.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, u)
}

func (a *api) handleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	events, err := a.authSvc.RecentSecurityEvents(r.Context(), sess.UserID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	type eventResponse struct {
		EventType   string    `json:"eventType"`
		Description string    `json:"description,omitempty"`
		IP          string    `json:"ip,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			EventType:   e.EventType,
			Description: e.Description,
			IP:          e.IP,
			CreatedAt:   e.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (a *api) issueSession(w http.ResponseWriter, u domain.User) error {
	token, err := a.sessionCodec.Issue(auth.AuthenticatedUser{
		UserID:     u.ID,
		Email:      u.Email,
		GlobalRole: u.GlobalRole,
		IsVerified: u.IsVerified,
		IsActive:   u.IsActive,
		Status:     u.Status,
	}, a.sessionTTL, time.Now())
	if err != nil {
		return err
	}
	auth.SetSessionCookie(w, token, a.sessionTTL, a.cookieSecure)
	return nil
}

type userResponse struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"firstName,omitempty"`
	LastName          string     `json:"lastName,omitempty"`
	Username          string     `json:"username,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Status            string     `json:"status"`
	GlobalRole        string     `json:"globalRole"`
	IsVerified        bool       `json:"isVerified"`
	IsActive          bool       `json:"isActive"`
	ProfileComplete   bool       `json:"profileComplete"`
	BusinessIntention *string    `json:"businessIntention,omitempty"`
	IntentionSetAt    *time.Time `json:"intentionSetAt,omitempty"`
	HasViewedSuccess  bool       `json:"hasViewedSuccess"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func writeUser(w http.ResponseWriter, status int, u domain.User) {
	resp := userResponse{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Username:         u.Username,
		Phone:            u.Phone,
		Status:           string(u.Status),
		GlobalRole:       string(u.GlobalRole),
		IsVerified:       u.IsVerified,
		IsActive:         u.IsActive,
		ProfileComplete:  u.IsProfileComplete(),
		IntentionSetAt:   u.IntentionSetAt,
		HasViewedSuccess: u.HasViewedSuccess,
		CreatedAt:        u.CreatedAt,
	}
	if u.BusinessIntention != nil {
		s := string(*u.BusinessIntention)
		resp.BusinessIntention = &s
	}
	WriteJSON(w, status, resp)
}
