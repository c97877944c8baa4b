package httpapi

import (
	"net/http"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/domain"
	"github.com/samburke97/bord-business-sub001/internal/service"
)

type profileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Username    string `json:"username"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`
}

func (p profileRequest) toInput() (service.ProfileInput, error) {
	input := service.ProfileInput{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Username:  p.Username,
		Phone:     p.Phone,
	}
	if p.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", p.DateOfBirth)
		if err != nil {
			return service.ProfileInput{}, domain.NewValidationError(map[string]string{"dateOfBirth": "must be YYYY-MM-DD"})
		}
		input.DateOfBirth = dob
	}
	return input, nil
}

func (a *api) handleActivateProfile(w http.ResponseWriter, r *http.Request) {
	a.handleCompleteProfile(w, r, false)
}

func (a *api) handleCompleteOAuthProfile(w http.ResponseWriter, r *http.Request) {
	a.handleCompleteProfile(w, r, true)
}

func (a *api) handleCompleteProfile(w http.ResponseWriter, r *http.Request, oauth bool) {
	sess, ok := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	input, err := req.toInput()
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	var u domain.User
	if oauth {
		u, err = a.profileSvc.CompleteOAuthProfile(r.Context(), sess.UserID, input, clientIP(r), r.UserAgent())
	} else {
		u, err = a.profileSvc.ActivateProfile(r.Context(), sess.UserID, input, clientIP(r), r.UserAgent())
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	// The session carries status flags; reissue so the guard catches up.
	if err := a.issueSession(w, u); err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, u)
}

type businessIntentionRequest struct {
	Intention string `json:"intention"`
}

func (a *api) handleBusinessIntention(w http.ResponseWriter, r *http.Request) {
	sess, ok := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req businessIntentionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	u, err := a.profileSvc.SetBusinessIntention(r.Context(), sess.UserID, domain.BusinessIntention(req.Intention))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, u)
}

func (a *api) handleViewedSuccess(w http.ResponseWriter, r *http.Request) {
	sess, ok := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.profileSvc.MarkViewedSuccess(r.Context(), sess.UserID); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleProfileStatus(w http.ResponseWriter, r *http.Request) {
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

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":          string(u.Status),
		"isVerified":      u.IsVerified,
		"isActive":        u.IsActive,
		"profileComplete": u.IsProfileComplete(),
	})
}

func (a *api) handleBusinessStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := CurrentSession(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	snap, err := a.journeySvc.State(r.Context(), sess.UserID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := map[string]any{
		"hasBusiness":   snap.Classification.HasBusiness,
		"viewedSuccess": snap.Classification.ViewedSuccess,
	}
	if snap.Classification.Intention != nil {
		resp["intention"] = string(*snap.Classification.Intention)
	}
	if snap.Classification.IntentionSetAt != nil {
		resp["intentionSetAt"] = snap.Classification.IntentionSetAt
	}
	WriteJSON(w, http.StatusOK, resp)
}
