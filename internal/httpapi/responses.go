package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samburke97/bord-business-sub001/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RedirectTo string            `json:"redirectTo,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func writeRedirectError(w http.ResponseWriter, status int, code, message, redirectTo string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message, RedirectTo: redirectTo}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps domain errors onto the wire. Lockout is served
// as invalid_credentials so a caller cannot probe lockout state, and
// token failures collapse to one generic message regardless of cause.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  verr.Fields,
		}})
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrAccountLocked):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrUserSuspended):
		WriteError(w, http.StatusForbidden, "user_suspended", "account is suspended")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrAccountNotLinked):
		WriteError(w, http.StatusConflict, "account_not_linked", "an account already exists with a different sign-in method")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "email already taken")
	case errors.Is(err, domain.ErrUsernameTaken):
		WriteError(w, http.StatusConflict, "username_taken", "username already taken")
	case errors.Is(err, domain.ErrExternalAccountTaken):
		WriteError(w, http.StatusConflict, "external_account_taken", "provider account already linked")
	case errors.Is(err, domain.ErrTokenInvalid):
		WriteError(w, http.StatusBadRequest, "token_invalid", "invalid or expired code")
	case errors.Is(err, domain.ErrPasswordReused):
		WriteError(w, http.StatusBadRequest, "password_reused", "new password must differ from recent passwords")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
