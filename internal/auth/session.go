package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/samburke97/bord-business-sub001/internal/domain"
)

const SessionCookieName = "bord_session"

// AuthenticatedUser is the session view constructed once at the
// decode boundary and passed explicitly to handlers.
type AuthenticatedUser struct {
	UserID     string
	Email      string
	GlobalRole domain.GlobalRole
	IsVerified bool
	IsActive   bool
	Status     domain.UserStatus
}

type sessionClaims struct {
	Email      string `json:"email"`
	GlobalRole string `json:"role"`
	IsVerified bool   `json:"verified"`
	IsActive   bool   `json:"active"`
	Status     string `json:"status"`
	jwt.RegisteredClaims
}

// SessionCodec signs and verifies the cookie-carried session token.
type SessionCodec struct {
	secret []byte
}

func NewSessionCodec(secret []byte) SessionCodec {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return SessionCodec{secret: secretCopy}
}

func (c SessionCodec) Issue(u AuthenticatedUser, ttl time.Duration, now time.Time) (string, error) {
	if len(c.secret) == 0 {
		return "", fmt.Errorf("session secret not configured")
	}

	claims := sessionClaims{
		Email:      u.Email,
		GlobalRole: string(u.GlobalRole),
		IsVerified: u.IsVerified,
		IsActive:   u.IsActive,
		Status:     string(u.Status),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (c SessionCodec) Decode(tokenString string) (AuthenticatedUser, bool) {
	if len(c.secret) == 0 || tokenString == "" {
		return AuthenticatedUser{}, false
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return AuthenticatedUser{}, false
	}

	return AuthenticatedUser{
		UserID:     claims.Subject,
		Email:      claims.Email,
		GlobalRole: domain.GlobalRole(claims.GlobalRole),
		IsVerified: claims.IsVerified,
		IsActive:   claims.IsActive,
		Status:     domain.UserStatus(claims.Status),
	}, true
}

func SetSessionCookie(w http.ResponseWriter, tokenString string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
