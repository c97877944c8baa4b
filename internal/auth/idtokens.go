package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

// ExternalTokenClaims is the subset of a provider ID token the linking
// resolver needs. Email is lowercased so it can be compared against
// stored accounts directly.
type ExternalTokenClaims struct {
	Issuer  string
	Subject string
	Email   string
}

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

const appleIssuer = "https://appleid.apple.com"

// VerifyGoogleIDToken validates signature, audience and issuer of a
// Google ID token.
func VerifyGoogleIDToken(ctx context.Context, tokenString, expectedAud string) (*ExternalTokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("missing id token")
	}
	if strings.TrimSpace(expectedAud) == "" {
		return nil, errors.New("missing google client id")
	}

	payload, err := idtoken.Validate(ctx, tokenString, expectedAud)
	if err != nil {
		return nil, err
	}
	if !googleIssuers[payload.Issuer] {
		return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	email, _ := payload.Claims["email"].(string)
	return newExternalClaims(payload.Issuer, payload.Subject, email), nil
}

// VerifyAppleIDToken validates signature, audience and issuer of an
// Apple ID token against Apple's published keys.
func VerifyAppleIDToken(ctx context.Context, tokenString, expectedAud string) (*ExternalTokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("missing id token")
	}
	if strings.TrimSpace(expectedAud) == "" {
		return nil, errors.New("missing apple service id")
	}

	client := validator.NewClient()
	idTok, err := client.VerifyIdToken(expectedAud, tokenString)
	if err != nil {
		return nil, err
	}
	if idTok.Iss != appleIssuer {
		return nil, fmt.Errorf("unexpected issuer: %s", idTok.Iss)
	}

	_ = ctx
	return newExternalClaims(idTok.Iss, idTok.Sub, idTok.Email), nil
}

func newExternalClaims(issuer, subject, email string) *ExternalTokenClaims {
	return &ExternalTokenClaims{
		Issuer:  issuer,
		Subject: subject,
		Email:   strings.ToLower(strings.TrimSpace(email)),
	}
}
