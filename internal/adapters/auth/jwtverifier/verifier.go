package jwtverifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arakviel/petcare/internal/ports/auth"
)

var (
	ErrTokenEmpty     = errors.New("token is empty")
	ErrSecretRequired = errors.New("jwt secret is required")
	ErrMissingSubject = errors.New("token has no subject")
)

// tokenClaims: sub es el user id; email y shelter_id son opcionales.
type tokenClaims struct {
	Email     string `json:"email,omitempty"`
	ShelterID string `json:"shelter_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier implementa auth.AuthVerifier con tokens HS256.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func New(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	var c tokenClaims
	if _, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return auth.Claims{}, fmt.Errorf("jwt verify failed: %w", err)
	}

	userID := strings.TrimSpace(c.Subject)
	if userID == "" {
		return auth.Claims{}, ErrMissingSubject
	}
	return auth.Claims{
		UserID:    userID,
		Email:     strings.TrimSpace(c.Email),
		ShelterID: strings.TrimSpace(c.ShelterID),
	}, nil
}

// Issue firma un token con los claims dados. Lo usan los tests y herramientas de dev.
func (v *Verifier) Issue(claims auth.Claims, ttl time.Duration, now time.Time) (string, error) {
	c := tokenClaims{
		Email:     claims.Email,
		ShelterID: claims.ShelterID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}
