package auth

import "context"

// Claims es lo que el servidor sabe del usuario autenticado.
type Claims struct {
	UserID string
	Email  string

	// ShelterID es el refugio del staff; vacío para usuarios comunes.
	ShelterID string
}

// AuthVerifier valida un bearer token y devuelve sus claims.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
