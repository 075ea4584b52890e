package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/arakviel/petcare/internal/platform/logger"
	"github.com/arakviel/petcare/internal/ports/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

const (
	debugUserHeader    = "X-Debug-User-ID"
	debugShelterHeader = "X-Debug-Shelter-ID"
)

// AuthContext carga los claims del request, si los hay. Nunca corta: el
// catálogo es público y cada handler de escritura exige usuario por su cuenta.
//
// Con verifier == nil (dev) los claims salen de X-Debug-User-ID y
// X-Debug-Shelter-ID; con verifier, del bearer token.
func AuthContext(verifier auth.AuthVerifier, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFrom(r, verifier, log)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func claimsFrom(r *http.Request, verifier auth.AuthVerifier, log logger.Logger) (auth.Claims, bool) {
	if verifier == nil {
		uid := strings.TrimSpace(r.Header.Get(debugUserHeader))
		if uid == "" {
			return auth.Claims{}, false
		}
		return auth.Claims{
			UserID:    uid,
			ShelterID: strings.TrimSpace(r.Header.Get(debugShelterHeader)),
		}, true
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return auth.Claims{}, false
	}
	claims, err := verifier.Verify(r.Context(), token)
	if err != nil {
		log.Debug("bearer token rejected", map[string]any{"path": r.URL.Path, "err": err})
		return auth.Claims{}, false
	}
	return claims, true
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

// UserID devuelve "" si el request es anónimo.
func UserID(ctx context.Context) string {
	c, _ := GetClaims(ctx)
	return strings.TrimSpace(c.UserID)
}

func bearerToken(authHeader string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
