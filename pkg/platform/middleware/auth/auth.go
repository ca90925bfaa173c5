package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKeyActorID struct{}

// GetActorID retrieves the authenticated actor ID from the context. Empty when
// the request carried no token; administrative handlers decide whether that is
// acceptable.
func GetActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(contextKeyActorID{}).(string); ok {
		return actorID
	}
	return ""
}

// WithActorID injects an actor ID into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeyActorID{}, actorID)
}

// ExtractActor validates a bearer token when present and stores its subject in
// the context. Token issuance is owned by the identity service; this side only
// needs the shared HS256 signing key.
func ExtractActor(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims := jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(signingKey), nil
			})
			if err != nil || !parsed.Valid {
				if logger != nil {
					logger.WarnContext(r.Context(), "rejected bearer token", "error", err)
				}
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithActorID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
