// Package auth guards administrative routes. The upstream identity provider
// issues the bearer tokens; this middleware verifies the signature, extracts
// the actor identity, and enforces the admin role. Token issuance itself is
// not this service's concern.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"rollout/pkg/requestcontext"
)

// Claims are the token claims administrative callers must carry.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates admin bearer tokens signed with a shared HMAC key.
type Verifier struct {
	signingKey []byte
}

// NewVerifier constructs a Verifier for the shared signing key.
func NewVerifier(signingKey string) *Verifier {
	return &Verifier{signingKey: []byte(signingKey)}
}

// Verify parses and validates the token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid admin bearer token and stores
// the actor identity in the context for audit attribution.
func RequireAdmin(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			correlationID := requestcontext.CorrelationID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "admin request without bearer token",
					"correlation_id", correlationID,
					"path", r.URL.Path,
					"client_ip", requestcontext.ClientIP(ctx),
					"client_app", requestcontext.ClientApp(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"correlation_id", correlationID,
					"path", r.URL.Path,
					"client_ip", requestcontext.ClientIP(ctx),
					"client_app", requestcontext.ClientApp(ctx),
					"error", err,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			if claims.Role != "admin" {
				logger.WarnContext(ctx, "non-admin actor on admin route",
					"correlation_id", correlationID,
					"actor", claims.Subject,
					"role", claims.Role,
					"client_ip", requestcontext.ClientIP(ctx),
					"client_app", requestcontext.ClientApp(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "admin role required")
				return
			}

			ctx = requestcontext.WithActor(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}
