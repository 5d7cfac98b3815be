package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"rollout/pkg/requestcontext"
)

// WithCorrelationID stamps a correlation ID on the request context, simulating
// the correlation middleware.
func WithCorrelationID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithCorrelationID(req.Context(), id))
}

// WithActor stamps an admin actor on the request context, simulating the auth
// middleware for tests that bypass token verification.
func WithActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// MintAdminToken signs a bearer token accepted by the admin auth middleware.
func MintAdminToken(t *testing.T, signingKey, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(signingKey))
	require.NoError(t, err, "failed to sign test token")
	return signed
}
