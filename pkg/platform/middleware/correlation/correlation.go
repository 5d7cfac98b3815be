// Package correlation assigns every request the correlation ID that links it
// to its audit trail. Callers may supply their own via the x-correlation-id
// header; otherwise one is generated. The ID is echoed on the response so
// callers can reference the trail either way.
package correlation

import (
	"net/http"

	"github.com/google/uuid"

	"rollout/pkg/requestcontext"
)

// Header is the wire name for the correlation ID.
const Header = "X-Correlation-Id"

// Middleware resolves the correlation ID for the request and stores it in
// the context for handlers, services, and audit events.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(Header, id)
		ctx := requestcontext.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
