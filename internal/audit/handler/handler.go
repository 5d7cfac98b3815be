// Package handler serves the audit query endpoints. Mounted behind the admin
// auth middleware: the trail carries tenant and user identifiers.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "rollout/pkg/domain-errors"
	audit "rollout/pkg/platform/audit"
	"rollout/pkg/platform/httputil"
)

// Service defines the audit queries this handler exposes.
type Service interface {
	ByCorrelationID(ctx context.Context, correlationID string) ([]audit.Event, error)
	ByFlag(ctx context.Context, q audit.FlagQuery) ([]audit.Event, error)
}

// Handler wires the audit query endpoints to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit query handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleQuery)
}

// HandleQuery handles GET /audit. Two query shapes share the endpoint:
// ?correlationId=... returns one request's trail, ?flagName=...&environment=...
// returns one flag's history with optional from/to/limit/offset.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	if id := params.Get("correlationId"); id != "" {
		events, err := h.service.ByCorrelationID(ctx, id)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, EventListResponse{Events: toResponses(events)})
		return
	}

	q, err := flagQueryFromParams(params.Get("flagName"), params.Get("environment"),
		params.Get("from"), params.Get("to"), params.Get("limit"), params.Get("offset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.ByFlag(ctx, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EventListResponse{Events: toResponses(events)})
}

func flagQueryFromParams(flagName, environment, from, to, limit, offset string) (audit.FlagQuery, error) {
	if flagName == "" {
		return audit.FlagQuery{}, dErrors.New(dErrors.CodeValidation, "either correlationId or flagName is required")
	}

	q := audit.FlagQuery{FlagName: flagName, Environment: environment}

	var err error
	if q.From, err = parseTimeParam("from", from); err != nil {
		return audit.FlagQuery{}, err
	}
	if q.To, err = parseTimeParam("to", to); err != nil {
		return audit.FlagQuery{}, err
	}
	if q.Limit, err = parseIntParam("limit", limit); err != nil {
		return audit.FlagQuery{}, err
	}
	if q.Offset, err = parseIntParam("offset", offset); err != nil {
		return audit.FlagQuery{}, err
	}
	return q, nil
}

func parseTimeParam(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, name+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

func parseIntParam(name, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be a non-negative integer")
	}
	return n, nil
}
