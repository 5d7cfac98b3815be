// Package handler exposes the public evaluation endpoints. No auth: callers
// identify themselves in the request body and every decision is audited.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollout/internal/evaluation/service"
	"rollout/pkg/platform/httputil"
	"rollout/pkg/requestcontext"
)

// maxBulkFlags caps one bulk request; larger sets should page.
const maxBulkFlags = 50

// Service defines the evaluation operations this handler exposes.
type Service interface {
	Evaluate(ctx context.Context, req service.Request) (*service.Result, error)
	EvaluateBulk(ctx context.Context, names []string, base service.Request) ([]service.Result, error)
}

// Handler wires the evaluation endpoints to the evaluation service.
type Handler struct {
	service    Service
	logger     *slog.Logger
	defaultEnv string
}

// New constructs an evaluation handler. defaultEnv fills requests that omit
// the environment field.
func New(service Service, logger *slog.Logger, defaultEnv string) *Handler {
	return &Handler{service: service, logger: logger, defaultEnv: defaultEnv}
}

// Register mounts the evaluation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/flags/evaluate", h.HandleEvaluate)
	r.Post("/flags/evaluate-bulk", h.HandleEvaluateBulk)
}

// HandleEvaluate handles POST /flags/evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.CorrelationID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}
	req.Normalize(h.defaultEnv)
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Evaluate(ctx, req.toServiceRequest())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleEvaluateBulk handles POST /flags/evaluate-bulk.
func (h *Handler) HandleEvaluateBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.CorrelationID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateBulkRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}
	req.Normalize(h.defaultEnv)
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	results, err := h.service.EvaluateBulk(ctx, req.FlagNames, req.toServiceRequest())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := EvaluateBulkResponse{Results: make([]EvaluateResponse, 0, len(results))}
	for i := range results {
		resp.Results = append(resp.Results, FromResult(&results[i]))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
