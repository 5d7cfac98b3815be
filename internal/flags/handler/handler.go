// Package handler wires the administrative flag endpoints. Handlers stay
// thin: decode, validate shape, delegate to the service, translate errors.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollout/internal/flags/models"
	dErrors "rollout/pkg/domain-errors"
	"rollout/pkg/platform/httputil"
	"rollout/pkg/requestcontext"
)

// Service defines the admin operations this handler exposes.
type Service interface {
	CreateFlag(ctx context.Context, name, environment string, status models.Status, owner string) (*models.FeatureFlag, error)
	UpdateFlag(ctx context.Context, name, environment string, patch models.UpdatePatch) (*models.FeatureFlag, error)
	DeleteFlag(ctx context.Context, name, environment string) error
	GetFlag(ctx context.Context, name, environment string) (*models.FeatureFlag, error)
	ListFlags(ctx context.Context, environment string) ([]*models.FeatureFlag, error)
	AddAllowlistEntry(ctx context.Context, name, environment string, kind models.AllowlistKind, subjectID string) error
	RemoveAllowlistEntry(ctx context.Context, name, environment string, kind models.AllowlistKind, subjectID string) error
	ListAllowlist(ctx context.Context, name, environment string, kind models.AllowlistKind) ([]string, error)
}

// Handler wires flag admin endpoints to the flags service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a flags admin handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the admin endpoints on the router. The caller is expected
// to have applied the admin auth middleware to r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/flags", h.HandleCreate)
	r.Get("/flags", h.HandleList)
	r.Get("/flags/{name}", h.HandleGet)
	r.Patch("/flags/{name}", h.HandleUpdate)
	r.Delete("/flags/{name}", h.HandleDelete)
	r.Post("/flags/{name}/allowlist/{kind}", h.HandleAllowlistAdd)
	r.Delete("/flags/{name}/allowlist/{kind}/{subjectId}", h.HandleAllowlistRemove)
	r.Get("/flags/{name}/allowlist/{kind}", h.HandleAllowlistList)
}

// HandleCreate handles POST /flags.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.CorrelationID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateFlagRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Status already validated in req.Validate.
	status, _ := models.ParseStatus(req.Status)

	flag, err := h.service.CreateFlag(ctx, req.Name, req.Environment, status, req.Owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromFlag(flag))
}

// HandleList handles GET /flags?environment=....
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	environment := r.URL.Query().Get("environment")

	flags, err := h.service.ListFlags(r.Context(), environment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := FlagListResponse{Flags: make([]FlagResponse, 0, len(flags))}
	for _, f := range flags {
		resp.Flags = append(resp.Flags, FromFlag(f))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /flags/{name}?environment=....
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	flag, err := h.service.GetFlag(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("environment"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromFlag(flag))
}

// HandleUpdate handles PATCH /flags/{name}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.CorrelationID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateFlagRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}

	patch, err := req.Patch()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	flag, err := h.service.UpdateFlag(ctx, chi.URLParam(r, "name"), req.Environment, patch)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromFlag(flag))
}

// HandleDelete handles DELETE /flags/{name}?environment=....
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteFlag(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("environment"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAllowlistAdd handles POST /flags/{name}/allowlist/{kind}.
func (h *Handler) HandleAllowlistAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.CorrelationID(ctx)

	kind, err := models.ParseAllowlistKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AllowlistRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}
	req.Normalize()
	if req.SubjectID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "subjectId is required"))
		return
	}

	if err := h.service.AddAllowlistEntry(ctx, chi.URLParam(r, "name"), req.Environment, kind, req.SubjectID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAllowlistRemove handles DELETE /flags/{name}/allowlist/{kind}/{subjectId}.
func (h *Handler) HandleAllowlistRemove(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseAllowlistKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	err = h.service.RemoveAllowlistEntry(
		r.Context(),
		chi.URLParam(r, "name"),
		r.URL.Query().Get("environment"),
		kind,
		chi.URLParam(r, "subjectId"),
	)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAllowlistList handles GET /flags/{name}/allowlist/{kind}.
func (h *Handler) HandleAllowlistList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	environment := r.URL.Query().Get("environment")

	kind, err := models.ParseAllowlistKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	subjects, err := h.service.ListAllowlist(r.Context(), name, environment, kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if subjects == nil {
		subjects = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, AllowlistResponse{
		FlagName:    name,
		Environment: environment,
		Kind:        string(kind),
		Subjects:    subjects,
	})
}
