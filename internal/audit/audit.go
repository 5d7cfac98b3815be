package audit

import (
	"log/slog"

	"rollout/internal/audit/handler"
	"rollout/internal/audit/service"
)

// Service exposes audit trail queries.
type Service = service.Service

// Handler wires HTTP endpoints to the audit query service.
type Handler = handler.Handler

// NewService constructs the audit query service.
func NewService(reader service.Reader, opts ...service.Option) *Service {
	return service.New(reader, opts...)
}

// NewHandler constructs an HTTP handler for the admin-facing audit routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
