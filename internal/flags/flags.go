package flags

import (
	"log/slog"

	"rollout/internal/flags/handler"
	"rollout/internal/flags/service"
	"rollout/pkg/platform/tx"
)

// Service exposes administrative flag orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the flags service.
type Handler = handler.Handler

// NewService constructs the flags admin service with required dependencies.
func NewService(store service.Store, ledger service.Ledger, runner tx.Runner, opts ...service.Option) (*Service, error) {
	return service.New(store, ledger, runner, opts...)
}

// NewHandler constructs an HTTP handler for admin-facing flag routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
