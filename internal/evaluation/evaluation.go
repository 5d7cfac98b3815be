package evaluation

import (
	"log/slog"

	"rollout/internal/evaluation/handler"
	"rollout/internal/evaluation/service"
)

// Service exposes flag evaluation orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the evaluation service.
type Handler = handler.Handler

// NewService constructs the evaluation service with required dependencies.
func NewService(reader service.FlagReader, ledger service.Ledger, opts ...service.Option) (*Service, error) {
	return service.New(reader, ledger, opts...)
}

// NewHandler constructs an HTTP handler for the public evaluation routes.
func NewHandler(s *Service, logger *slog.Logger, defaultEnv string) *Handler {
	return handler.New(s, logger, defaultEnv)
}
