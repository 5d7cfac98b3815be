package handler

import (
	"time"

	"rollout/internal/evaluation/service"
)

// EvaluateResponse is one decision as returned to the caller.
type EvaluateResponse struct {
	FlagName      string    `json:"flagName"`
	Environment   string    `json:"environment"`
	Enabled       bool      `json:"enabled"`
	Reason        string    `json:"reason"`
	EvaluatedAt   time.Time `json:"evaluatedAt"`
	CorrelationID string    `json:"correlationId"`
}

// FromResult maps a service result onto the wire form.
func FromResult(r *service.Result) EvaluateResponse {
	return EvaluateResponse{
		FlagName:      r.FlagName,
		Environment:   r.Environment,
		Enabled:       r.Enabled,
		Reason:        r.Reason,
		EvaluatedAt:   r.EvaluatedAt,
		CorrelationID: r.CorrelationID,
	}
}

// EvaluateBulkResponse carries decisions in request order.
type EvaluateBulkResponse struct {
	Results []EvaluateResponse `json:"results"`
}
