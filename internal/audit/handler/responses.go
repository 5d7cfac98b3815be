package handler

import (
	"time"

	audit "rollout/pkg/platform/audit"
)

// EventResponse is one audit event as returned by the query API.
type EventResponse struct {
	ID            string    `json:"id"`
	FlagName      string    `json:"flagName"`
	Environment   string    `json:"environment"`
	Action        string    `json:"action"`
	Result        *bool     `json:"result,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	TenantID      string    `json:"tenantId,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventListResponse carries events in insertion order.
type EventListResponse struct {
	Events []EventResponse `json:"events"`
}

func toResponses(events []audit.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:            e.ID.String(),
			FlagName:      e.FlagName,
			Environment:   e.Environment,
			Action:        string(e.Action),
			Result:        e.Result,
			Reason:        e.Reason,
			TenantID:      e.TenantID,
			UserID:        e.UserID,
			Actor:         e.Actor,
			CorrelationID: e.CorrelationID,
			Timestamp:     e.Timestamp,
		})
	}
	return out
}
