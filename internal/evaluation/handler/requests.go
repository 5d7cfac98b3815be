package handler

import (
	"fmt"
	"strings"

	"rollout/internal/evaluation/service"
	dErrors "rollout/pkg/domain-errors"
)

// EvaluateRequest is the body of POST /flags/evaluate. tenantId and userId
// are both optional; an anonymous caller only ever sees GA flags.
type EvaluateRequest struct {
	FlagName    string `json:"flagName"`
	Environment string `json:"environment"`
	TenantID    string `json:"tenantId"`
	UserID      string `json:"userId"`
}

// Normalize trims fields and applies the deployment's default environment.
func (r *EvaluateRequest) Normalize(defaultEnv string) {
	r.FlagName = strings.TrimSpace(r.FlagName)
	r.Environment = strings.TrimSpace(r.Environment)
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.UserID = strings.TrimSpace(r.UserID)
	if r.Environment == "" {
		r.Environment = defaultEnv
	}
}

func (r *EvaluateRequest) Validate() error {
	if r.FlagName == "" {
		return dErrors.New(dErrors.CodeValidation, "flagName is required")
	}
	return nil
}

func (r *EvaluateRequest) toServiceRequest() service.Request {
	return service.Request{
		FlagName:    r.FlagName,
		Environment: r.Environment,
		TenantID:    r.TenantID,
		UserID:      r.UserID,
	}
}

// EvaluateBulkRequest is the body of POST /flags/evaluate-bulk. All flags are
// evaluated for the same caller in the same environment.
type EvaluateBulkRequest struct {
	FlagNames   []string `json:"flagNames"`
	Environment string   `json:"environment"`
	TenantID    string   `json:"tenantId"`
	UserID      string   `json:"userId"`
}

// Normalize trims fields and applies the deployment's default environment.
// Flag names are kept as submitted, duplicates included: the response array
// must zip with the request array by index.
func (r *EvaluateBulkRequest) Normalize(defaultEnv string) {
	for i := range r.FlagNames {
		r.FlagNames[i] = strings.TrimSpace(r.FlagNames[i])
	}
	r.Environment = strings.TrimSpace(r.Environment)
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.UserID = strings.TrimSpace(r.UserID)
	if r.Environment == "" {
		r.Environment = defaultEnv
	}
}

func (r *EvaluateBulkRequest) Validate() error {
	if len(r.FlagNames) == 0 {
		return dErrors.New(dErrors.CodeValidation, "flagNames must not be empty")
	}
	if len(r.FlagNames) > maxBulkFlags {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("flagNames exceeds the limit of %d", maxBulkFlags))
	}
	for _, name := range r.FlagNames {
		if name == "" {
			return dErrors.New(dErrors.CodeValidation, "flagNames must not contain empty entries")
		}
	}
	return nil
}

func (r *EvaluateBulkRequest) toServiceRequest() service.Request {
	return service.Request{
		Environment: r.Environment,
		TenantID:    r.TenantID,
		UserID:      r.UserID,
	}
}
