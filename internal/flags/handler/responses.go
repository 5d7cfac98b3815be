package handler

import (
	"time"

	"rollout/internal/flags/models"
)

// FlagResponse is the wire form of a flag definition.
type FlagResponse struct {
	Name        string    `json:"name"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FromFlag converts a domain flag to its wire form.
func FromFlag(f *models.FeatureFlag) FlagResponse {
	return FlagResponse{
		Name:        f.Name,
		Environment: f.Environment,
		Status:      f.Status.String(),
		Owner:       f.Owner,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// FlagListResponse wraps GET /flags.
type FlagListResponse struct {
	Flags []FlagResponse `json:"flags"`
}

// AllowlistResponse wraps GET /flags/{name}/allowlist/{kind}.
type AllowlistResponse struct {
	FlagName    string   `json:"flagName"`
	Environment string   `json:"environment"`
	Kind        string   `json:"kind"`
	Subjects    []string `json:"subjects"`
}
