package handler

import (
	"strings"

	"rollout/internal/flags/models"
	dErrors "rollout/pkg/domain-errors"
)

// CreateFlagRequest is the body of POST /flags.
type CreateFlagRequest struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
	Status      string `json:"status"`
	Owner       string `json:"owner"`
}

// Normalize trims whitespace from user-supplied fields.
func (r *CreateFlagRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Environment = strings.TrimSpace(r.Environment)
	r.Owner = strings.TrimSpace(r.Owner)
}

// Validate checks shape only; uniqueness is the store's concern.
func (r *CreateFlagRequest) Validate() error {
	if err := models.ValidateName("flag name", r.Name); err != nil {
		return err
	}
	if err := models.ValidateName("environment", r.Environment); err != nil {
		return err
	}
	if _, err := models.ParseStatus(r.Status); err != nil {
		return err
	}
	if r.Owner == "" {
		return dErrors.New(dErrors.CodeValidation, "owner is required")
	}
	return nil
}

// UpdateFlagRequest is the body of PATCH /flags/{name}. Absent fields are
// left unchanged.
type UpdateFlagRequest struct {
	Environment string  `json:"environment"`
	Status      *string `json:"status,omitempty"`
	Owner       *string `json:"owner,omitempty"`
}

// Patch converts the request into a domain patch, validating the status
// value when present.
func (r *UpdateFlagRequest) Patch() (models.UpdatePatch, error) {
	var patch models.UpdatePatch
	if r.Status != nil {
		status, err := models.ParseStatus(*r.Status)
		if err != nil {
			return models.UpdatePatch{}, err
		}
		patch.Status = &status
	}
	if r.Owner != nil {
		owner := strings.TrimSpace(*r.Owner)
		if owner == "" {
			return models.UpdatePatch{}, dErrors.New(dErrors.CodeValidation, "owner cannot be empty")
		}
		patch.Owner = &owner
	}
	return patch, nil
}

// AllowlistRequest is the body of POST /flags/{name}/allowlist/{kind}.
type AllowlistRequest struct {
	Environment string `json:"environment"`
	SubjectID   string `json:"subjectId"`
}

func (r *AllowlistRequest) Normalize() {
	r.Environment = strings.TrimSpace(r.Environment)
	r.SubjectID = strings.TrimSpace(r.SubjectID)
}
