package models

import (
	"regexp"
	"time"

	dErrors "rollout/pkg/domain-errors"
)

// FeatureFlag is the aggregate root for one toggle in one environment.
//
// Invariants:
//   - (Name, Environment) is unique across the store
//   - Name and Environment are non-empty, at most 128 characters, and
//     match namePattern
//   - Status is a member of the Status enumeration
//   - CreatedAt is immutable after construction; UpdatedAt only moves forward
type FeatureFlag struct {
	Name        string    `json:"name"`
	Environment string    `json:"environment"`
	Status      Status    `json:"status"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

// ValidateName checks the shape shared by flag names and environment names.
func ValidateName(field, value string) error {
	if value == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(value) > 128 {
		return dErrors.New(dErrors.CodeValidation, field+" must be 128 characters or less")
	}
	if !namePattern.MatchString(value) {
		return dErrors.New(dErrors.CodeValidation, field+" must be lowercase alphanumeric with '.', '_' or '-' separators")
	}
	return nil
}

// NewFeatureFlag constructs a flag, enforcing invariants.
func NewFeatureFlag(name, environment string, status Status, owner string, now time.Time) (*FeatureFlag, error) {
	if err := ValidateName("flag name", name); err != nil {
		return nil, err
	}
	if err := ValidateName("environment", environment); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown flag status")
	}
	return &FeatureFlag{
		Name:        name,
		Environment: environment,
		Status:      status,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyPatch updates the mutable fields and bumps UpdatedAt. The caller
// validates the patch before applying.
func (f *FeatureFlag) ApplyPatch(patch UpdatePatch, now time.Time) {
	if patch.Status != nil {
		f.Status = *patch.Status
	}
	if patch.Owner != nil {
		f.Owner = *patch.Owner
	}
	if now.After(f.UpdatedAt) {
		f.UpdatedAt = now
	}
}

// UpdatePatch carries the optional fields of a flag update. Nil means
// "leave unchanged".
type UpdatePatch struct {
	Status *Status
	Owner  *string
}

// Empty reports whether the patch changes nothing.
func (p UpdatePatch) Empty() bool {
	return p.Status == nil && p.Owner == nil
}

// AllowlistKind distinguishes the two membership sets a non-GA flag consults.
type AllowlistKind string

const (
	KindTenant AllowlistKind = "tenant"
	KindUser   AllowlistKind = "user"
)

// Valid reports whether k is a known allowlist kind.
func (k AllowlistKind) Valid() bool {
	return k == KindTenant || k == KindUser
}

// ParseAllowlistKind converts caller input into an AllowlistKind.
func ParseAllowlistKind(raw string) (AllowlistKind, error) {
	k := AllowlistKind(raw)
	if !k.Valid() {
		return "", dErrors.New(dErrors.CodeValidation, "allowlist kind must be tenant or user")
	}
	return k, nil
}

// AllowlistEntry is one subject granted access to a non-GA flag. Membership
// is a set: inserting an existing entry is a no-op.
type AllowlistEntry struct {
	FlagName    string        `json:"flag_name"`
	Environment string        `json:"environment"`
	Kind        AllowlistKind `json:"kind"`
	SubjectID   string        `json:"subject_id"`
	AddedAt     time.Time     `json:"added_at"`
}

// Allowlists is the membership snapshot the evaluator consumes. Read-only
// outside the store.
type Allowlists struct {
	Tenants map[string]struct{}
	Users   map[string]struct{}
}

// NewAllowlists builds a snapshot from subject slices.
func NewAllowlists(tenants, users []string) Allowlists {
	a := Allowlists{
		Tenants: make(map[string]struct{}, len(tenants)),
		Users:   make(map[string]struct{}, len(users)),
	}
	for _, t := range tenants {
		a.Tenants[t] = struct{}{}
	}
	for _, u := range users {
		a.Users[u] = struct{}{}
	}
	return a
}
