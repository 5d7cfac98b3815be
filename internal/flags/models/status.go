package models

import (
	dErrors "rollout/pkg/domain-errors"
)

// Status is the rollout stage of a flag. It is a closed enumeration: the
// decision logic in internal/evaluation/evaluator switches over it
// exhaustively, and anything that did not come through ParseStatus is a bug.
//
// Transitions are unordered (an administrator may move a flag from any
// status to any other), but every transition is audited.
type Status string

const (
	// StatusAlpha gates the flag to the alpha allowlists (internal/early testers).
	StatusAlpha Status = "alpha"
	// StatusBeta gates the flag to the beta allowlists.
	StatusBeta Status = "beta"
	// StatusGA enables the flag for everyone.
	StatusGA Status = "ga"
	// StatusDisabled turns the flag off for everyone, allowlists included.
	StatusDisabled Status = "disabled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAlpha, StatusBeta, StatusGA, StatusDisabled:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus converts caller input into a Status, rejecting anything outside
// the enumeration.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of alpha, beta, ga, disabled")
	}
	return s, nil
}
