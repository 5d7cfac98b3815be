// Package evaluator holds the pure gating decision. It sees a flag snapshot
// and a caller context and produces a decision: no store, no ledger, no
// clock, no side effects. Everything fallible lives in the orchestrating
// service; this package is just the state machine.
package evaluator

import (
	"rollout/internal/flags/models"
)

// Decision reasons. These are part of the API surface: callers and the audit
// trail both carry them, so they are stable strings, not display text.
const (
	ReasonFlagDisabled  = "flag_disabled"
	ReasonGARollout     = "ga_rollout"
	ReasonFlagNotFound  = "flag_not_found"
	ReasonInvalidStatus = "invalid_flag_status"
	ReasonEvalError     = "evaluation_error"

	ReasonTenantInBeta     = "tenant_in_beta_allowlist"
	ReasonUserInBeta       = "user_in_beta_allowlist"
	ReasonTenantNotInBeta  = "tenant_not_in_beta_allowlist"
	ReasonNotInBeta        = "not_in_beta_allowlist"
	ReasonTenantInAlpha    = "tenant_in_alpha_allowlist"
	ReasonUserInAlpha      = "user_in_alpha_allowlist"
	ReasonTenantNotInAlpha = "tenant_not_in_alpha_allowlist"
	ReasonNotInAlpha       = "not_in_alpha_allowlist"
)

// Context carries the caller identity for one decision. Either field may be
// empty; absence from the allowlist is the only deny signal.
type Context struct {
	TenantID string
	UserID   string
}

// Decision is the outcome of gating one flag for one caller.
type Decision struct {
	Enabled bool
	Reason  string
}

// Disabled builds the fail-safe decision with the given diagnostic reason.
func Disabled(reason string) Decision {
	return Decision{Enabled: false, Reason: reason}
}

// reasons groups the reason strings for one rollout stage; alpha and beta
// share the gating algorithm and differ only here.
type reasons struct {
	tenantIn     string
	userIn       string
	tenantNotIn  string
	notInDefault string
}

var (
	betaReasons  = reasons{ReasonTenantInBeta, ReasonUserInBeta, ReasonTenantNotInBeta, ReasonNotInBeta}
	alphaReasons = reasons{ReasonTenantInAlpha, ReasonUserInAlpha, ReasonTenantNotInAlpha, ReasonNotInAlpha}
)

// Decide gates flag for ectx against the allowlist snapshot.
//
// Disabled always denies; GA always allows; Alpha and Beta allow iff the
// tenant or the user is a member of the respective allowlist (logical OR;
// both matches are sufficient, there is no deny-list).
func Decide(flag *models.FeatureFlag, lists models.Allowlists, ectx Context) Decision {
	switch flag.Status {
	case models.StatusDisabled:
		return Disabled(ReasonFlagDisabled)
	case models.StatusGA:
		return Decision{Enabled: true, Reason: ReasonGARollout}
	case models.StatusBeta:
		return gate(lists, ectx, betaReasons)
	case models.StatusAlpha:
		return gate(lists, ectx, alphaReasons)
	default:
		// A status outside the enumeration means a corrupted row; fail safe.
		return Disabled(ReasonInvalidStatus)
	}
}

func gate(lists models.Allowlists, ectx Context, r reasons) Decision {
	if ectx.TenantID != "" {
		if _, ok := lists.Tenants[ectx.TenantID]; ok {
			return Decision{Enabled: true, Reason: r.tenantIn}
		}
	}
	if ectx.UserID != "" {
		if _, ok := lists.Users[ectx.UserID]; ok {
			return Decision{Enabled: true, Reason: r.userIn}
		}
	}
	if ectx.TenantID != "" {
		return Disabled(r.tenantNotIn)
	}
	return Disabled(r.notInDefault)
}
