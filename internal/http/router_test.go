package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	auditapi "rollout/internal/audit"
	"rollout/internal/evaluation"
	"rollout/internal/flags"
	flagstore "rollout/internal/flags/store"
	"rollout/pkg/platform/audit"
	auditmemory "rollout/pkg/platform/audit/store/memory"
	"rollout/pkg/platform/middleware/auth"
	"rollout/pkg/platform/tx"
	"rollout/pkg/testutil"
)

const routerSigningKey = "router-test-signing-key"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := flagstore.NewInMemory()
	auditStore := auditmemory.NewInMemoryStore()
	ledger := audit.NewLedger(auditStore)

	evalService, err := evaluation.NewService(store, ledger)
	if err != nil {
		t.Fatalf("failed to build evaluation service: %v", err)
	}
	flagService, err := flags.NewService(store, ledger, tx.NewNoopRunner())
	if err != nil {
		t.Fatalf("failed to build flag service: %v", err)
	}
	auditService := auditapi.NewService(auditStore)

	return NewRouter(Deps{
		Logger:       logger,
		Evaluation:   evaluation.NewHandler(evalService, logger, "production"),
		Flags:        flags.NewHandler(flagService, logger),
		Audit:        auditapi.NewHandler(auditService, logger),
		AuthVerifier: auth.NewVerifier(routerSigningKey),
	})
}

// TestFlagLifecycleAcrossRouters drives the full surface in one pass: an
// admin creates a GA flag, a public caller sees it enabled, the admin deletes
// it, and the public caller falls back to disabled with flag_not_found.
func TestFlagLifecycleAcrossRouters(t *testing.T) {
	router := newTestRouter(t)
	token := testutil.MintAdminToken(t, routerSigningKey, "ops@example.com", "admin")

	create := testutil.NewJSONRequest(t, http.MethodPost, "/flags", map[string]string{
		"name":        "new-dashboard",
		"environment": "production",
		"status":      "ga",
		"owner":       "web",
	})
	create.Header.Set("Authorization", "Bearer "+token)
	testutil.AssertStatus(t, testutil.DoRequest(router, create), http.StatusCreated)

	evaluate := func() (bool, string) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/flags/evaluate", map[string]string{
			"flagName": "new-dashboard",
		})
		rec := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rec, http.StatusOK)

		var resp struct {
			Enabled bool   `json:"enabled"`
			Reason  string `json:"reason"`
		}
		if err := json.Unmarshal(testutil.ReadBody(t, rec), &resp); err != nil {
			t.Fatalf("failed to decode evaluation response: %v", err)
		}
		return resp.Enabled, resp.Reason
	}

	if enabled, reason := evaluate(); !enabled || reason != "ga_rollout" {
		t.Fatalf("expected enabled/ga_rollout before delete, got %v/%q", enabled, reason)
	}

	del := testutil.NewRequest(t, http.MethodDelete, "/flags/new-dashboard?environment=production")
	del.Header.Set("Authorization", "Bearer "+token)
	testutil.AssertStatus(t, testutil.DoRequest(router, del), http.StatusNoContent)

	if enabled, reason := evaluate(); enabled || reason != "flag_not_found" {
		t.Fatalf("expected disabled/flag_not_found after delete, got %v/%q", enabled, reason)
	}
}

// TestAdminRoutesRejectPublicCallers pins the router split: evaluation is
// public, flag administration is not.
func TestAdminRoutesRejectPublicCallers(t *testing.T) {
	router := newTestRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/flags", map[string]string{
		"name":        "new-dashboard",
		"environment": "production",
		"status":      "ga",
		"owner":       "web",
	})
	testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusUnauthorized, "unauthorized")

	eval := testutil.NewJSONRequest(t, http.MethodPost, "/flags/evaluate", map[string]string{
		"flagName": "new-dashboard",
	})
	testutil.AssertStatus(t, testutil.DoRequest(router, eval), http.StatusOK)
}
