package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"rollout/internal/flags/service"
	"rollout/internal/flags/store"
	audit "rollout/pkg/platform/audit"
	auditmemory "rollout/pkg/platform/audit/store/memory"
	"rollout/pkg/platform/middleware/auth"
	"rollout/pkg/platform/middleware/correlation"
	"rollout/pkg/platform/middleware/requesttime"
	"rollout/pkg/testutil"
)

const signingKey = "test-signing-key"

type fixture struct {
	router http.Handler
	audit  *auditmemory.InMemoryStore
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	flagStore := store.NewInMemory()
	auditStore := auditmemory.NewInMemoryStore()
	svc, err := service.New(flagStore, audit.NewLedger(auditStore), nil)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Use(requesttime.Middleware, correlation.Middleware)
	r.Group(func(adm chi.Router) {
		adm.Use(auth.RequireAdmin(auth.NewVerifier(signingKey), log))
		New(svc, log).Register(adm)
	})

	return &fixture{
		router: r,
		audit:  auditStore,
		token:  testutil.MintAdminToken(t, signingKey, "ops@example.com", "admin"),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req.Header.Set("Authorization", "Bearer "+f.token)
	return testutil.DoRequest(f.router, req).Result()
}

func (f *fixture) createFlag(t *testing.T, name, environment, status string) {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/flags", map[string]string{
		"name": name, "environment": environment, "status": status, "owner": "payments",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAdminAuthRequired(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/flags", map[string]string{"name": "x"})
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	req = testutil.NewJSONRequest(t, http.MethodPost, "/flags", map[string]string{"name": "x"})
	req.Header.Set("Authorization", "Bearer "+testutil.MintAdminToken(t, signingKey, "dev@example.com", "viewer"))
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	req = testutil.NewJSONRequest(t, http.MethodPost, "/flags", map[string]string{"name": "x"})
	req.Header.Set("Authorization", "Bearer "+testutil.MintAdminToken(t, "wrong-key", "ops@example.com", "admin"))
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestCreateFlagLifecycle(t *testing.T) {
	f := newFixture(t)
	f.createFlag(t, "checkout.redesign", "production", "beta")

	// Duplicate create conflicts.
	resp := f.do(t, http.MethodPost, "/flags", map[string]string{
		"name": "checkout.redesign", "environment": "production", "status": "beta", "owner": "payments",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Read it back.
	req := testutil.NewRequest(t, http.MethodGet, "/flags/checkout.redesign?environment=production")
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	flag := testutil.UnmarshalResponse[FlagResponse](t, rr)
	require.Equal(t, "beta", flag.Status)
	require.Equal(t, "payments", flag.Owner)

	// Patch the status.
	resp = f.do(t, http.MethodPatch, "/flags/checkout.redesign", map[string]string{
		"environment": "production", "status": "ga",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete and verify it is gone.
	resp = f.do(t, http.MethodDelete, "/flags/checkout.redesign?environment=production", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = testutil.NewRequest(t, http.MethodGet, "/flags/checkout.redesign?environment=production")
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	// Every admin action left a trail entry: create, update, delete.
	events := f.audit.All()
	require.Len(t, events, 3)
	for _, e := range events {
		require.Equal(t, "ops@example.com", e.Actor)
		require.NotEmpty(t, e.CorrelationID)
	}
}

func TestCreateFlagValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad name", map[string]string{"name": "Not Valid!", "environment": "production", "status": "beta", "owner": "x"}},
		{"bad status", map[string]string{"name": "ok-flag", "environment": "production", "status": "canary", "owner": "x"}},
		{"missing owner", map[string]string{"name": "ok-flag", "environment": "production", "status": "beta"}},
		{"missing environment", map[string]string{"name": "ok-flag", "status": "beta", "owner": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/flags", tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestAllowlistEndpoints(t *testing.T) {
	f := newFixture(t)
	f.createFlag(t, "checkout.redesign", "production", "beta")

	resp := f.do(t, http.MethodPost, "/flags/checkout.redesign/allowlist/tenant", map[string]string{
		"environment": "production", "subjectId": "acme",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	req := testutil.NewRequest(t, http.MethodGet, "/flags/checkout.redesign/allowlist/tenant?environment=production")
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	list := testutil.UnmarshalResponse[AllowlistResponse](t, rr)
	require.Equal(t, []string{"acme"}, list.Subjects)

	resp = f.do(t, http.MethodDelete, "/flags/checkout.redesign/allowlist/tenant/acme?environment=production", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Unknown kind is rejected.
	resp = f.do(t, http.MethodPost, "/flags/checkout.redesign/allowlist/group", map[string]string{
		"environment": "production", "subjectId": "g1",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListFlags(t *testing.T) {
	f := newFixture(t)
	f.createFlag(t, "checkout.redesign", "production", "beta")
	f.createFlag(t, "dark-mode", "production", "ga")
	f.createFlag(t, "dark-mode", "staging", "alpha")

	req := testutil.NewRequest(t, http.MethodGet, "/flags?environment=production")
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	list := testutil.UnmarshalResponse[FlagListResponse](t, rr)
	require.Len(t, list.Flags, 2)
}
