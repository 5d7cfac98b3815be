package evaluator

import (
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollout/internal/flags/models"
)

type EvaluatorSuite struct {
	suite.Suite
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func (s *EvaluatorSuite) flag(status models.Status) *models.FeatureFlag {
	return &models.FeatureFlag{
		Name:        "checkout.redesign",
		Environment: "production",
		Status:      status,
		Owner:       "payments",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func lists(tenants, users []string) models.Allowlists {
	return models.NewAllowlists(tenants, users)
}

func (s *EvaluatorSuite) TestDisabledAlwaysDenies() {
	d := Decide(s.flag(models.StatusDisabled), lists([]string{"acme"}, []string{"u1"}), Context{TenantID: "acme", UserID: "u1"})
	s.False(d.Enabled)
	s.Equal(ReasonFlagDisabled, d.Reason)
}

func (s *EvaluatorSuite) TestGAAlwaysAllows() {
	d := Decide(s.flag(models.StatusGA), models.NewAllowlists(nil, nil), Context{})
	s.True(d.Enabled)
	s.Equal(ReasonGARollout, d.Reason)
}

func (s *EvaluatorSuite) TestBetaGating() {
	cases := []struct {
		name    string
		tenants []string
		users   []string
		ectx    Context
		enabled bool
		reason  string
	}{
		{"tenant match", []string{"acme"}, nil, Context{TenantID: "acme"}, true, ReasonTenantInBeta},
		{"user match", nil, []string{"u42"}, Context{UserID: "u42"}, true, ReasonUserInBeta},
		{"tenant miss user match", []string{"other"}, []string{"u42"}, Context{TenantID: "acme", UserID: "u42"}, true, ReasonUserInBeta},
		{"tenant miss", []string{"other"}, nil, Context{TenantID: "acme"}, false, ReasonTenantNotInBeta},
		{"both miss", []string{"other"}, []string{"u1"}, Context{TenantID: "acme", UserID: "u2"}, false, ReasonTenantNotInBeta},
		{"anonymous caller", []string{"acme"}, nil, Context{}, false, ReasonNotInBeta},
		{"user only miss", nil, []string{"u1"}, Context{UserID: "u2"}, false, ReasonNotInBeta},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			d := Decide(s.flag(models.StatusBeta), lists(tc.tenants, tc.users), tc.ectx)
			s.Equal(tc.enabled, d.Enabled)
			s.Equal(tc.reason, d.Reason)
		})
	}
}

func (s *EvaluatorSuite) TestAlphaGatesLikeBetaWithAlphaReasons() {
	allow := Decide(s.flag(models.StatusAlpha), lists([]string{"acme"}, nil), Context{TenantID: "acme"})
	s.True(allow.Enabled)
	s.Equal(ReasonTenantInAlpha, allow.Reason)

	deny := Decide(s.flag(models.StatusAlpha), models.NewAllowlists(nil, nil), Context{TenantID: "acme"})
	s.False(deny.Enabled)
	s.Equal(ReasonTenantNotInAlpha, deny.Reason)
}

func (s *EvaluatorSuite) TestUnknownStatusFailsSafe() {
	f := s.flag(models.Status("canary"))
	d := Decide(f, lists([]string{"acme"}, nil), Context{TenantID: "acme"})
	s.False(d.Enabled)
	s.Equal(ReasonInvalidStatus, d.Reason)
}

// TestMembershipProperty drives Decide with randomized allowlists and caller
// contexts and checks the result against a direct membership predicate:
// for alpha and beta flags, enabled iff the tenant or the user is listed.
func (s *EvaluatorSuite) TestMembershipProperty() {
	rng := rand.New(rand.NewSource(42))
	subjects := []string{"", "acme", "globex", "initech", "u1", "u2", "u3"}
	pick := func() string { return subjects[rng.Intn(len(subjects))] }
	sample := func() []string {
		var out []string
		for _, sub := range subjects[1:] {
			if rng.Intn(2) == 0 {
				out = append(out, sub)
			}
		}
		return out
	}

	for i := 0; i < 500; i++ {
		status := []models.Status{models.StatusAlpha, models.StatusBeta}[rng.Intn(2)]
		tenants, users := sample(), sample()
		ectx := Context{TenantID: pick(), UserID: pick()}

		d := Decide(s.flag(status), lists(tenants, users), ectx)

		want := (ectx.TenantID != "" && slices.Contains(tenants, ectx.TenantID)) ||
			(ectx.UserID != "" && slices.Contains(users, ectx.UserID))
		s.Equal(want, d.Enabled,
			"status=%s tenants=%v users=%v ctx=%+v", status, tenants, users, ectx)
	}
}
