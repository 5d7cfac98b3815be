package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollout/internal/flags/models"
	"rollout/internal/flags/store"
	dErrors "rollout/pkg/domain-errors"
	audit "rollout/pkg/platform/audit"
	auditmemory "rollout/pkg/platform/audit/store/memory"
	"rollout/pkg/requestcontext"
)

type recordingInvalidator struct {
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, name, environment string) {
	r.keys = append(r.keys, environment+"/"+name)
}

type failingLedger struct{}

func (failingLedger) AppendRequired(context.Context, audit.Event) error {
	return dErrors.New(dErrors.CodeInternal, "audit trail unavailable")
}

type ServiceSuite struct {
	suite.Suite
	store       *store.InMemory
	auditStore  *auditmemory.InMemoryStore
	invalidator *recordingInvalidator
	svc         *Service
	now         time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.invalidator = &recordingInvalidator{}
	s.now = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	svc, err := New(s.store, audit.NewLedger(s.auditStore), nil, WithInvalidator(s.invalidator))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithCorrelationID(context.Background(), "corr-admin")
	ctx = requestcontext.WithActor(ctx, "ops@example.com")
	return requestcontext.WithTime(ctx, s.now)
}

func (s *ServiceSuite) TestCreateFlagPersistsAndAudits() {
	flag, err := s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusBeta, "payments")
	s.Require().NoError(err)
	s.Equal(s.now, flag.CreatedAt)
	s.Equal(s.now, flag.UpdatedAt)

	events := s.auditStore.All()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionCreated, events[0].Action)
	s.Equal("ops@example.com", events[0].Actor)
	s.Equal("corr-admin", events[0].CorrelationID)
	s.Contains(events[0].Reason, "status=beta")

	s.Equal([]string{"production/checkout.redesign"}, s.invalidator.keys)
}

func (s *ServiceSuite) TestCreateDuplicateIsConflict() {
	_, err := s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusBeta, "payments")
	s.Require().NoError(err)

	_, err = s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusGA, "web")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCreateInvalidNameRejected() {
	_, err := s.svc.CreateFlag(s.ctx(), "Not A Flag!", "production", models.StatusBeta, "payments")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.auditStore.All())
}

func (s *ServiceSuite) TestUpdateFlag() {
	_, err := s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusBeta, "payments")
	s.Require().NoError(err)

	status := models.StatusGA
	flag, err := s.svc.UpdateFlag(s.ctx(), "checkout.redesign", "production", models.UpdatePatch{Status: &status})
	s.Require().NoError(err)
	s.Equal(models.StatusGA, flag.Status)

	events := s.auditStore.All()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionUpdated, events[1].Action)
	s.Contains(events[1].Reason, "status=ga")
}

func (s *ServiceSuite) TestUpdateEmptyPatchRejected() {
	_, err := s.svc.UpdateFlag(s.ctx(), "checkout.redesign", "production", models.UpdatePatch{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestUpdateMissingFlagIsNotFound() {
	status := models.StatusGA
	_, err := s.svc.UpdateFlag(s.ctx(), "ghost", "production", models.UpdatePatch{Status: &status})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteFlagAuditsBeforeRemoval() {
	_, err := s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusBeta, "payments")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.DeleteFlag(s.ctx(), "checkout.redesign", "production"))

	_, err = s.svc.GetFlag(s.ctx(), "checkout.redesign", "production")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	events := s.auditStore.All()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionDeleted, events[1].Action)
	s.Equal("checkout.redesign", events[1].FlagName)
}

func (s *ServiceSuite) TestDeleteBlockedByAuditFailure() {
	_, err := s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusBeta, "payments")
	s.Require().NoError(err)

	// A mutation that cannot be recorded must not happen.
	broken, err := New(s.store, failingLedger{}, nil)
	s.Require().NoError(err)

	err = broken.DeleteFlag(s.ctx(), "checkout.redesign", "production")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	flag, err := s.svc.GetFlag(s.ctx(), "checkout.redesign", "production")
	s.Require().NoError(err)
	s.Equal(models.StatusBeta, flag.Status, "flag must survive a failed audit append")
}

func (s *ServiceSuite) TestAllowlistRoundTripWithAudit() {
	_, err := s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusBeta, "payments")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.AddAllowlistEntry(s.ctx(), "checkout.redesign", "production", models.KindTenant, "acme"))
	s.Require().NoError(s.svc.AddAllowlistEntry(s.ctx(), "checkout.redesign", "production", models.KindUser, "u42"))

	subjects, err := s.svc.ListAllowlist(s.ctx(), "checkout.redesign", "production", models.KindTenant)
	s.Require().NoError(err)
	s.Equal([]string{"acme"}, subjects)

	s.Require().NoError(s.svc.RemoveAllowlistEntry(s.ctx(), "checkout.redesign", "production", models.KindTenant, "acme"))
	subjects, err = s.svc.ListAllowlist(s.ctx(), "checkout.redesign", "production", models.KindTenant)
	s.Require().NoError(err)
	s.Empty(subjects)

	events := s.auditStore.All()
	s.Require().Len(events, 4)
	s.Equal(audit.ActionAllowlistAdded, events[1].Action)
	s.Equal("acme", events[1].TenantID)
	s.Equal(audit.ActionAllowlistAdded, events[2].Action)
	s.Equal("u42", events[2].UserID)
	s.Equal(audit.ActionAllowlistRemoved, events[3].Action)
}

func (s *ServiceSuite) TestAllowlistValidation() {
	s.Run("bad kind", func() {
		err := s.svc.AddAllowlistEntry(s.ctx(), "checkout.redesign", "production", models.AllowlistKind("group"), "g1")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("blank subject", func() {
		err := s.svc.AddAllowlistEntry(s.ctx(), "checkout.redesign", "production", models.KindTenant, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("missing flag", func() {
		err := s.svc.AddAllowlistEntry(s.ctx(), "ghost", "production", models.KindTenant, "acme")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListFlags() {
	_, err := s.svc.CreateFlag(s.ctx(), "checkout.redesign", "production", models.StatusBeta, "payments")
	s.Require().NoError(err)
	_, err = s.svc.CreateFlag(s.ctx(), "dark-mode", "production", models.StatusGA, "web")
	s.Require().NoError(err)
	_, err = s.svc.CreateFlag(s.ctx(), "dark-mode", "staging", models.StatusAlpha, "web")
	s.Require().NoError(err)

	flags, err := s.svc.ListFlags(s.ctx(), "production")
	s.Require().NoError(err)
	s.Len(flags, 2)
}
