package approvals

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/roles"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

type memRepo struct {
	requests map[uuid.UUID]ApprovalRequest
	steps    map[uuid.UUID][]ApprovalStep
	// beforeDecide runs just before the version check, letting tests
	// interleave a competing writer.
	beforeDecide func()
}

func newMemRepo() *memRepo {
	return &memRepo{
		requests: make(map[uuid.UUID]ApprovalRequest),
		steps:    make(map[uuid.UUID][]ApprovalStep),
	}
}

func (m *memRepo) Create(ctx context.Context, req ApprovalRequest) error {
	m.requests[req.ID] = req
	return nil
}

func (m *memRepo) Get(ctx context.Context, id uuid.UUID) (ApprovalRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return ApprovalRequest{}, fmt.Errorf("approvals: %w", shared.ErrNotFound)
	}
	return req, nil
}

func (m *memRepo) Decide(ctx context.Context, req ApprovalRequest, step ApprovalStep) (ApprovalRequest, error) {
	if m.beforeDecide != nil {
		hook := m.beforeDecide
		m.beforeDecide = nil
		hook()
	}
	current, ok := m.requests[req.ID]
	if !ok {
		return ApprovalRequest{}, fmt.Errorf("approvals: %w", shared.ErrNotFound)
	}
	if current.Version != req.Version {
		return ApprovalRequest{}, fmt.Errorf("approvals: %w", shared.ErrConflict)
	}
	req.Version++
	m.requests[req.ID] = req
	step.ID = int64(len(m.steps[req.ID]) + 1)
	m.steps[req.ID] = append(m.steps[req.ID], step)
	return req, nil
}

func (m *memRepo) Steps(ctx context.Context, requestID uuid.UUID) ([]ApprovalStep, error) {
	return m.steps[requestID], nil
}

func (m *memRepo) ListPendingByRoles(ctx context.Context, roleNames []string) ([]ApprovalRequest, error) {
	allowed := make(map[string]struct{}, len(roleNames))
	for _, name := range roleNames {
		allowed[name] = struct{}{}
	}
	var out []ApprovalRequest
	for _, req := range m.requests {
		role, ok := req.CurrentRole()
		if !ok {
			continue
		}
		if _, ok := allowed[role]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

type levelsStub struct {
	levels map[int64]int
}

func (s *levelsStub) HighestLevel(ctx context.Context, principalID int64) (int, bool, error) {
	level, ok := s.levels[principalID]
	return level, ok, nil
}

type auditSpy struct {
	records []audit.Record
}

func (a *auditSpy) Record(ctx context.Context, rec audit.Record) {
	a.records = append(a.records, rec)
}

const (
	submitter = int64(1) // process_owner, level 1
	deptHead  = int64(2) // department_head, level 2
	orgHead   = int64(3) // organization_head, level 3
	adminUser = int64(4) // admin, level 4
	nobody    = int64(9) // holds no role
)

func newTestService(t *testing.T) (*Service, *memRepo, *auditSpy) {
	t.Helper()
	catalog, err := roles.NewCatalog([]roles.Role{
		{Name: "process_owner", Level: 1},
		{Name: "department_head", Level: 2},
		{Name: "organization_head", Level: 3},
		{Name: "admin", Level: 4},
	})
	require.NoError(t, err)
	resolver, err := NewChainResolver(catalog, roles.Config{Chains: []roles.ChainConfig{
		{Operation: "clause_edit", Approvers: []string{"department_head", "organization_head"}},
		{Operation: "plan_publish", Approvers: []string{"department_head", "organization_head", "admin"}},
	}})
	require.NoError(t, err)
	repo := newMemRepo()
	spy := &auditSpy{}
	levels := &levelsStub{levels: map[int64]int{submitter: 1, deptHead: 2, orgHead: 3, adminUser: 4}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(catalog, resolver, repo, levels, spy, logger), repo, spy
}

func submitClauseEdit(t *testing.T, svc *Service, by int64) ApprovalRequest {
	t.Helper()
	req, err := svc.Submit(context.Background(), SubmitInput{
		OperationType: "clause_edit",
		Title:         "Update clause 4.2",
		Payload:       []byte(`{"clause":"4.2"}`),
		SubmitterID:   by,
	})
	require.NoError(t, err)
	return req
}

// The full two-step walkthrough: PENDING → dept head approves → still
// PENDING at position 1 → interloper rejected → org head approves →
// terminal APPROVED.
func TestClauseEditFullChain(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	req := submitClauseEdit(t, svc, submitter)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, 0, req.ChainPosition)
	require.Equal(t, []string{"department_head", "organization_head"}, req.RequiredChain)

	req, err := svc.Decide(ctx, req.ID, deptHead, DecisionApproved, "fine by me")
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, 1, req.ChainPosition)

	_, err = svc.Decide(ctx, req.ID, submitter, DecisionApproved, "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	req, err = svc.Decide(ctx, req.ID, orgHead, DecisionApproved, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, req.Status)

	steps, err := svc.Steps(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.Equal(t, "department_head", steps[0].RoleName)
	require.Equal(t, "organization_head", steps[1].RoleName)

	// Terminal requests accept nothing further.
	_, err = svc.Decide(ctx, req.ID, adminUser, DecisionApproved, "")
	require.ErrorIs(t, err, shared.ErrNotPending)
	require.Len(t, repo.steps[req.ID], 2)
}

func TestAdminSubmitterAutoApproved(t *testing.T) {
	svc, _, spy := newTestService(t)

	req := submitClauseEdit(t, svc, adminUser)
	require.Equal(t, StatusApproved, req.Status)
	require.Empty(t, req.RequiredChain)

	steps, err := svc.Steps(context.Background(), req.ID)
	require.NoError(t, err)
	require.Empty(t, steps, "auto-approval produces no steps")

	require.Len(t, spy.records, 1)
	require.Equal(t, audit.KindRequestAutoApproved, spy.records[0].Kind)
}

func TestRejectionIsTerminalAtAnyPosition(t *testing.T) {
	svc, _, spy := newTestService(t)
	ctx := context.Background()

	req := submitClauseEdit(t, svc, submitter)
	req, err := svc.Decide(ctx, req.ID, deptHead, DecisionApproved, "")
	require.NoError(t, err)

	req, err = svc.Decide(ctx, req.ID, orgHead, DecisionRejected, "missing risk assessment")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, req.Status)

	_, err = svc.Decide(ctx, req.ID, adminUser, DecisionApproved, "")
	require.ErrorIs(t, err, shared.ErrNotPending)

	last := spy.records[len(spy.records)-1]
	require.Equal(t, audit.KindStepRejected, last.Kind)
}

func TestSeniorRoleActsForJunior(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req := submitClauseEdit(t, svc, submitter)
	// Admin outranks department_head, so may take its step.
	req, err := svc.Decide(ctx, req.ID, adminUser, DecisionApproved, "")
	require.NoError(t, err)
	require.Equal(t, 1, req.ChainPosition)
	require.Equal(t, StatusPending, req.Status)
}

func TestDeciderWithoutRolesUnauthorized(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := submitClauseEdit(t, svc, submitter)
	_, err := svc.Decide(context.Background(), req.ID, nobody, DecisionApproved, "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestSubmitterWithdrawalIsAuthorizedRejection(t *testing.T) {
	svc, _, _ := newTestService(t)
	levels := svc.assignments.(*levelsStub)
	ctx := context.Background()

	// Withdrawal is a REJECTED decision by the submitter under the normal
	// authorization check, so a process_owner cannot withdraw a request
	// waiting on department_head.
	req := submitClauseEdit(t, svc, submitter)
	_, err := svc.Decide(ctx, req.ID, submitter, DecisionRejected, "withdraw")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	// A promotion after submission does not recompute the frozen chain,
	// but it does entitle the submitter to act on the current step.
	levels.levels[submitter] = 2
	withdrawn, err := svc.Decide(ctx, req.ID, submitter, DecisionRejected, "withdraw")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, withdrawn.Status)
	require.Equal(t, []string{"department_head", "organization_head"}, withdrawn.RequiredChain)
}

func TestConcurrentDecideConflict(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	req := submitClauseEdit(t, svc, submitter)

	// Simulate a competing decider committing between this call's read and
	// write: exactly one mutation wins, the loser sees Conflict.
	repo.beforeDecide = func() {
		stored := repo.requests[req.ID]
		stored.ChainPosition++
		stored.Version++
		repo.requests[req.ID] = stored
	}
	_, err := svc.Decide(ctx, req.ID, deptHead, DecisionApproved, "")
	require.ErrorIs(t, err, shared.ErrConflict)

	// After a re-read the retry succeeds against the new version.
	updated, err := svc.Decide(ctx, req.ID, orgHead, DecisionApproved, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, updated.Status)
}

func TestSubmitUnknownOperation(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Submit(context.Background(), SubmitInput{OperationType: "mystery", Title: "x", SubmitterID: submitter})
	require.ErrorIs(t, err, shared.ErrUnknownOperationType)
}

func TestDecideUnknownRequest(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Decide(context.Background(), uuid.New(), deptHead, DecisionApproved, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDecideInvalidDecision(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := submitClauseEdit(t, svc, submitter)
	_, err := svc.Decide(context.Background(), req.ID, deptHead, Decision("MAYBE"), "")
	require.Error(t, err)
}

func TestListPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req := submitClauseEdit(t, svc, submitter)

	byRole, err := svc.ListPendingByRole(ctx, "department_head")
	require.NoError(t, err)
	require.Len(t, byRole, 1)
	require.Equal(t, req.ID, byRole[0].ID)

	// organization_head outranks department_head, so the request shows up
	// in its queue too.
	forOrgHead, err := svc.ListPendingFor(ctx, orgHead)
	require.NoError(t, err)
	require.Len(t, forOrgHead, 1)

	// A roleless principal has no queue.
	forNobody, err := svc.ListPendingFor(ctx, nobody)
	require.NoError(t, err)
	require.Empty(t, forNobody)

	// The submitter (level 1) cannot act on a level-2 step.
	forSubmitter, err := svc.ListPendingFor(ctx, submitter)
	require.NoError(t, err)
	require.Empty(t, forSubmitter)

	_, err = svc.ListPendingByRole(ctx, "ghost")
	require.ErrorIs(t, err, shared.ErrUnknownRole)
}
