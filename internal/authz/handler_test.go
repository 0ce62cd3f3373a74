package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/approvals"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/assignments"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/observability"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/roles"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

type memAssignRepo struct {
	nextID int64
	rows   []assignments.Assignment
}

func (m *memAssignRepo) Insert(ctx context.Context, asg assignments.Assignment) (assignments.Assignment, error) {
	for _, row := range m.rows {
		if row.IsActive && row.PrincipalID == asg.PrincipalID && row.RoleName == asg.RoleName {
			return assignments.Assignment{}, fmt.Errorf("assignments: %w", shared.ErrAlreadyActive)
		}
	}
	m.nextID++
	asg.ID = m.nextID
	asg.IsActive = true
	asg.AssignedAt = time.Now().UTC()
	m.rows = append(m.rows, asg)
	return asg, nil
}

func (m *memAssignRepo) Deactivate(ctx context.Context, principalID int64, roleName string) (assignments.Assignment, error) {
	for i, row := range m.rows {
		if row.IsActive && row.PrincipalID == principalID && row.RoleName == roleName {
			now := time.Now().UTC()
			m.rows[i].IsActive = false
			m.rows[i].RevokedAt = &now
			return m.rows[i], nil
		}
	}
	return assignments.Assignment{}, fmt.Errorf("assignments: %w", shared.ErrNotFound)
}

func (m *memAssignRepo) ActiveByPrincipal(ctx context.Context, principalID int64) ([]string, error) {
	var names []string
	for _, row := range m.rows {
		if row.IsActive && row.PrincipalID == principalID {
			names = append(names, row.RoleName)
		}
	}
	return names, nil
}

type memApprovalRepo struct {
	requests map[uuid.UUID]approvals.ApprovalRequest
	steps    map[uuid.UUID][]approvals.ApprovalStep
	// conflicts makes the next N Decide calls fail with Conflict so tests
	// can watch the handler's bounded retry.
	conflicts int
}

func newMemApprovalRepo() *memApprovalRepo {
	return &memApprovalRepo{
		requests: make(map[uuid.UUID]approvals.ApprovalRequest),
		steps:    make(map[uuid.UUID][]approvals.ApprovalStep),
	}
}

func (m *memApprovalRepo) Create(ctx context.Context, req approvals.ApprovalRequest) error {
	m.requests[req.ID] = req
	return nil
}

func (m *memApprovalRepo) Get(ctx context.Context, id uuid.UUID) (approvals.ApprovalRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return approvals.ApprovalRequest{}, fmt.Errorf("approvals: %w", shared.ErrNotFound)
	}
	return req, nil
}

func (m *memApprovalRepo) Decide(ctx context.Context, req approvals.ApprovalRequest, step approvals.ApprovalStep) (approvals.ApprovalRequest, error) {
	if m.conflicts > 0 {
		m.conflicts--
		return approvals.ApprovalRequest{}, fmt.Errorf("approvals: %w", shared.ErrConflict)
	}
	current, ok := m.requests[req.ID]
	if !ok {
		return approvals.ApprovalRequest{}, fmt.Errorf("approvals: %w", shared.ErrNotFound)
	}
	if current.Version != req.Version {
		return approvals.ApprovalRequest{}, fmt.Errorf("approvals: %w", shared.ErrConflict)
	}
	req.Version++
	m.requests[req.ID] = req
	step.ID = int64(len(m.steps[req.ID]) + 1)
	m.steps[req.ID] = append(m.steps[req.ID], step)
	return req, nil
}

func (m *memApprovalRepo) Steps(ctx context.Context, requestID uuid.UUID) ([]approvals.ApprovalStep, error) {
	return m.steps[requestID], nil
}

func (m *memApprovalRepo) ListPendingByRoles(ctx context.Context, roleNames []string) ([]approvals.ApprovalRequest, error) {
	allowed := make(map[string]struct{}, len(roleNames))
	for _, name := range roleNames {
		allowed[name] = struct{}{}
	}
	var out []approvals.ApprovalRequest
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

type memAuditStore struct {
	records []audit.Record
}

func (m *memAuditStore) Insert(ctx context.Context, rec audit.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memAuditStore) Page(ctx context.Context, filter audit.Filter, after audit.Cursor, limit int) ([]audit.Record, error) {
	matched := make([]audit.Record, 0, len(m.records))
	for _, rec := range m.records {
		if filter.TargetID != "" && rec.TargetID != filter.TargetID {
			continue
		}
		if filter.ActorID != 0 && rec.ActorID != filter.ActorID {
			continue
		}
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.Before(matched[j].OccurredAt)
		}
		return bytes.Compare(matched[i].ID[:], matched[j].ID[:]) < 0
	})
	out := make([]audit.Record, 0, limit)
	for _, rec := range matched {
		if !after.IsZero() {
			if rec.OccurredAt.Before(after.OccurredAt) {
				continue
			}
			if rec.OccurredAt.Equal(after.OccurredAt) && bytes.Compare(rec.ID[:], after.ID[:]) <= 0 {
				continue
			}
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fixture struct {
	router    http.Handler
	facade    *Facade
	aprRepo   *memApprovalRepo
	auditSink *memAuditStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := roles.NewCatalog([]roles.Role{
		{Name: "process_owner", Level: 1},
		{Name: "department_head", Level: 2},
		{Name: "organization_head", Level: 3},
		{Name: "admin", Level: 4},
	})
	require.NoError(t, err)
	resolver, err := approvals.NewChainResolver(catalog, roles.Config{Chains: []roles.ChainConfig{
		{Operation: "clause_edit", Approvers: []string{"department_head", "organization_head"}},
	}})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := &memAuditStore{}
	recorder := audit.NewRecorder(sink, nil, logger, nil)
	asgSvc := assignments.NewService(catalog, &memAssignRepo{}, nil, recorder, logger)
	aprRepo := newMemApprovalRepo()
	aprSvc := approvals.NewService(catalog, resolver, aprRepo, asgSvc, recorder, logger)
	facade := NewFacade(catalog, asgSvc, aprSvc, sink)
	handler := NewHandler(logger, facade, observability.NewMetrics())

	// Stand-in for the token middleware: the acting principal rides in a
	// header instead of a bearer token.
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get("X-Principal-ID"); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				require.NoError(t, err)
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), shared.Principal{ID: id}))
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Route("/api/v1", handler.MountRoutes)
	return &fixture{router: router, facade: facade, aprRepo: aprRepo, auditSink: sink}
}

func (f *fixture) do(t *testing.T, method, path string, principalID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if principalID != 0 {
		req.Header.Set("X-Principal-ID", strconv.FormatInt(principalID, 10))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const (
	adminUser = int64(100)
	submitter = int64(1)
	deptHead  = int64(2)
	orgHead   = int64(3)
)

func seedRoles(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for principal, role := range map[int64]string{
		adminUser: "admin",
		submitter: "process_owner",
		deptHead:  "department_head",
		orgHead:   "organization_head",
	} {
		_, err := f.facade.AssignRole(ctx, principal, role, nil)
		require.NoError(t, err)
	}
}

func TestAssignRevokeOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/assignments", adminUser, assignmentPayload{PrincipalID: submitter, RoleName: "process_owner"})
	require.Equal(t, http.StatusCreated, rec.Code)
	asg := decode[assignments.Assignment](t, rec)
	require.True(t, asg.IsActive)
	require.Equal(t, adminUser, *asg.AssignedBy)

	// Duplicate active assignment conflicts.
	rec = f.do(t, http.MethodPost, "/api/v1/assignments", adminUser, assignmentPayload{PrincipalID: submitter, RoleName: "process_owner"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/principals/1/roles", adminUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[struct {
		Roles []string `json:"roles"`
	}](t, rec)
	require.Equal(t, []string{"process_owner"}, listing.Roles)

	rec = f.do(t, http.MethodDelete, "/api/v1/assignments", adminUser, assignmentPayload{PrincipalID: submitter, RoleName: "process_owner"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Second revoke of the same pair.
	rec = f.do(t, http.MethodDelete, "/api/v1/assignments", adminUser, assignmentPayload{PrincipalID: submitter, RoleName: "process_owner"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/assignments", adminUser, assignmentPayload{PrincipalID: submitter, RoleName: "ghost"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCanActUsesSeniority(t *testing.T) {
	f := newFixture(t)
	seedRoles(t, f)

	rec := f.do(t, http.MethodGet, "/api/v1/can-act?role=department_head&principal_id=3", orgHead, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		CanAct bool `json:"can_act"`
	}](t, rec)
	require.True(t, out.CanAct, "organization_head outranks department_head")

	// Defaults to the acting principal when principal_id is omitted.
	rec = f.do(t, http.MethodGet, "/api/v1/can-act?role=department_head", submitter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode[struct {
		CanAct bool `json:"can_act"`
	}](t, rec)
	require.False(t, out.CanAct)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	seedRoles(t, f)

	rec := f.do(t, http.MethodPost, "/api/v1/requests", submitter, submitPayload{
		OperationType: "clause_edit",
		Title:         "Update clause 4.2",
		Payload:       json.RawMessage(`{"clause":"4.2"}`),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	req := decode[approvals.ApprovalRequest](t, rec)
	require.Equal(t, approvals.StatusPending, req.Status)

	base := "/api/v1/requests/" + req.ID.String()

	// Submitter cannot take the department_head step.
	rec = f.do(t, http.MethodPost, base+"/decision", submitter, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/decision", deptHead, decidePayload{Decision: "APPROVED", Comments: "fine"})
	require.Equal(t, http.StatusOK, rec.Code)
	req = decode[approvals.ApprovalRequest](t, rec)
	require.Equal(t, approvals.StatusPending, req.Status)
	require.Equal(t, 1, req.ChainPosition)

	rec = f.do(t, http.MethodGet, "/api/v1/requests/pending?role=organization_head", orgHead, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[struct {
		Requests []approvals.ApprovalRequest `json:"requests"`
	}](t, rec)
	require.Len(t, queue.Requests, 1)

	rec = f.do(t, http.MethodPost, base+"/decision", orgHead, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusOK, rec.Code)
	req = decode[approvals.ApprovalRequest](t, rec)
	require.Equal(t, approvals.StatusApproved, req.Status)

	rec = f.do(t, http.MethodGet, base+"/steps", submitter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	steps := decode[struct {
		Steps []approvals.ApprovalStep `json:"steps"`
	}](t, rec)
	require.Len(t, steps.Steps, 2)

	// Terminal request rejects further decisions.
	rec = f.do(t, http.MethodPost, base+"/decision", adminUser, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecisionConflictRetriedAtHandler(t *testing.T) {
	f := newFixture(t)
	seedRoles(t, f)

	rec := f.do(t, http.MethodPost, "/api/v1/requests", submitter, submitPayload{OperationType: "clause_edit", Title: "t"})
	require.Equal(t, http.StatusCreated, rec.Code)
	req := decode[approvals.ApprovalRequest](t, rec)

	// Two competing commits, then success: within the retry budget.
	f.aprRepo.conflicts = 2
	rec = f.do(t, http.MethodPost, "/api/v1/requests/"+req.ID.String()+"/decision", deptHead, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Exhausting the budget surfaces a retryable 409.
	f.aprRepo.conflicts = maxConflictAttempts
	rec = f.do(t, http.MethodPost, "/api/v1/requests/"+req.ID.String()+"/decision", orgHead, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusConflict, rec.Code)
	problem := decode[map[string]any](t, rec)
	require.Equal(t, true, problem["retryable"])
	require.Equal(t, 0, f.aprRepo.conflicts, "handler consumed its full retry budget")
}

func TestDecisionValidation(t *testing.T) {
	f := newFixture(t)
	seedRoles(t, f)

	rec := f.do(t, http.MethodPost, "/api/v1/requests/"+uuid.NewString()+"/decision", deptHead, decidePayload{Decision: "MAYBE"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/requests/not-a-uuid/decision", deptHead, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/requests/"+uuid.NewString()+"/decision", deptHead, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/requests/"+uuid.NewString()+"/decision", 0, decidePayload{Decision: "APPROVED"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditTrailPagination(t *testing.T) {
	f := newFixture(t)
	seedRoles(t, f) // 4 role.assigned records

	rec := f.do(t, http.MethodGet, "/api/v1/audit?limit=3", adminUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Records    []audit.Record `json:"records"`
		NextCursor *audit.Cursor  `json:"next_cursor"`
	}](t, rec)
	require.Len(t, page.Records, 3)
	require.NotNil(t, page.NextCursor, "full page carries a resume cursor")

	cursor := page.NextCursor
	rec = f.do(t, http.MethodGet,
		"/api/v1/audit?limit=3&after_time="+cursor.OccurredAt.Format(time.RFC3339Nano)+"&after_id="+cursor.ID.String(),
		adminUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rest := decode[struct {
		Records []audit.Record `json:"records"`
	}](t, rec)
	require.Len(t, rest.Records, 1)
	seen := map[uuid.UUID]struct{}{}
	for _, r := range append(page.Records, rest.Records...) {
		seen[r.ID] = struct{}{}
	}
	require.Len(t, seen, 4, "pages do not overlap")

	// Kind filter.
	rec = f.do(t, http.MethodGet, "/api/v1/audit?kind=role.revoked", adminUser, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[struct {
		Records []audit.Record `json:"records"`
	}](t, rec)
	require.Empty(t, empty.Records)
}
