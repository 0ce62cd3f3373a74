package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/roles"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// AssignmentsPort resolves privilege levels. The assignment service is the
// only implementation; nothing here re-derives levels from raw assignments.
type AssignmentsPort interface {
	HighestLevel(ctx context.Context, principalID int64) (int, bool, error)
}

// AuditPort records lifecycle events; never fails the caller.
type AuditPort interface {
	Record(ctx context.Context, rec audit.Record)
}

// Service owns the approval request state machine. It is the only code path
// that mutates request status and chain position.
type Service struct {
	catalog     *roles.Catalog
	resolver    *ChainResolver
	repo        RepositoryPort
	assignments AssignmentsPort
	audit       AuditPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the approval service.
func NewService(catalog *roles.Catalog, resolver *ChainResolver, repo RepositoryPort, assignments AssignmentsPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{
		catalog:     catalog,
		resolver:    resolver,
		repo:        repo,
		assignments: assignments,
		audit:       auditor,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput describes a new approval request.
type SubmitInput struct {
	OperationType string
	Title         string
	Payload       []byte
	SubmitterID   int64
}

// Submit creates a request with its chain frozen at submission time. A
// submitter who already outranks every configured approver gets an
// immediately APPROVED request with zero steps.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (ApprovalRequest, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ApprovalRequest{}, fmt.Errorf("approvals: title required")
	}

	level := 0
	if input.SubmitterID != 0 {
		highest, ok, err := s.assignments.HighestLevel(ctx, input.SubmitterID)
		if err != nil {
			return ApprovalRequest{}, err
		}
		if ok {
			level = highest
		}
	}

	chain, err := s.resolver.Resolve(input.OperationType, level)
	if err != nil {
		return ApprovalRequest{}, err
	}

	now := s.now()
	req := ApprovalRequest{
		ID:            uuid.New(),
		OperationType: input.OperationType,
		Title:         title,
		Payload:       input.Payload,
		SubmitterID:   input.SubmitterID,
		Status:        StatusPending,
		RequiredChain: chain,
		ChainPosition: 0,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	kind := audit.KindRequestSubmitted
	if len(chain) == 0 {
		req.Status = StatusApproved
		kind = audit.KindRequestAutoApproved
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return ApprovalRequest{}, err
	}
	s.audit.Record(ctx, audit.Record{
		Kind:     kind,
		ActorID:  input.SubmitterID,
		TargetID: requestTarget(req.ID),
		Summary: map[string]any{
			"operation":       input.OperationType,
			"required_chain":  req.RequiredChain,
			"submitter_level": level,
			"status":          string(req.Status),
		},
	})
	return req, nil
}

// Decide records one step on a pending request. A decider may act for the
// current chain role when their own highest level equals or exceeds it.
// Every mutation is guarded by the request version; losing the race yields
// shared.ErrConflict and the caller re-reads and retries.
func (s *Service) Decide(ctx context.Context, requestID uuid.UUID, deciderID int64, decision Decision, comments string) (ApprovalRequest, error) {
	if !decision.Valid() {
		return ApprovalRequest{}, fmt.Errorf("approvals: decision %q is not APPROVED or REJECTED", decision)
	}

	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return ApprovalRequest{}, err
	}
	if req.Status.Terminal() {
		return ApprovalRequest{}, fmt.Errorf("approvals: request %s is %s: %w", requestID, req.Status, shared.ErrNotPending)
	}
	role, ok := req.CurrentRole()
	if !ok {
		return ApprovalRequest{}, fmt.Errorf("approvals: request %s has no current role: %w", requestID, shared.ErrNotPending)
	}

	requiredLevel, err := s.catalog.LevelOf(role)
	if err != nil {
		return ApprovalRequest{}, err
	}
	deciderLevel, holds, err := s.assignments.HighestLevel(ctx, deciderID)
	if err != nil {
		return ApprovalRequest{}, err
	}
	if !holds || deciderLevel < requiredLevel {
		return ApprovalRequest{}, fmt.Errorf("approvals: decider %d cannot act for %s: %w", deciderID, role, shared.ErrUnauthorized)
	}

	now := s.now()
	step := ApprovalStep{
		RequestID: requestID,
		RoleName:  role,
		DeciderID: deciderID,
		Decision:  decision,
		Comments:  comments,
		DecidedAt: now,
	}

	req.UpdatedAt = now
	kind := audit.KindStepApproved
	if decision == DecisionRejected {
		req.Status = StatusRejected
		kind = audit.KindStepRejected
	} else {
		req.ChainPosition++
		if req.ChainPosition == len(req.RequiredChain) {
			req.Status = StatusApproved
		}
	}

	updated, err := s.repo.Decide(ctx, req, step)
	if err != nil {
		return ApprovalRequest{}, err
	}
	s.audit.Record(ctx, audit.Record{
		Kind:     kind,
		ActorID:  deciderID,
		TargetID: requestTarget(requestID),
		Summary: map[string]any{
			"role":     role,
			"decision": string(decision),
			"before":   string(StatusPending),
			"after":    string(updated.Status),
			"position": updated.ChainPosition,
		},
	})
	return updated, nil
}

// Steps lists a request's recorded decisions, oldest first.
func (s *Service) Steps(ctx context.Context, requestID uuid.UUID) ([]ApprovalStep, error) {
	return s.repo.Steps(ctx, requestID)
}

// Get loads a single request.
func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (ApprovalRequest, error) {
	return s.repo.Get(ctx, requestID)
}

// ListPendingByRole lists pending requests currently waiting on the role.
func (s *Service) ListPendingByRole(ctx context.Context, roleName string) ([]ApprovalRequest, error) {
	if _, err := s.catalog.LevelOf(roleName); err != nil {
		return nil, err
	}
	return s.repo.ListPendingByRoles(ctx, []string{roleName})
}

// ListPendingFor lists pending requests the principal is entitled to decide:
// those whose current chain role sits at or below the principal's own
// highest level.
func (s *Service) ListPendingFor(ctx context.Context, principalID int64) ([]ApprovalRequest, error) {
	highest, ok, err := s.assignments.HighestLevel(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var actable []string
	for _, role := range s.catalog.Ordered() {
		if role.Level <= highest {
			actable = append(actable, role.Name)
		}
	}
	return s.repo.ListPendingByRoles(ctx, actable)
}

func requestTarget(id uuid.UUID) string {
	return "request:" + id.String()
}
