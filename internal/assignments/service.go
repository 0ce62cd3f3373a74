package assignments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/roles"
)

// AuditPort records assignment events; never fails the caller.
type AuditPort interface {
	Record(ctx context.Context, rec audit.Record)
}

// Service owns role assignments. It is the single place that derives a
// principal's privilege level; no other component re-implements the
// comparison.
type Service struct {
	catalog *roles.Catalog
	repo    RepositoryPort
	cache   *RoleCache
	audit   AuditPort
	logger  *slog.Logger
}

// NewService constructs the assignment service. cache may be nil.
func NewService(catalog *roles.Catalog, repo RepositoryPort, cache *RoleCache, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{catalog: catalog, repo: repo, cache: cache, audit: auditor, logger: logger}
}

// Assign creates an active assignment for (principal, role). assignedBy is
// nil for system-performed assignments.
func (s *Service) Assign(ctx context.Context, principalID int64, roleName string, assignedBy *int64) (Assignment, error) {
	if _, err := s.catalog.Get(roleName); err != nil {
		return Assignment{}, err
	}
	asg, err := s.repo.Insert(ctx, Assignment{PrincipalID: principalID, RoleName: roleName, AssignedBy: assignedBy})
	if err != nil {
		return Assignment{}, err
	}
	s.cache.Invalidate(ctx, principalID)
	actor := principalID
	if assignedBy != nil {
		actor = *assignedBy
	}
	s.audit.Record(ctx, audit.Record{
		Kind:     audit.KindRoleAssigned,
		ActorID:  actor,
		TargetID: principalTarget(principalID),
		Summary: map[string]any{
			"role":   roleName,
			"before": "inactive",
			"after":  "active",
		},
	})
	return asg, nil
}

// Revoke deactivates the active assignment for (principal, role). A second
// revoke of the same pair returns shared.ErrNotFound.
func (s *Service) Revoke(ctx context.Context, principalID int64, roleName string, revokedBy int64) error {
	if _, err := s.catalog.Get(roleName); err != nil {
		return err
	}
	if _, err := s.repo.Deactivate(ctx, principalID, roleName); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, principalID)
	s.audit.Record(ctx, audit.Record{
		Kind:     audit.KindRoleRevoked,
		ActorID:  revokedBy,
		TargetID: principalTarget(principalID),
		Summary: map[string]any{
			"role":   roleName,
			"before": "active",
			"after":  "inactive",
		},
	})
	return nil
}

// ActiveRoles returns the set of role names the principal currently holds.
func (s *Service) ActiveRoles(ctx context.Context, principalID int64) ([]string, error) {
	if names, ok := s.cache.Get(ctx, principalID); ok {
		return names, nil
	}
	names, err := s.repo.ActiveByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, principalID, names)
	return names, nil
}

// HighestLevel returns the maximum privilege level among the principal's
// active roles. The second return is false when no role is held.
func (s *Service) HighestLevel(ctx context.Context, principalID int64) (int, bool, error) {
	names, err := s.ActiveRoles(ctx, principalID)
	if err != nil {
		return 0, false, err
	}
	highest := 0
	for _, name := range names {
		level, err := s.catalog.LevelOf(name)
		if err != nil {
			return 0, false, fmt.Errorf("assignments: stored role not in catalog: %w", err)
		}
		if level > highest {
			highest = level
		}
	}
	return highest, highest > 0, nil
}

func principalTarget(principalID int64) string {
	return "principal:" + strconv.FormatInt(principalID, 10)
}
