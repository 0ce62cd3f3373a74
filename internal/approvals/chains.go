package approvals

import (
	"fmt"
	"sort"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/roles"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// ChainResolver computes the ordered approver roles still required for an
// operation given the submitter's own privilege level. Chains come from
// configuration; ambiguity between overlapping entries is resolved here, at
// load time, never at request time.
type ChainResolver struct {
	catalog *roles.Catalog
	chains  map[string][]string
}

// NewChainResolver validates the configured chains against the catalog.
func NewChainResolver(catalog *roles.Catalog, cfg roles.Config) (*ChainResolver, error) {
	chains := make(map[string][]string, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		if chain.Operation == "" {
			return nil, fmt.Errorf("approvals: chain entry without operation type")
		}
		if len(chain.Approvers) == 0 {
			return nil, fmt.Errorf("approvals: %s: %w", chain.Operation, shared.ErrEmptyChainMisconfigured)
		}
		for _, role := range chain.Approvers {
			if _, err := catalog.LevelOf(role); err != nil {
				return nil, fmt.Errorf("approvals: chain %s: %w", chain.Operation, err)
			}
		}
		existing, ok := chains[chain.Operation]
		if !ok {
			chains[chain.Operation] = chain.Approvers
			continue
		}
		winner, err := moreSpecific(catalog, existing, chain.Approvers)
		if err != nil {
			return nil, fmt.Errorf("approvals: chain %s: %w", chain.Operation, err)
		}
		chains[chain.Operation] = winner
	}
	return &ChainResolver{catalog: catalog, chains: chains}, nil
}

// moreSpecific picks between two configured chains for the same operation:
// the longer chain wins, ties broken by the higher maximum privilege level.
func moreSpecific(catalog *roles.Catalog, a, b []string) ([]string, error) {
	if len(a) != len(b) {
		if len(a) > len(b) {
			return a, nil
		}
		return b, nil
	}
	maxA, err := maxLevel(catalog, a)
	if err != nil {
		return nil, err
	}
	maxB, err := maxLevel(catalog, b)
	if err != nil {
		return nil, err
	}
	if maxA == maxB {
		return nil, fmt.Errorf("two equally specific chains configured")
	}
	if maxA > maxB {
		return a, nil
	}
	return b, nil
}

func maxLevel(catalog *roles.Catalog, chain []string) (int, error) {
	highest := 0
	for _, role := range chain {
		level, err := catalog.LevelOf(role)
		if err != nil {
			return 0, err
		}
		if level > highest {
			highest = level
		}
	}
	return highest, nil
}

// Known reports whether a chain is configured for the operation type.
func (r *ChainResolver) Known(operation string) bool {
	_, ok := r.chains[operation]
	return ok
}

// Operations lists the configured operation types, sorted.
func (r *ChainResolver) Operations() []string {
	out := make([]string, 0, len(r.chains))
	for op := range r.chains {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// FullChain returns the configured chain for the operation, unfiltered.
func (r *ChainResolver) FullChain(operation string) ([]string, error) {
	chain, ok := r.chains[operation]
	if !ok {
		return nil, fmt.Errorf("approvals: %s: %w", operation, shared.ErrUnknownOperationType)
	}
	out := make([]string, len(chain))
	copy(out, chain)
	return out, nil
}

// Resolve returns the roles that must still approve for a submitter at the
// given privilege level. Roles the submitter equals or exceeds are skipped;
// an empty result means the request auto-approves at creation.
func (r *ChainResolver) Resolve(operation string, submitterLevel int) ([]string, error) {
	full, err := r.FullChain(operation)
	if err != nil {
		return nil, err
	}
	required := make([]string, 0, len(full))
	for _, role := range full {
		level, err := r.catalog.LevelOf(role)
		if err != nil {
			return nil, err
		}
		if level <= submitterLevel {
			continue
		}
		required = append(required, role)
	}
	return required, nil
}
