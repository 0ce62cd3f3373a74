package roles

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// Catalog holds the known roles and their total order. It is built once at
// startup and injected wherever privilege comparisons happen; after
// construction it is read-only and safe for concurrent use.
type Catalog struct {
	byName  map[string]Role
	byLevel map[int]string
	ordered []Role
}

// NewCatalog builds a catalog from the given roles.
func NewCatalog(list []Role) (*Catalog, error) {
	c := &Catalog{
		byName:  make(map[string]Role, len(list)),
		byLevel: make(map[int]string, len(list)),
	}
	for _, role := range list {
		if err := c.register(role); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) register(role Role) error {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return fmt.Errorf("roles: name required")
	}
	if role.Level <= 0 {
		return fmt.Errorf("roles: %s: privilege level must be positive", role.Name)
	}
	if _, ok := c.byName[role.Name]; ok {
		return fmt.Errorf("roles: %s: %w", role.Name, shared.ErrDuplicateRole)
	}
	if taken, ok := c.byLevel[role.Level]; ok {
		return fmt.Errorf("roles: %s and %s both at level %d: %w", taken, role.Name, role.Level, shared.ErrDuplicateLevel)
	}
	if role.Label == "" {
		role.Label = defaultLabel(role.Name)
	}
	c.byName[role.Name] = role
	c.byLevel[role.Level] = role.Name
	c.ordered = append(c.ordered, role)
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.ordered[i].Level < c.ordered[j].Level
	})
	return nil
}

// Get returns the role by name.
func (c *Catalog) Get(name string) (Role, error) {
	role, ok := c.byName[name]
	if !ok {
		return Role{}, fmt.Errorf("roles: %s: %w", name, shared.ErrUnknownRole)
	}
	return role, nil
}

// LevelOf returns the privilege level of the named role.
func (c *Catalog) LevelOf(name string) (int, error) {
	role, err := c.Get(name)
	if err != nil {
		return 0, err
	}
	return role.Level, nil
}

// Compare orders role a against role b by privilege level.
func (c *Catalog) Compare(a, b string) (Ordering, error) {
	la, err := c.LevelOf(a)
	if err != nil {
		return Equal, err
	}
	lb, err := c.LevelOf(b)
	if err != nil {
		return Equal, err
	}
	switch {
	case la < lb:
		return Lower, nil
	case la > lb:
		return Higher, nil
	default:
		return Equal, nil
	}
}

// Ordered returns all roles ascending by privilege level.
func (c *Catalog) Ordered() []Role {
	out := make([]Role, len(c.ordered))
	copy(out, c.ordered)
	return out
}

var labelCaser = cases.Title(language.English)

func defaultLabel(name string) string {
	return labelCaser.String(strings.ReplaceAll(name, "_", " "))
}
