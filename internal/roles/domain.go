package roles

// Role is an immutable catalog entry. Privilege levels are positive and
// unique across the catalog, so they define a total order.
type Role struct {
	Name  string
	Level int
	Label string
}

// Ordering is the result of comparing two roles by privilege level.
type Ordering int

// Comparison outcomes for Catalog.Compare.
const (
	Lower  Ordering = -1
	Equal  Ordering = 0
	Higher Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Lower:
		return "LOWER"
	case Higher:
		return "HIGHER"
	default:
		return "EQUAL"
	}
}
