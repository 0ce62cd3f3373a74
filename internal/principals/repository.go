package principals

import "context"

// RepositoryPort describes persistence operations used by Service.
type RepositoryPort interface {
	FindByEmail(ctx context.Context, email string) (Principal, error)
	FindByID(ctx context.Context, id int64) (Principal, error)
}
