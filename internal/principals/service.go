package principals

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// Service wraps authentication rules for local principal accounts.
type Service struct {
	repo   RepositoryPort
	tokens *TokenStore
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, tokens *TokenStore) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Login validates credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, Principal, error) {
	p, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", Principal{}, shared.ErrInvalidCredentials
	}
	if !p.IsActive {
		return "", Principal{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return "", Principal{}, shared.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(ctx, p.ID)
	if err != nil {
		return "", Principal{}, err
	}
	return token, p, nil
}

// Logout revokes the token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve maps a bearer token to its active principal.
func (s *Service) Resolve(ctx context.Context, token string) (Principal, error) {
	id, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return Principal{}, err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Principal{}, fmt.Errorf("principals: resolve: %w", err)
	}
	if !p.IsActive {
		return Principal{}, shared.ErrInvalidCredentials
	}
	return p, nil
}
