package user

import (
	"context"
	"fmt"

	"github.com/paperchain/core/internal/models"
	"github.com/paperchain/core/internal/modules/identity"
	"github.com/paperchain/core/internal/repository"
)

type Service struct {
	repo       repository.Repository
	identities *identity.Resolver
}

func NewService(repo repository.Repository, identities *identity.Resolver) *Service {
	return &Service{repo: repo, identities: identities}
}

// GetByWallet returns the user owning wallet, or nil when none exists.
func (s *Service) GetByWallet(ctx context.Context, wallet string) (*models.UserModel, error) {
	return s.identities.Lookup(ctx, wallet)
}

// Tokens returns the ledger of the user owning wallet, newest first.
func (s *Service) Tokens(ctx context.Context, wallet string) (*models.UserModel, []models.TokenModel, error) {
	u, err := s.identities.Lookup(ctx, wallet)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, errUserNotFound
	}
	entries, err := s.repo.GetUserTokens(ctx, u.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tokens: %w", err)
	}
	return u, entries, nil
}
