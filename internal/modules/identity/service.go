// Package identity maps wallet addresses to user records.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/paperchain/core/internal/models"
	"github.com/paperchain/core/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const usernamePrefixLen = 8

type Resolver struct {
	repo   repository.Repository
	logger *zap.Logger

	hashOnce sync.Once
	hash     string
	hashErr  error
}

func NewResolver(repo repository.Repository, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns the user owning wallet, creating one on first sight.
func (r *Resolver) Resolve(ctx context.Context, wallet string) (*models.UserModel, error) {
	wallet = repository.NormalizeWallet(wallet)
	if wallet == "" {
		return nil, repository.ErrEmptyWallet
	}

	if u, err := r.repo.GetUserByWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("lookup wallet: %w", err)
	} else if u != nil {
		return u, nil
	}

	hash, err := r.placeholderHash()
	if err != nil {
		return nil, err
	}
	u, created, err := r.repo.FindOrCreateUserByWallet(ctx, wallet, models.UserModel{
		Username: Username(wallet),
		Password: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("create wallet user: %w", err)
	}
	if created {
		r.logger.Info("wallet user created",
			zap.Uint("user_id", u.ID),
			zap.String("username", u.Username),
			zap.String("wallet", wallet),
		)
	}
	return u, nil
}

// Lookup returns the user owning wallet or nil without creating one.
func (r *Resolver) Lookup(ctx context.Context, wallet string) (*models.UserModel, error) {
	wallet = repository.NormalizeWallet(wallet)
	if wallet == "" {
		return nil, repository.ErrEmptyWallet
	}
	return r.repo.GetUserByWallet(ctx, wallet)
}

func (r *Resolver) placeholderHash() (string, error) {
	r.hashOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte(models.AuthPlaceholder), bcrypt.DefaultCost)
		r.hash, r.hashErr = string(b), err
	})
	if r.hashErr != nil {
		return "", fmt.Errorf("hash credential placeholder: %w", r.hashErr)
	}
	return r.hash, nil
}

// Username derives the default username for a wallet: user_ followed by
// the first eight hex characters of the address.
func Username(wallet string) string {
	hexPart := strings.TrimPrefix(repository.NormalizeWallet(wallet), "0x")
	if len(hexPart) > usernamePrefixLen {
		hexPart = hexPart[:usernamePrefixLen]
	}
	return "user_" + hexPart
}
