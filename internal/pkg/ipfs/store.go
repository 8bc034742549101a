// Package ipfs uploads and retrieves content-addressed payloads.
package ipfs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appcfg "github.com/paperchain/core/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Retrieve when the identifier cannot be resolved.
// Transport failures are reported as ErrNotFound wrapped with their cause.
var ErrNotFound = errors.New("content not found")

// Store is a content-addressed upload/retrieve primitive.
type Store interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
	UploadJSON(ctx context.Context, name string, v any) (string, error)
	Retrieve(ctx context.Context, cid string) ([]byte, error)
	Exists(ctx context.Context, cid string) bool
}

// New builds the store selected by cfg.Provider.
func New(cfg appcfg.IPFSConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "pinata":
		return NewPinata(cfg.Pinata, logger)
	case "s3":
		return NewS3Store(cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown ipfs provider: %s", cfg.Provider)
	}
}

func notFound(cause error) error {
	return fmt.Errorf("%w: %v", ErrNotFound, cause)
}
