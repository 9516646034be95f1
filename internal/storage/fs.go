package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FSStore keeps artifacts on the local filesystem under a root directory.
type FSStore struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root, baseURL string, logger *zap.Logger) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &FSStore{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Upload writes the object at path, overwriting any previous content.
func (s *FSStore) Upload(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validatePath(path); err != nil {
		return err
	}

	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	s.logger.Debug("artifact stored", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// PublicURL returns the stable URL under which the artifact is served.
func (s *FSStore) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// Root exposes the storage root so the HTTP layer can serve artifacts.
func (s *FSStore) Root() string { return s.root }

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("artifact path cannot be empty")
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	if strings.HasPrefix(clean, "..") || strings.HasPrefix(clean, "/") {
		return fmt.Errorf("artifact path %q escapes the storage root", path)
	}
	return nil
}
