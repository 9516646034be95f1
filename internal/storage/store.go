// Package storage provides the artifact store capability: durable,
// path-addressable binary storage with idempotent overwrite-upload and
// stable public URLs.
package storage

import "context"

// ArtifactStore is the capability consumed by the verification pipeline.
// Upload overwrites any existing object at the same path; PublicURL is
// stable once issued and carries no expiry.
type ArtifactStore interface {
	Upload(ctx context.Context, path string, data []byte) error
	PublicURL(path string) string
}
