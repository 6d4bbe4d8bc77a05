// Package storage provides content-addressed blob access for uploads,
// rendered artifacts and bundles.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no blob exists at the path.
var ErrNotFound = errors.New("blob not found")

// BlobStore is the blob storage collaborator. Content at a path is never
// mutated after creation.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Hierarchical path layout shared by writers and the retention sweeper.

func UploadPath(jobID, fileID, name string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", jobID, fileID, name)
}

func ArtifactPath(jobID, fileID, name string) string {
	return fmt.Sprintf("artifacts/%s/%s/%s", jobID, fileID, name)
}

func BundlePath(jobID string) string {
	return fmt.Sprintf("bundles/%s.zip", jobID)
}
