// Package bundle packages a job's artifacts plus a manifest into one zip
// archive.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/core/storage"
)

// ManifestName is the fixed archive entry name for the job manifest.
const ManifestName = "job_manifest.json"

// Manifest describes the bundle contents. Artifacts lists every non-bundle
// artifact name recorded for the job, including any whose blob had already
// gone missing by bundling time.
type Manifest struct {
	JobID          string    `json:"job_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	ProcessedFiles int       `json:"processed_files"`
	FailedFiles    int       `json:"failed_files"`
	Artifacts      []string  `json:"artifacts"`
}

// Build assembles the zip archive for one job. Artifact display names become
// the archive entry names in a flat namespace. Artifacts whose blob is
// missing are skipped so a partially swept job still yields a usable bundle.
func Build(ctx context.Context, blobs storage.BlobStore, manifest Manifest, artifacts []model.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	entry, err := zw.Create(ManifestName)
	if err != nil {
		return nil, fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err := entry.Write(manifestJSON); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	for _, artifact := range artifacts {
		if artifact.Kind == model.KindBundle {
			continue
		}
		data, err := blobs.Get(ctx, artifact.StoragePath)
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().
				Str("job_id", manifest.JobID).
				Str("artifact", artifact.Name).
				Msg("artifact object missing, skipping bundle entry")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch artifact %s: %w", artifact.Name, err)
		}
		entry, err := zw.Create(artifact.Name)
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", artifact.Name, err)
		}
		if _, err := entry.Write(data); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", artifact.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
