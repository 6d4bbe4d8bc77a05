// Package retention deletes jobs, files and artifacts older than the
// configured retention window.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyscribe/polyscribe/internal/core/event"
	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/core/storage"
)

// Store is the metadata surface the sweeper needs. Listing is split from
// deletion so blobs can be removed while their paths are still recorded.
type Store interface {
	ListArtifactsCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Artifact, error)
	ListFilesUpdatedBefore(ctx context.Context, cutoff time.Time) ([]model.JobFile, error)
	DeleteArtifacts(ctx context.Context, ids []string) error
	DeleteFiles(ctx context.Context, ids []string) error
	DeleteJobsUpdatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Sweeper struct {
	store         Store
	blobs         storage.BlobStore
	bus           event.Bus
	retentionDays int
	now           func() time.Time
}

func NewSweeper(store Store, blobs storage.BlobStore, bus event.Bus, retentionDays int) *Sweeper {
	return &Sweeper{
		store:         store,
		blobs:         blobs,
		bus:           bus,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Sweep removes everything strictly older than now minus the retention
// window. Blobs go first while metadata still records their paths; a crash
// mid-sweep then leaves only harmless dangling rows for the next run.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	blobsDeleted := 0

	artifacts, err := s.store.ListArtifactsCreatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list expired artifacts: %w", err)
	}
	artifactIDs := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := s.blobs.Delete(ctx, a.StoragePath); err != nil {
			return fmt.Errorf("delete artifact blob %s: %w", a.StoragePath, err)
		}
		blobsDeleted++
		artifactIDs = append(artifactIDs, a.ID)
	}
	if len(artifactIDs) > 0 {
		if err := s.store.DeleteArtifacts(ctx, artifactIDs); err != nil {
			return fmt.Errorf("delete artifact rows: %w", err)
		}
	}

	files, err := s.store.ListFilesUpdatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list expired files: %w", err)
	}
	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		// Only uploads own their input blob; URL-sourced inputs were never
		// stored locally.
		if f.InputSource == "upload" && f.StoragePath != "" {
			if err := s.blobs.Delete(ctx, f.StoragePath); err != nil {
				return fmt.Errorf("delete upload blob %s: %w", f.StoragePath, err)
			}
			blobsDeleted++
		}
		fileIDs = append(fileIDs, f.ID)
	}
	if len(fileIDs) > 0 {
		if err := s.store.DeleteFiles(ctx, fileIDs); err != nil {
			return fmt.Errorf("delete file rows: %w", err)
		}
	}

	jobsDeleted, err := s.store.DeleteJobsUpdatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired jobs: %w", err)
	}

	if jobsDeleted > 0 || blobsDeleted > 0 {
		log.Info().
			Time("cutoff", cutoff).
			Int("jobs", jobsDeleted).
			Int("blobs", blobsDeleted).
			Msg("retention sweep removed expired data")
	}
	_ = s.bus.Publish(ctx, event.Event{
		Type: event.EventRetentionSwept,
		Payload: event.RetentionEvent{
			Cutoff:       cutoff,
			JobsDeleted:  jobsDeleted,
			BlobsDeleted: blobsDeleted,
		},
	})
	return nil
}

// Run sweeps on a fixed interval until the context is cancelled. One sweep
// runs immediately at startup.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	log.Info().
		Dur("interval", interval).
		Int("retention_days", s.retentionDays).
		Msg("retention sweeper started")

	if err := s.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("retention sweep failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("retention sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}
