package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polyscribe/polyscribe/internal/core/event"
	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/core/storage"
)

type memStore struct {
	artifacts []model.Artifact
	files     []model.JobFile
	jobs      []model.Job

	deletedArtifactIDs []string
	deletedFileIDs     []string

	// deleteOrder records the call sequence so blob-before-row ordering can
	// be asserted from the outside.
	deleteOrder *[]string
}

func (s *memStore) ListArtifactsCreatedBefore(_ context.Context, cutoff time.Time) ([]model.Artifact, error) {
	var out []model.Artifact
	for _, a := range s.artifacts {
		if a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ListFilesUpdatedBefore(_ context.Context, cutoff time.Time) ([]model.JobFile, error) {
	var out []model.JobFile
	for _, f := range s.files {
		if f.UpdatedAt.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memStore) DeleteArtifacts(_ context.Context, ids []string) error {
	s.deletedArtifactIDs = append(s.deletedArtifactIDs, ids...)
	if s.deleteOrder != nil {
		*s.deleteOrder = append(*s.deleteOrder, "artifact-rows")
	}
	return nil
}

func (s *memStore) DeleteFiles(_ context.Context, ids []string) error {
	s.deletedFileIDs = append(s.deletedFileIDs, ids...)
	return nil
}

func (s *memStore) DeleteJobsUpdatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, j := range s.jobs {
		if j.UpdatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

type orderedBlobs struct {
	storage.BlobStore
	deleteOrder *[]string
}

func (b orderedBlobs) Delete(ctx context.Context, path string) error {
	*b.deleteOrder = append(*b.deleteOrder, "blob")
	return b.BlobStore.Delete(ctx, path)
}

func sweeperAt(store *memStore, blobs storage.BlobStore, days int, now time.Time) *Sweeper {
	s := NewSweeper(store, blobs, event.NewBus(), days)
	s.now = func() time.Time { return now }
	return s
}

func TestSweepDeletesOnlyStrictlyOlderThanCutoff(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, 0, -30)

	blobs := storage.NewLocalStore(t.TempDir())
	oldPath := storage.ArtifactPath("j-old", "f1", "a__source.txt")
	freshPath := storage.ArtifactPath("j-new", "f1", "b__source.txt")
	boundaryPath := storage.ArtifactPath("j-edge", "f1", "c__source.txt")
	for _, p := range []string{oldPath, freshPath, boundaryPath} {
		if err := blobs.Put(ctx, p, []byte("x"), "text/plain"); err != nil {
			t.Fatal(err)
		}
	}

	store := &memStore{
		artifacts: []model.Artifact{
			{ID: "a-old", StoragePath: oldPath, CreatedAt: cutoff.Add(-time.Second)},
			{ID: "a-new", StoragePath: freshPath, CreatedAt: cutoff.Add(time.Second)},
			// Exactly at the cutoff instant: retained, deletion is
			// strictly-before.
			{ID: "a-edge", StoragePath: boundaryPath, CreatedAt: cutoff},
		},
		jobs: []model.Job{
			{ID: "j-old", UpdatedAt: cutoff.Add(-time.Hour)},
			{ID: "j-new", UpdatedAt: now},
		},
	}

	if err := sweeperAt(store, blobs, 30, now).Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(store.deletedArtifactIDs) != 1 || store.deletedArtifactIDs[0] != "a-old" {
		t.Errorf("deleted artifact ids = %v, want [a-old]", store.deletedArtifactIDs)
	}
	if _, err := blobs.Get(ctx, oldPath); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("old blob should be gone, got %v", err)
	}
	for _, p := range []string{freshPath, boundaryPath} {
		if _, err := blobs.Get(ctx, p); err != nil {
			t.Errorf("retained blob %s missing: %v", p, err)
		}
	}
}

func TestSweepDeletesBlobsBeforeMetadataRows(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	var order []string

	local := storage.NewLocalStore(t.TempDir())
	path := storage.ArtifactPath("j1", "f1", "a__source.txt")
	if err := local.Put(ctx, path, []byte("x"), "text/plain"); err != nil {
		t.Fatal(err)
	}

	store := &memStore{
		artifacts:   []model.Artifact{{ID: "a1", StoragePath: path, CreatedAt: now.AddDate(0, 0, -60)}},
		deleteOrder: &order,
	}
	blobs := orderedBlobs{BlobStore: local, deleteOrder: &order}

	if err := sweeperAt(store, blobs, 30, now).Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(order) != 2 || order[0] != "blob" || order[1] != "artifact-rows" {
		t.Errorf("delete order = %v, want blob before artifact-rows", order)
	}
}

func TestSweepRemovesUploadBlobsOnlyForUploadSource(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	old := now.AddDate(0, 0, -45)

	blobs := storage.NewLocalStore(t.TempDir())
	uploadPath := storage.UploadPath("j1", "f1", "a.wav")
	if err := blobs.Put(ctx, uploadPath, []byte("audio"), "audio/wav"); err != nil {
		t.Fatal(err)
	}

	store := &memStore{
		files: []model.JobFile{
			{ID: "f1", InputSource: "upload", StoragePath: uploadPath, UpdatedAt: old},
			{ID: "f2", InputSource: "url", StoragePath: "", UpdatedAt: old},
		},
	}

	if err := sweeperAt(store, blobs, 30, now).Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if _, err := blobs.Get(ctx, uploadPath); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("upload blob should be deleted, got %v", err)
	}
	if len(store.deletedFileIDs) != 2 {
		t.Errorf("deleted file ids = %v, want both rows gone", store.deletedFileIDs)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	blobs := storage.NewLocalStore(t.TempDir())
	store := &memStore{
		artifacts: []model.Artifact{
			// Row survived a crash after its blob was already removed.
			{ID: "a1", StoragePath: storage.ArtifactPath("j1", "f1", "gone.txt"), CreatedAt: now.AddDate(0, 0, -90)},
		},
	}

	sweeper := sweeperAt(store, blobs, 30, now)
	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
}
