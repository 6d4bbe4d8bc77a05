package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/polyscribe/polyscribe/internal/api/response"
	"github.com/polyscribe/polyscribe/internal/core/job"
	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/core/storage"
	"github.com/polyscribe/polyscribe/internal/database"
)

// ArtifactReader resolves artifact rows for downloads.
type ArtifactReader interface {
	GetArtifact(ctx context.Context, artifactID string) (*model.Artifact, error)
	GetBundleArtifact(ctx context.Context, jobID string) (*model.Artifact, error)
}

// UploadsHandler serves the multipart submission route and blob downloads.
// These bypass huma: multipart streaming and raw file responses fit plain
// echo better than schema-driven operations.
type UploadsHandler struct {
	svc         *job.Service
	artifacts   ArtifactReader
	blobs       storage.BlobStore
	maxUploadMB int
}

func NewUploadsHandler(svc *job.Service, artifacts ArtifactReader, blobs storage.BlobStore, maxUploadMB int) *UploadsHandler {
	return &UploadsHandler{svc: svc, artifacts: artifacts, blobs: blobs, maxUploadMB: maxUploadMB}
}

func formBool(c echo.Context, name string, fallback bool) bool {
	raw := c.FormValue(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func splitFormats(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CreateJob accepts a multipart submission: one or more audio files plus the
// provider/model/option form fields.
func (h *UploadsHandler) CreateJob(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := c.MultipartForm()
	if err != nil {
		return response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "multipart form required")
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "at least one file is required")
	}

	providerName := c.FormValue("provider")
	modelName := c.FormValue("model")
	if providerName == "" || modelName == "" {
		return response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "provider and model are required")
	}

	var targetLanguage *string
	if raw := c.FormValue("target_language"); raw != "" {
		targetLanguage = &raw
	}
	speakerCount := 0
	if raw := c.FormValue("speaker_count"); raw != "" {
		speakerCount, err = strconv.Atoi(raw)
		if err != nil || speakerCount < 0 {
			return response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "speaker_count must be a non-negative integer")
		}
	}

	req := job.CreateRequest{
		Provider:             providerName,
		Model:                modelName,
		SourceLanguage:       c.FormValue("source_language"),
		TargetLanguage:       targetLanguage,
		TranslationEnabled:   formBool(c, "translation_enabled", true),
		Formats:              splitFormats(c.FormValue("formats")),
		DiarizationEnabled:   formBool(c, "diarization_enabled", false),
		SpeakerCount:         speakerCount,
		TimestampGranularity: c.FormValue("timestamp_granularity"),
		VerboseOutput:        formBool(c, "verbose_output", false),
		SyncPreferred:        formBool(c, "sync_preferred", true),
	}

	maxBytes := int64(h.maxUploadMB) * 1024 * 1024
	batchID := uuid.NewString()
	inputs := make([]job.Input, 0, len(uploads))
	for _, upload := range uploads {
		if maxBytes > 0 && upload.Size > maxBytes {
			return response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("%s exceeds the %d MB upload limit", upload.Filename, h.maxUploadMB))
		}
		src, err := upload.Open()
		if err != nil {
			return response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "could not read upload")
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "could not read upload")
		}

		name := upload.Filename
		if name == "" {
			name = "upload.bin"
		}
		path := storage.UploadPath(batchID, uuid.NewString(), name)
		contentType := upload.Header.Get("Content-Type")
		if err := h.blobs.Put(ctx, path, data, contentType); err != nil {
			return response.Error(c, http.StatusInternalServerError, "STORAGE_ERROR", "could not store upload")
		}
		inputs = append(inputs, job.Input{
			Name:        name,
			Source:      "upload",
			SizeBytes:   int64(len(data)),
			StoragePath: path,
		})
	}

	created, err := h.svc.Create(ctx, req, inputs)
	if err != nil {
		return response.Error(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	}
	return response.Success(c, http.StatusCreated, map[string]string{
		"id":     created.ID,
		"status": string(created.Status),
	})
}

// DownloadArtifact streams one artifact's bytes with its recorded mime type.
func (h *UploadsHandler) DownloadArtifact(c echo.Context) error {
	ctx := c.Request().Context()
	artifact, err := h.artifacts.GetArtifact(ctx, c.Param("artifactId"))
	if errors.Is(err, database.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "NOT_FOUND", "artifact not found")
	}
	if err != nil {
		return response.Error(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
	}
	if artifact.JobID != c.Param("id") {
		return response.Error(c, http.StatusNotFound, "NOT_FOUND", "artifact not found")
	}
	return h.serveArtifact(c, artifact)
}

// DownloadBundle streams the job's bundle archive.
func (h *UploadsHandler) DownloadBundle(c echo.Context) error {
	ctx := c.Request().Context()
	artifact, err := h.artifacts.GetBundleArtifact(ctx, c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "NOT_FOUND", "bundle is not available yet")
	}
	if err != nil {
		return response.Error(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
	}
	return h.serveArtifact(c, artifact)
}

func (h *UploadsHandler) serveArtifact(c echo.Context, artifact *model.Artifact) error {
	data, err := h.blobs.Get(c.Request().Context(), artifact.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "NOT_FOUND", "artifact data has been removed")
	}
	if err != nil {
		return response.Error(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	return c.Blob(http.StatusOK, artifact.MimeType, data)
}
