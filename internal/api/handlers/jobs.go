package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/polyscribe/polyscribe/internal/core/job"
	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/database"
)

type JobsHandler struct {
	svc   *job.Service
	store job.Store
}

func NewJobsHandler(svc *job.Service, store job.Store) *JobsHandler {
	return &JobsHandler{svc: svc, store: store}
}

// --- DTO types ---

type ConditionDTO struct {
	Code    string `json:"code" doc:"Stable machine-readable code"`
	Message string `json:"message" doc:"Human-readable description"`
}

type ResultDTO struct {
	ProcessedFiles int `json:"processed_files" doc:"Files completed successfully"`
	FailedFiles    int `json:"failed_files" doc:"Files that failed"`
}

type FileDTO struct {
	ID               string        `json:"id"`
	Name             string        `json:"name" doc:"Original input file name"`
	Source           string        `json:"source" doc:"Input origin: upload or url"`
	SizeBytes        int64         `json:"size_bytes"`
	Status           string        `json:"status"`
	DetectedLanguage *string       `json:"detected_language"`
	Warning          *ConditionDTO `json:"warning"`
	Error            *ConditionDTO `json:"error"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type JobDTO struct {
	ID                 string        `json:"id"`
	Status             string        `json:"status"`
	Provider           string        `json:"provider"`
	Model              string        `json:"model"`
	SourceLanguage     string        `json:"source_language"`
	TargetLanguage     *string       `json:"target_language"`
	TranslationEnabled bool          `json:"translation_enabled"`
	Formats            []string      `json:"formats"`
	DiarizationEnabled bool          `json:"diarization_enabled"`
	SpeakerCount       int           `json:"speaker_count,omitempty"`
	Warning            *ConditionDTO `json:"warning"`
	Error              *ConditionDTO `json:"error"`
	Result             *ResultDTO    `json:"result"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	Files              []FileDTO     `json:"files"`
}

type ArtifactDTO struct {
	ID        string    `json:"id"`
	FileID    *string   `json:"file_id" doc:"Owning file; null for the bundle"`
	Format    string    `json:"format"`
	Variant   *string   `json:"variant" doc:"source or translated; null for combined outputs"`
	Name      string    `json:"name" doc:"Display and download file name"`
	MimeType  string    `json:"mime_type"`
	Kind      string    `json:"kind"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func conditionDTO(cond *model.Condition) *ConditionDTO {
	if cond == nil {
		return nil
	}
	return &ConditionDTO{Code: cond.Code, Message: cond.Message}
}

func fileDTO(file model.JobFile) FileDTO {
	return FileDTO{
		ID:               file.ID,
		Name:             file.InputName,
		Source:           file.InputSource,
		SizeBytes:        file.SizeBytes,
		Status:           string(file.Status),
		DetectedLanguage: file.DetectedLanguage,
		Warning:          conditionDTO(file.Warning),
		Error:            conditionDTO(file.Error),
		CreatedAt:        file.CreatedAt,
		UpdatedAt:        file.UpdatedAt,
	}
}

func (h *JobsHandler) jobDTO(ctx context.Context, j *model.Job) (JobDTO, error) {
	files, err := h.store.ListJobFiles(ctx, j.ID)
	if err != nil {
		return JobDTO{}, err
	}
	dto := JobDTO{
		ID:                 j.ID,
		Status:             string(j.Status),
		Provider:           j.Provider,
		Model:              j.Model,
		SourceLanguage:     j.SourceLanguage,
		TargetLanguage:     j.TargetLanguage,
		TranslationEnabled: j.TranslationEnabled,
		Formats:            j.Options.Formats,
		DiarizationEnabled: j.Options.DiarizationEnabled,
		SpeakerCount:       j.Options.SpeakerCount,
		Warning:            conditionDTO(j.Warning),
		Error:              conditionDTO(j.Error),
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
		Files:              make([]FileDTO, 0, len(files)),
	}
	if j.Result != nil {
		dto.Result = &ResultDTO{ProcessedFiles: j.Result.ProcessedFiles, FailedFiles: j.Result.FailedFiles}
	}
	for _, file := range files {
		dto.Files = append(dto.Files, fileDTO(file))
	}
	return dto, nil
}

func artifactDTO(a model.Artifact) ArtifactDTO {
	dto := ArtifactDTO{
		ID:        a.ID,
		FileID:    a.FileID,
		Format:    a.Format,
		Name:      a.Name,
		MimeType:  a.MimeType,
		Kind:      string(a.Kind),
		SizeBytes: a.SizeBytes,
		CreatedAt: a.CreatedAt,
	}
	if a.Variant != nil {
		variant := string(*a.Variant)
		dto.Variant = &variant
	}
	return dto
}

// --- Input types ---

type ListJobsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Max jobs to return"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Jobs to skip"`
}

type JobIDInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// --- Handlers ---

func (h *JobsHandler) List(ctx context.Context, input *ListJobsInput) (*DataOutput[[]JobDTO], error) {
	jobs, err := h.store.ListJobs(ctx, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list jobs", err)
	}
	dtos := make([]JobDTO, 0, len(jobs))
	for i := range jobs {
		dto, err := h.jobDTO(ctx, &jobs[i])
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load job files", err)
		}
		dtos = append(dtos, dto)
	}
	return OK(dtos), nil
}

func (h *JobsHandler) Get(ctx context.Context, input *JobIDInput) (*DataOutput[JobDTO], error) {
	j, err := h.store.GetJob(ctx, input.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, huma.Error404NotFound("job not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load job", err)
	}
	dto, err := h.jobDTO(ctx, j)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load job files", err)
	}
	return OK(dto), nil
}

func (h *JobsHandler) Cancel(ctx context.Context, input *JobIDInput) (*DataOutput[JobDTO], error) {
	j, err := h.svc.Cancel(ctx, input.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, huma.Error404NotFound("job not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to cancel job", err)
	}
	dto, err := h.jobDTO(ctx, j)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load job files", err)
	}
	return OK(dto), nil
}

func (h *JobsHandler) ListArtifacts(ctx context.Context, input *JobIDInput) (*DataOutput[[]ArtifactDTO], error) {
	if _, err := h.store.GetJob(ctx, input.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError("failed to load job", err)
	}
	artifacts, err := h.store.ListArtifacts(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list artifacts", err)
	}
	dtos := make([]ArtifactDTO, 0, len(artifacts))
	for _, a := range artifacts {
		dtos = append(dtos, artifactDTO(a))
	}
	return OK(dtos), nil
}
