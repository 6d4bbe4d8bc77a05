// Package job handles job submission: validation, persistence and the
// queue-or-sync dispatch decision.
package job

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/polyscribe/polyscribe/internal/core/event"
	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/core/provider"
	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

// Store is the persistence surface for submission and inspection.
type Store interface {
	CreateJob(ctx context.Context, job *model.Job) error
	CreateJobFile(ctx context.Context, file *model.JobFile) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]model.Job, error)
	ListJobFiles(ctx context.Context, jobID string) ([]model.JobFile, error)
	ListArtifacts(ctx context.Context, jobID string) ([]model.Artifact, error)
	CancelJob(ctx context.Context, jobID string) (bool, error)
}

// Dispatcher enqueues a job for asynchronous processing.
type Dispatcher interface {
	EnqueueJob(ctx context.Context, jobID string) error
}

// SyncRunner executes a job inline when the queue path is not taken.
type SyncRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Thresholds resolves the runtime sync-dispatch threshold.
type Thresholds interface {
	SyncSizeThresholdMB(ctx context.Context) int
}

type Service struct {
	store          Store
	dispatcher     Dispatcher
	runner         SyncRunner
	thresholds     Thresholds
	bus            event.Bus
	defaultFormats []string
}

func NewService(store Store, dispatcher Dispatcher, runner SyncRunner, thresholds Thresholds, bus event.Bus, defaultFormats []string) *Service {
	if len(defaultFormats) == 0 {
		defaultFormats = []string{transcript.FormatJSON, transcript.FormatTXT}
	}
	return &Service{
		store:          store,
		dispatcher:     dispatcher,
		runner:         runner,
		thresholds:     thresholds,
		bus:            bus,
		defaultFormats: defaultFormats,
	}
}

// CreateRequest is a validated submission.
type CreateRequest struct {
	Provider             string
	Model                string
	SourceLanguage       string
	TargetLanguage       *string
	TranslationEnabled   bool
	Formats              []string
	DiarizationEnabled   bool
	SpeakerCount         int
	TimestampGranularity string
	VerboseOutput        bool
	SyncPreferred        bool
}

// Input is one already-stored input blob.
type Input struct {
	Name        string
	Source      string // "upload" or "url"
	SizeBytes   int64
	StoragePath string
}

// Create validates the request, persists the job and its files, and either
// enqueues the job or runs it inline. A failed enqueue falls back to inline
// processing so a submission is never silently lost.
func (s *Service) Create(ctx context.Context, req CreateRequest, inputs []Input) (*model.Job, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one input file is required")
	}
	if req.SourceLanguage == "" {
		req.SourceLanguage = "auto"
	}

	formats, err := normalizeFormats(req.Formats, s.defaultFormats)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateOptions(req.Provider, req.Model, req.DiarizationEnabled, req.SpeakerCount); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	newJob := &model.Job{
		ID:                 jobID,
		Status:             model.StatusQueued,
		Provider:           req.Provider,
		Model:              req.Model,
		SourceLanguage:     req.SourceLanguage,
		TargetLanguage:     req.TargetLanguage,
		TranslationEnabled: req.TranslationEnabled,
		Options: model.JobOptions{
			Formats:              formats,
			DiarizationEnabled:   req.DiarizationEnabled,
			SpeakerCount:         req.SpeakerCount,
			TimestampGranularity: req.TimestampGranularity,
			VerboseOutput:        req.VerboseOutput,
			SyncPreferred:        req.SyncPreferred,
		},
	}
	if err := s.store.CreateJob(ctx, newJob); err != nil {
		return nil, err
	}
	for _, input := range inputs {
		file := &model.JobFile{
			ID:          uuid.NewString(),
			JobID:       jobID,
			InputName:   input.Name,
			InputSource: input.Source,
			SizeBytes:   input.SizeBytes,
			StoragePath: input.StoragePath,
			Status:      model.StatusQueued,
		}
		if err := s.store.CreateJobFile(ctx, file); err != nil {
			return nil, err
		}
	}

	_ = s.bus.Publish(ctx, event.Event{
		Type:    event.EventJobCreated,
		Payload: event.JobEvent{JobID: jobID, Provider: req.Provider, Model: req.Model, Status: string(model.StatusQueued)},
	})

	if s.shouldQueue(ctx, req, inputs) {
		if err := s.dispatcher.EnqueueJob(ctx, jobID); err == nil {
			return s.store.GetJob(ctx, jobID)
		} else {
			log.Warn().Err(err).Str("job_id", jobID).Msg("enqueue failed, processing inline")
		}
	}

	if err := s.runner.Run(ctx, jobID); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("inline job run failed")
	}
	return s.store.GetJob(ctx, jobID)
}

// shouldQueue keeps small single-file submissions synchronous when the
// caller prefers it, so quick transcriptions return finished in one request.
func (s *Service) shouldQueue(ctx context.Context, req CreateRequest, inputs []Input) bool {
	if !req.SyncPreferred {
		return true
	}
	if len(inputs) > 1 {
		return true
	}
	threshold := int64(s.thresholds.SyncSizeThresholdMB(ctx)) * 1024 * 1024
	if threshold <= 0 {
		return true
	}
	for _, input := range inputs {
		if input.SizeBytes > threshold {
			return true
		}
	}
	return false
}

// Cancel marks a job cancelled. The pipeline observes the status between
// files and stops; not-yet-started files keep their queued status.
func (s *Service) Cancel(ctx context.Context, jobID string) (*model.Job, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	changed, err := s.store.CancelJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if changed {
		_ = s.bus.Publish(ctx, event.Event{
			Type:    event.EventJobCancelled,
			Payload: event.JobEvent{JobID: jobID, Status: string(model.StatusCancelled)},
		})
	}
	return s.store.GetJob(ctx, jobID)
}

// normalizeFormats applies the default set, deduplicates while preserving
// order, and rejects unknown formats.
func normalizeFormats(formats, defaults []string) ([]string, error) {
	if len(formats) == 0 {
		formats = defaults
	}
	seen := make(map[string]bool, len(formats))
	out := make([]string, 0, len(formats))
	for _, format := range formats {
		if !transcript.ValidFormat(format) {
			return nil, fmt.Errorf("unsupported output format %q", format)
		}
		if seen[format] {
			continue
		}
		seen[format] = true
		out = append(out, format)
	}
	return out, nil
}
