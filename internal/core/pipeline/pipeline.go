// Package pipeline runs the transcription job state machine: it walks a
// job's files in creation order, drives the provider adapter and translation
// fallback for each, renders and persists artifacts, and finishes the job
// with a bundle archive and a result summary.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/polyscribe/polyscribe/internal/core/bundle"
	"github.com/polyscribe/polyscribe/internal/core/event"
	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/core/provider"
	"github.com/polyscribe/polyscribe/internal/core/storage"
	"github.com/polyscribe/polyscribe/internal/core/transcript"
	"github.com/polyscribe/polyscribe/internal/core/translate"
)

// Store is the persistence surface the pipeline needs. The database package
// provides the production implementation.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.Status) error
	FinishJob(ctx context.Context, jobID string, status model.Status, result model.JobResult) error
	ListJobFiles(ctx context.Context, jobID string) ([]model.JobFile, error)
	UpdateFileStatus(ctx context.Context, fileID string, status model.Status) error
	CompleteFile(ctx context.Context, fileID string, detectedLanguage *string, warning *model.Condition) error
	FailFile(ctx context.Context, fileID string, cond model.Condition) error
	CreateArtifact(ctx context.Context, artifact model.Artifact) error
	ListArtifacts(ctx context.Context, jobID string) ([]model.Artifact, error)
}

// TranslationApplier matches translate.Orchestrator.Apply.
type TranslationApplier interface {
	Apply(ctx context.Context, doc *transcript.Document, adapter provider.Adapter, providerModel, targetLanguage string, fallbackOrder []string) translate.Outcome
}

// Settings resolves runtime-tunable values once per job run.
type Settings interface {
	TranslationFallbackOrder(ctx context.Context) []string
}

// AdapterFactory builds the transcription adapter for a provider. The
// default wraps provider.New; tests substitute fakes.
type AdapterFactory func(providerName string, opts provider.Options) (provider.Adapter, error)

// Config carries deployment wiring the pipeline cannot derive itself.
type Config struct {
	// BaseURLs overrides provider endpoints by provider name. Mainly for
	// self-hosted whisper servers.
	BaseURLs map[string]string
}

type Runner struct {
	store      Store
	blobs      storage.BlobStore
	creds      translate.Credentials
	translator TranslationApplier
	settings   Settings
	bus        event.Bus
	newAdapter AdapterFactory
	cfg        Config
}

func NewRunner(store Store, blobs storage.BlobStore, creds translate.Credentials, translator TranslationApplier, settings Settings, bus event.Bus, cfg Config) *Runner {
	return &Runner{
		store:      store,
		blobs:      blobs,
		creds:      creds,
		translator: translator,
		settings:   settings,
		bus:        bus,
		newAdapter: provider.New,
		cfg:        cfg,
	}
}

// Run executes the whole job. Re-running a terminal job is a no-op, so a
// redelivered queue message cannot corrupt finished state.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.Terminal() {
		log.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("job already terminal, skipping")
		return nil
	}

	if err := r.store.UpdateJobStatus(ctx, jobID, model.StatusRunning); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	r.publishJob(ctx, event.EventJobStarted, job, model.StatusRunning, model.JobResult{}, "")

	files, err := r.store.ListJobFiles(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list job files: %w", err)
	}

	var processed, failed int
	cancelled := false
	for _, file := range files {
		// Cancellation is observed between files only; a file in flight
		// always finishes.
		current, err := r.store.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("re-read job: %w", err)
		}
		if current.Status == model.StatusCancelled {
			cancelled = true
			break
		}

		if file.Status.Terminal() {
			switch file.Status {
			case model.StatusCompleted:
				processed++
			case model.StatusFailed:
				failed++
			}
			continue
		}

		if err := r.processFile(ctx, job, file); err != nil {
			failed++
			log.Error().Err(err).
				Str("job_id", jobID).
				Str("file_id", file.ID).
				Str("file", file.InputName).
				Msg("file processing failed")
			continue
		}
		processed++
	}

	if cancelled {
		// Remaining files stay queued and the job keeps the cancelled status
		// the cancel endpoint already wrote. No bundle for a cancelled job.
		log.Info().Str("job_id", jobID).Msg("cancellation observed, stopping job")
		r.publishJob(ctx, event.EventJobCancelled, job, model.StatusCancelled, model.JobResult{ProcessedFiles: processed, FailedFiles: failed}, "")
		return nil
	}

	if err := r.buildBundle(ctx, job, processed, failed); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("bundle build failed")
	}

	result := model.JobResult{ProcessedFiles: processed, FailedFiles: failed}
	status := model.StatusCompleted
	if processed == 0 && failed > 0 {
		status = model.StatusFailed
	}
	if err := r.store.FinishJob(ctx, jobID, status, result); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	eventType := event.EventJobCompleted
	if status == model.StatusFailed {
		eventType = event.EventJobFailed
	}
	r.publishJob(ctx, eventType, job, status, result, "")
	return nil
}

func (r *Runner) processFile(ctx context.Context, job *model.Job, file model.JobFile) error {
	if err := r.store.UpdateFileStatus(ctx, file.ID, model.StatusRunning); err != nil {
		return fmt.Errorf("mark file running: %w", err)
	}
	r.publishFile(ctx, event.EventFileStarted, job.ID, file, "", "")

	detected, warning, err := r.transcribeAndRender(ctx, job, file)
	if err != nil {
		cond := model.Condition{Code: "file_processing_failed", Message: err.Error()}
		if failErr := r.store.FailFile(ctx, file.ID, cond); failErr != nil {
			log.Error().Err(failErr).Str("file_id", file.ID).Msg("could not record file failure")
		}
		r.publishFile(ctx, event.EventFileFailed, job.ID, file, "", err.Error())
		return err
	}

	if err := r.store.CompleteFile(ctx, file.ID, detected, warning); err != nil {
		return fmt.Errorf("mark file completed: %w", err)
	}
	lang := ""
	if detected != nil {
		lang = *detected
	}
	r.publishFile(ctx, event.EventFileCompleted, job.ID, file, lang, "")
	return nil
}

func (r *Runner) transcribeAndRender(ctx context.Context, job *model.Job, file model.JobFile) (*string, *model.Condition, error) {
	opts := job.Options
	if err := provider.ValidateOptions(job.Provider, job.Model, opts.DiarizationEnabled, opts.SpeakerCount); err != nil {
		return nil, nil, err
	}

	audio, err := r.blobs.Get(ctx, file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch audio: %w", err)
	}

	adapter, err := r.buildAdapter(ctx, job.Provider)
	if err != nil {
		return nil, nil, err
	}

	doc, err := adapter.Transcribe(ctx, provider.Request{
		FileName:             file.InputName,
		Audio:                audio,
		Model:                job.Model,
		SourceLanguage:       job.SourceLanguage,
		DiarizationEnabled:   opts.DiarizationEnabled,
		SpeakerCount:         opts.SpeakerCount,
		TimestampGranularity: opts.TimestampGranularity,
	})
	if err != nil {
		return nil, nil, err
	}

	var warning *model.Condition
	if job.TranslationEnabled && job.TargetLanguage != nil {
		outcome := r.translator.Apply(ctx, doc, adapter, job.Model, *job.TargetLanguage, r.settings.TranslationFallbackOrder(ctx))
		doc = outcome.Document
		warning = outcome.Warning
	}

	if err := r.persistArtifacts(ctx, job, file, doc); err != nil {
		return nil, nil, err
	}

	var detected *string
	if doc.DetectedLanguage != "" {
		lang := doc.DetectedLanguage
		detected = &lang
	}
	return detected, warning, nil
}

// buildAdapter resolves the stored credential for a provider and constructs
// its adapter. Providers with no key requirement run without one.
func (r *Runner) buildAdapter(ctx context.Context, providerName string) (provider.Adapter, error) {
	apiKey, _, err := r.creds.Get(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	return r.newAdapter(providerName, provider.Options{
		APIKey:  apiKey,
		BaseURL: r.cfg.BaseURLs[providerName],
	})
}

// renderPlan is one (format, variant) combination to render and persist.
type renderPlan struct {
	format  string
	variant model.Variant
	kind    model.ArtifactKind
}

// planRenders expands requested formats into concrete render targets.
// json and html always come out as a single combined artifact; srt, vtt and
// txt split into source and, when any segment carries a translation,
// translated copies.
func planRenders(formats []string, hasTranslation bool) []renderPlan {
	var plans []renderPlan
	for _, format := range formats {
		switch format {
		case transcript.FormatJSON, transcript.FormatHTML:
			plans = append(plans, renderPlan{format: format, variant: model.VariantSource, kind: model.KindCombined})
		default:
			plans = append(plans, renderPlan{format: format, variant: model.VariantSource, kind: model.KindSource})
			if hasTranslation {
				plans = append(plans, renderPlan{format: format, variant: model.VariantTranslated, kind: model.KindTranslated})
			}
		}
	}
	return plans
}

func (r *Runner) persistArtifacts(ctx context.Context, job *model.Job, file model.JobFile, doc *transcript.Document) error {
	prefix := transcript.SanitizePrefix(file.InputName)
	for _, plan := range planRenders(job.Options.Formats, doc.HasTranslation()) {
		content, err := transcript.Render(doc, plan.format, plan.variant)
		if err != nil {
			return fmt.Errorf("render %s/%s: %w", plan.format, plan.variant, err)
		}

		name := transcript.ArtifactName(prefix, plan.variant, plan.format)
		path := storage.ArtifactPath(job.ID, file.ID, name)
		mime := transcript.MimeType(plan.format)
		if err := r.blobs.Put(ctx, path, []byte(content), mime); err != nil {
			return fmt.Errorf("store artifact %s: %w", name, err)
		}

		artifact := model.Artifact{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			FileID:      &file.ID,
			Format:      plan.format,
			Name:        name,
			MimeType:    mime,
			Kind:        plan.kind,
			StoragePath: path,
			SizeBytes:   int64(len(content)),
			CreatedAt:   time.Now().UTC(),
		}
		if plan.kind != model.KindCombined {
			variant := plan.variant
			artifact.Variant = &variant
		}
		if err := r.store.CreateArtifact(ctx, artifact); err != nil {
			return fmt.Errorf("record artifact %s: %w", name, err)
		}
	}
	return nil
}

func (r *Runner) buildBundle(ctx context.Context, job *model.Job, processed, failed int) error {
	artifacts, err := r.store.ListArtifacts(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}

	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Kind == model.KindBundle {
			continue
		}
		names = append(names, a.Name)
	}

	manifest := bundle.Manifest{
		JobID:          job.ID,
		GeneratedAt:    time.Now().UTC(),
		ProcessedFiles: processed,
		FailedFiles:    failed,
		Artifacts:      names,
	}
	data, err := bundle.Build(ctx, r.blobs, manifest, artifacts)
	if err != nil {
		return err
	}

	path := storage.BundlePath(job.ID)
	if err := r.blobs.Put(ctx, path, data, "application/zip"); err != nil {
		return fmt.Errorf("store bundle: %w", err)
	}
	return r.store.CreateArtifact(ctx, model.Artifact{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		Format:      transcript.FormatZip,
		Name:        job.ID + ".zip",
		MimeType:    transcript.MimeType(transcript.FormatZip),
		Kind:        model.KindBundle,
		StoragePath: path,
		SizeBytes:   int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	})
}

func (r *Runner) publishJob(ctx context.Context, eventType event.EventType, job *model.Job, status model.Status, result model.JobResult, errMsg string) {
	_ = r.bus.Publish(ctx, event.Event{
		Type: eventType,
		Payload: event.JobEvent{
			JobID:          job.ID,
			Provider:       job.Provider,
			Model:          job.Model,
			Status:         string(status),
			ProcessedFiles: result.ProcessedFiles,
			FailedFiles:    result.FailedFiles,
			Error:          errMsg,
		},
	})
}

func (r *Runner) publishFile(ctx context.Context, eventType event.EventType, jobID string, file model.JobFile, detectedLanguage, errMsg string) {
	_ = r.bus.Publish(ctx, event.Event{
		Type: eventType,
		Payload: event.FileEvent{
			JobID:            jobID,
			FileID:           file.ID,
			Name:             file.InputName,
			Status:           string(file.Status),
			DetectedLanguage: detectedLanguage,
			Error:            errMsg,
		},
	})
}
