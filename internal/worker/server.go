// Package worker runs the job-processing side of the service: queue
// consumers that drive the pipeline, and the scheduled retention sweeper.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/polyscribe/polyscribe/internal/config"
	"github.com/polyscribe/polyscribe/internal/core/event"
	"github.com/polyscribe/polyscribe/internal/core/pipeline"
	"github.com/polyscribe/polyscribe/internal/core/provider"
	"github.com/polyscribe/polyscribe/internal/core/retention"
	"github.com/polyscribe/polyscribe/internal/core/storage"
	"github.com/polyscribe/polyscribe/internal/core/translate"
	"github.com/polyscribe/polyscribe/internal/database"
	"github.com/polyscribe/polyscribe/internal/queue"
	"github.com/polyscribe/polyscribe/internal/secrets"
	"github.com/polyscribe/polyscribe/internal/settings"
)

func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store := database.NewStore(pool)
	blobs := storage.NewLocalStore(cfg.Storage.DataDir)

	key, err := secrets.LoadOrCreateKey(cfg.Storage.KeyFile)
	if err != nil {
		return fmt.Errorf("load encryption key: %w", err)
	}
	cipher, err := secrets.NewCipher(key)
	if err != nil {
		return err
	}
	creds := secrets.NewKeyStore(store, cipher)

	resolver := settings.NewResolver(store, settings.Defaults{
		TranslationFallbackOrder: cfg.Translation.FallbackOrderList(),
		RetentionDays:            cfg.Retention.Days,
		SyncSizeThresholdMB:      cfg.Jobs.SyncSizeThresholdMB,
	})

	bus := event.NewBus()
	subscribeProgressLog(bus)

	translator := translate.NewOrchestrator(creds, translate.Config{
		OpenAIModel: cfg.Translation.OpenAIModel,
	})
	runner := pipeline.NewRunner(store, blobs, creds, translator, resolver, bus, pipeline.Config{
		BaseURLs: map[string]string{
			provider.WhisperServer: cfg.Providers.WhisperServer.BaseURL,
		},
	})

	jobQueue := queue.New(pool)
	pollInterval, err := time.ParseDuration(cfg.Worker.PollInterval)
	if err != nil || pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	hostname, _ := os.Hostname()

	sweepInterval, err := time.ParseDuration(cfg.Retention.SweepInterval)
	if err != nil || sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	sweeper := retention.NewSweeper(store, blobs, bus, resolver.RetentionDays(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx, sweepInterval)
	}()

	log.Info().
		Int("concurrency", concurrency).
		Dur("poll_interval", pollInterval).
		Msg("worker started")

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		consumerID := fmt.Sprintf("%s-%d", hostname, i)
		go func() {
			defer wg.Done()
			consumeJobs(ctx, jobQueue, runner, consumerID, pollInterval)
		}()
	}

	wg.Wait()
	log.Info().Msg("worker stopped")
	return nil
}

// consumeJobs polls the queue until the context is cancelled. Messages are
// acked after Run returns: a terminal job re-run is a no-op, so at-least-once
// delivery is safe.
func consumeJobs(ctx context.Context, jobQueue *queue.Queue, runner *pipeline.Runner, consumerID string, pollInterval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := jobQueue.Claim(ctx, queue.TopicJobs, consumerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("queue claim failed")
			sleepCtx(ctx, pollInterval)
			continue
		}
		if msg == nil {
			sleepCtx(ctx, pollInterval)
			continue
		}

		var payload queue.JobPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Error().Err(err).Int64("message_id", msg.ID).Msg("dropping malformed queue message")
			if err := jobQueue.Ack(ctx, msg.ID); err != nil {
				log.Error().Err(err).Int64("message_id", msg.ID).Msg("ack failed")
			}
			continue
		}

		if err := runner.Run(ctx, payload.JobID); err != nil {
			// Leave the message claimed; the lease expiry will redeliver it.
			log.Error().Err(err).Str("job_id", payload.JobID).Msg("job run failed")
			continue
		}
		if err := jobQueue.Ack(ctx, msg.ID); err != nil {
			log.Error().Err(err).Int64("message_id", msg.ID).Msg("ack failed")
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// subscribeProgressLog mirrors pipeline events into the worker log.
func subscribeProgressLog(bus event.Bus) {
	bus.Subscribe(event.EventJobStarted, func(_ context.Context, e event.Event) error {
		payload := e.Payload.(event.JobEvent)
		log.Info().Str("job_id", payload.JobID).Str("provider", payload.Provider).Str("model", payload.Model).Msg("job started")
		return nil
	})
	bus.Subscribe(event.EventJobCompleted, func(_ context.Context, e event.Event) error {
		payload := e.Payload.(event.JobEvent)
		log.Info().Str("job_id", payload.JobID).
			Int("processed", payload.ProcessedFiles).
			Int("failed", payload.FailedFiles).
			Msg("job completed")
		return nil
	})
	bus.Subscribe(event.EventJobFailed, func(_ context.Context, e event.Event) error {
		payload := e.Payload.(event.JobEvent)
		log.Warn().Str("job_id", payload.JobID).
			Int("failed", payload.FailedFiles).
			Msg("job failed")
		return nil
	})
	bus.Subscribe(event.EventJobCancelled, func(_ context.Context, e event.Event) error {
		payload := e.Payload.(event.JobEvent)
		log.Info().Str("job_id", payload.JobID).Msg("job cancelled")
		return nil
	})
	bus.Subscribe(event.EventFileCompleted, func(_ context.Context, e event.Event) error {
		payload := e.Payload.(event.FileEvent)
		log.Info().Str("job_id", payload.JobID).
			Str("file", payload.Name).
			Str("language", payload.DetectedLanguage).
			Msg("file completed")
		return nil
	})
	bus.Subscribe(event.EventFileFailed, func(_ context.Context, e event.Event) error {
		payload := e.Payload.(event.FileEvent)
		log.Warn().Str("job_id", payload.JobID).
			Str("file", payload.Name).
			Str("error", payload.Error).
			Msg("file failed")
		return nil
	})
}
