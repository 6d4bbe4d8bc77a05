// Package api hosts the HTTP control plane: job submission, status and
// artifact retrieval, and admin settings.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/polyscribe/polyscribe/internal/api/handlers"
	"github.com/polyscribe/polyscribe/internal/config"
	"github.com/polyscribe/polyscribe/internal/core/event"
	"github.com/polyscribe/polyscribe/internal/core/job"
	"github.com/polyscribe/polyscribe/internal/core/pipeline"
	"github.com/polyscribe/polyscribe/internal/core/provider"
	"github.com/polyscribe/polyscribe/internal/core/storage"
	"github.com/polyscribe/polyscribe/internal/core/translate"
	"github.com/polyscribe/polyscribe/internal/database"
	"github.com/polyscribe/polyscribe/internal/queue"
	"github.com/polyscribe/polyscribe/internal/secrets"
	"github.com/polyscribe/polyscribe/internal/settings"
)

// queueDispatcher adapts the Postgres queue to the job service's
// Dispatcher interface.
type queueDispatcher struct {
	q *queue.Queue
}

func (d queueDispatcher) EnqueueJob(ctx context.Context, jobID string) error {
	return d.q.Enqueue(ctx, queue.TopicJobs, queue.JobPayload{JobID: jobID})
}

func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store := database.NewStore(pool)

	// Auto-generate secrets on first boot.
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = ensureSetting(ctx, store, "jwt_secret", 32)
		if err != nil {
			return fmt.Errorf("jwt secret: %w", err)
		}
	}

	adminHash, err := ensureAdminHash(ctx, store, cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash)
	if err != nil {
		return fmt.Errorf("admin setup: %w", err)
	}

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

	translator := translate.NewOrchestrator(creds, translate.Config{
		OpenAIModel: cfg.Translation.OpenAIModel,
	})
	runner := pipeline.NewRunner(store, blobs, creds, translator, resolver, bus, pipeline.Config{
		BaseURLs: map[string]string{
			provider.WhisperServer: cfg.Providers.WhisperServer.BaseURL,
		},
	})

	jobQueue := queue.New(pool)
	jobService := job.NewService(store, queueDispatcher{q: jobQueue}, runner, resolver, bus, cfg.Jobs.DefaultFormatList())

	jwtExpiry, err := time.ParseDuration(cfg.Auth.JWTExpiry)
	if err != nil || jwtExpiry <= 0 {
		jwtExpiry = 24 * time.Hour
	}

	e := echo.New()
	e.HideBanner = true

	handlers.InitErrors()
	SetupRouter(e, RouterConfig{
		Store:             store,
		Blobs:             blobs,
		JobService:        jobService,
		SettingsResolver:  resolver,
		KeyStore:          creds,
		JWTSecret:         jwtSecret,
		JWTExpiry:         jwtExpiry,
		AdminUsername:     cfg.Auth.AdminUsername,
		AdminPasswordHash: adminHash,
		MaxUploadMB:       cfg.Jobs.MaxUploadMB,
	})

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("api server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

// ensureSetting returns a persisted random hex value, generating and
// storing it on first boot.
func ensureSetting(ctx context.Context, store *database.Store, key string, byteLen int) (string, error) {
	value, found, err := store.GetAppSetting(ctx, key)
	if err != nil {
		return "", err
	}
	if found && value != "" {
		return value, nil
	}

	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	value = hex.EncodeToString(b)
	if err := store.SetAppSetting(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}

// ensureAdminHash resolves the admin password hash. A configured hash wins.
// Otherwise a random password is generated once, its hash persisted, and
// the plaintext printed so the operator can log in.
func ensureAdminHash(ctx context.Context, store *database.Store, username, configuredHash string) (string, error) {
	if configuredHash != "" {
		return configuredHash, nil
	}

	hash, found, err := store.GetAppSetting(ctx, "admin_password_hash")
	if err != nil {
		return "", err
	}
	if found && hash != "" {
		return hash, nil
	}

	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	password := hex.EncodeToString(b)
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := store.SetAppSetting(ctx, "admin_password_hash", string(hashed)); err != nil {
		return "", err
	}
	log.Info().Str("username", username).Str("password", password).Msg("generated admin credentials (change after first login)")
	return string(hashed), nil
}
