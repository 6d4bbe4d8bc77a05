package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/polyscribe/polyscribe/internal/api/handlers"
	"github.com/polyscribe/polyscribe/internal/api/middleware"
	"github.com/polyscribe/polyscribe/internal/core/job"
	"github.com/polyscribe/polyscribe/internal/core/storage"
	"github.com/polyscribe/polyscribe/internal/database"
	"github.com/polyscribe/polyscribe/internal/secrets"
	"github.com/polyscribe/polyscribe/internal/settings"
)

type RouterConfig struct {
	Store             *database.Store
	Blobs             storage.BlobStore
	JobService        *job.Service
	SettingsResolver  *settings.Resolver
	KeyStore          *secrets.KeyStore
	JWTSecret         string
	JWTExpiry         time.Duration
	AdminUsername     string
	AdminPasswordHash string
	MaxUploadMB       int
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
	}))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	config := huma.DefaultConfig("Polyscribe API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/api/v1"}}
	config.Info.Description = "Batch audio transcription and translation service"
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"BearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT Bearer token",
		},
	}

	api := humaecho.NewWithGroup(e, v1, config)

	authMw := middleware.Auth(cfg.JWTSecret)
	bearerSec := []map[string][]string{{"BearerAuth": {}}}

	authHandler := handlers.NewAuthHandler(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.JWTExpiry)
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login and get JWT token",
		Tags:        []string{"Auth"},
	}, authHandler.Login)

	capabilitiesHandler := handlers.NewCapabilitiesHandler()
	huma.Register(api, huma.Operation{
		OperationID: "list-capabilities",
		Method:      http.MethodGet,
		Path:        "/capabilities",
		Summary:     "List providers, models and their supported options",
		Tags:        []string{"Capabilities"},
	}, capabilitiesHandler.List)

	jobsHandler := handlers.NewJobsHandler(cfg.JobService, cfg.Store)
	huma.Register(api, huma.Operation{
		OperationID: "jobs-list",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Tags:        []string{"Jobs"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-get",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job status with per-file detail",
		Tags:        []string{"Jobs"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-cancel",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/cancel",
		Summary:     "Cancel a job",
		Tags:        []string{"Jobs"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "jobs-list-artifacts",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}/artifacts",
		Summary:     "List a job's artifacts",
		Tags:        []string{"Jobs"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, jobsHandler.ListArtifacts)

	settingsHandler := handlers.NewSettingsHandler(cfg.SettingsResolver, cfg.KeyStore)
	huma.Register(api, huma.Operation{
		OperationID: "settings-get",
		Method:      http.MethodGet,
		Path:        "/settings/app",
		Summary:     "Get effective app settings",
		Tags:        []string{"Settings"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.GetApp)

	huma.Register(api, huma.Operation{
		OperationID: "settings-update",
		Method:      http.MethodPut,
		Path:        "/settings/app",
		Summary:     "Update app settings",
		Tags:        []string{"Settings"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.UpdateApp)

	huma.Register(api, huma.Operation{
		OperationID: "settings-keys-list",
		Method:      http.MethodGet,
		Path:        "/settings/keys",
		Summary:     "List provider API key status",
		Tags:        []string{"Settings"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.ListKeys)

	huma.Register(api, huma.Operation{
		OperationID: "settings-keys-put",
		Method:      http.MethodPut,
		Path:        "/settings/keys/{provider}",
		Summary:     "Store a provider API key",
		Tags:        []string{"Settings"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.PutKey)

	huma.Register(api, huma.Operation{
		OperationID: "settings-keys-delete",
		Method:      http.MethodDelete,
		Path:        "/settings/keys/{provider}",
		Summary:     "Delete a provider API key",
		Tags:        []string{"Settings"},
		Security:    bearerSec,
		Middlewares: huma.Middlewares{authMw},
	}, settingsHandler.DeleteKey)

	// Multipart submission and raw blob downloads stay on plain echo routes;
	// huma's schema layer gets in the way of streaming bodies.
	uploadsHandler := handlers.NewUploadsHandler(cfg.JobService, cfg.Store, cfg.Blobs, cfg.MaxUploadMB)
	echoAuth := middleware.EchoAuth(cfg.JWTSecret)
	v1.POST("/jobs", uploadsHandler.CreateJob, echoAuth)
	v1.GET("/jobs/:id/artifacts/:artifactId", uploadsHandler.DownloadArtifact, echoAuth)
	v1.GET("/jobs/:id/bundle.zip", uploadsHandler.DownloadBundle, echoAuth)
}
