package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/polyscribe/polyscribe/internal/core/provider"
	"github.com/polyscribe/polyscribe/internal/secrets"
	"github.com/polyscribe/polyscribe/internal/settings"
)

type SettingsHandler struct {
	resolver *settings.Resolver
	keys     *secrets.KeyStore
}

func NewSettingsHandler(resolver *settings.Resolver, keys *secrets.KeyStore) *SettingsHandler {
	return &SettingsHandler{resolver: resolver, keys: keys}
}

// --- App settings ---

type AppSettingsDTO struct {
	TranslationFallbackOrder []string `json:"translation_fallback_order"`
	RetentionDays            int      `json:"retention_days"`
	SyncSizeThresholdMB      int      `json:"sync_size_threshold_mb"`
}

type AppSettingsUpdateInput struct {
	Body struct {
		TranslationFallbackOrder []string `json:"translation_fallback_order,omitempty" doc:"Ordered translation backend names"`
		RetentionDays            *int     `json:"retention_days,omitempty" minimum:"1"`
		SyncSizeThresholdMB      *int     `json:"sync_size_threshold_mb,omitempty" minimum:"0"`
	}
}

func (h *SettingsHandler) appSettings(ctx context.Context) AppSettingsDTO {
	return AppSettingsDTO{
		TranslationFallbackOrder: h.resolver.TranslationFallbackOrder(ctx),
		RetentionDays:            h.resolver.RetentionDays(ctx),
		SyncSizeThresholdMB:      h.resolver.SyncSizeThresholdMB(ctx),
	}
}

func (h *SettingsHandler) GetApp(ctx context.Context, _ *EmptyInput) (*DataOutput[AppSettingsDTO], error) {
	return OK(h.appSettings(ctx)), nil
}

func (h *SettingsHandler) UpdateApp(ctx context.Context, input *AppSettingsUpdateInput) (*DataOutput[AppSettingsDTO], error) {
	if order := input.Body.TranslationFallbackOrder; len(order) > 0 {
		if err := h.resolver.SetTranslationFallbackOrder(ctx, order); err != nil {
			return nil, huma.Error500InternalServerError("failed to update setting", err)
		}
	}
	if days := input.Body.RetentionDays; days != nil {
		if err := h.resolver.SetRetentionDays(ctx, *days); err != nil {
			return nil, huma.Error500InternalServerError("failed to update setting", err)
		}
	}
	if mb := input.Body.SyncSizeThresholdMB; mb != nil {
		if err := h.resolver.SetSyncSizeThresholdMB(ctx, *mb); err != nil {
			return nil, huma.Error500InternalServerError("failed to update setting", err)
		}
	}
	return OK(h.appSettings(ctx)), nil
}

// --- Provider API keys ---

type KeyStatusDTO struct {
	Provider   string     `json:"provider"`
	Configured bool       `json:"configured"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type KeyProviderInput struct {
	Provider string `path:"provider" doc:"Provider name"`
}

type KeyUpdateInput struct {
	Provider string `path:"provider" doc:"Provider name"`
	Body     struct {
		Key string `json:"key" minLength:"1" doc:"Plaintext API key; stored encrypted"`
	}
}

// ListKeys reports which key-requiring providers have a stored credential.
// Key material itself is never returned.
func (h *SettingsHandler) ListKeys(ctx context.Context, _ *EmptyInput) (*DataOutput[[]KeyStatusDTO], error) {
	stored, err := h.keys.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list keys", err)
	}
	configured := make(map[string]time.Time, len(stored))
	for _, info := range stored {
		configured[info.Provider] = info.UpdatedAt
	}

	var out []KeyStatusDTO
	for _, capability := range provider.ListCapabilities() {
		if !capability.RequiresAPIKey {
			continue
		}
		status := KeyStatusDTO{Provider: capability.Provider}
		if updatedAt, ok := configured[capability.Provider]; ok {
			status.Configured = true
			status.UpdatedAt = &updatedAt
		}
		out = append(out, status)
	}
	return OK(out), nil
}

func (h *SettingsHandler) PutKey(ctx context.Context, input *KeyUpdateInput) (*DataOutput[KeyStatusDTO], error) {
	required, err := provider.RequiresAPIKey(input.Provider)
	if err != nil {
		return nil, huma.Error404NotFound("unknown provider")
	}
	if !required {
		return nil, huma.Error400BadRequest("provider does not use API keys")
	}
	if err := h.keys.Set(ctx, input.Provider, input.Body.Key); err != nil {
		return nil, huma.Error500InternalServerError("failed to store key", err)
	}
	now := time.Now().UTC()
	return OK(KeyStatusDTO{Provider: input.Provider, Configured: true, UpdatedAt: &now}), nil
}

func (h *SettingsHandler) DeleteKey(ctx context.Context, input *KeyProviderInput) (*DataOutput[KeyStatusDTO], error) {
	if _, err := provider.RequiresAPIKey(input.Provider); err != nil {
		return nil, huma.Error404NotFound("unknown provider")
	}
	if err := h.keys.Delete(ctx, input.Provider); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete key", err)
	}
	return OK(KeyStatusDTO{Provider: input.Provider, Configured: false}), nil
}
