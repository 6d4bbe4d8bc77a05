// Package settings resolves runtime-tunable values, layering database
// overrides set through the admin API on top of configured defaults.
package settings

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/polyscribe/polyscribe/internal/core/translate"
)

// Setting keys in the app_settings table.
const (
	KeyTranslationFallbackOrder = "translation_fallback_order"
	KeyRetentionDays            = "retention_days"
	KeySyncSizeThresholdMB      = "sync_size_threshold_mb"
)

// Rows is the app_settings persistence surface.
type Rows interface {
	GetAppSetting(ctx context.Context, key string) (string, bool, error)
	SetAppSetting(ctx context.Context, key, value string) error
}

// Defaults come from static configuration and apply when no database
// override exists.
type Defaults struct {
	TranslationFallbackOrder []string
	RetentionDays            int
	SyncSizeThresholdMB      int
}

type Resolver struct {
	rows     Rows
	defaults Defaults
}

func NewResolver(rows Rows, defaults Defaults) *Resolver {
	if len(defaults.TranslationFallbackOrder) == 0 {
		defaults.TranslationFallbackOrder = translate.DefaultFallbackOrder
	}
	return &Resolver{rows: rows, defaults: defaults}
}

func (r *Resolver) lookup(ctx context.Context, key string) (string, bool) {
	value, found, err := r.rows.GetAppSetting(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("setting lookup failed, using default")
		return "", false
	}
	return value, found
}

// TranslationFallbackOrder returns the ordered backend list, stored as a
// comma-separated string.
func (r *Resolver) TranslationFallbackOrder(ctx context.Context) []string {
	raw, found := r.lookup(ctx, KeyTranslationFallbackOrder)
	if !found {
		return r.defaults.TranslationFallbackOrder
	}
	order := splitList(raw)
	if len(order) == 0 {
		return r.defaults.TranslationFallbackOrder
	}
	return order
}

func (r *Resolver) RetentionDays(ctx context.Context) int {
	raw, found := r.lookup(ctx, KeyRetentionDays)
	if !found {
		return r.defaults.RetentionDays
	}
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || days <= 0 {
		return r.defaults.RetentionDays
	}
	return days
}

// SyncSizeThresholdMB is the upload size below which a submission may run
// synchronously instead of being queued.
func (r *Resolver) SyncSizeThresholdMB(ctx context.Context) int {
	raw, found := r.lookup(ctx, KeySyncSizeThresholdMB)
	if !found {
		return r.defaults.SyncSizeThresholdMB
	}
	mb, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || mb < 0 {
		return r.defaults.SyncSizeThresholdMB
	}
	return mb
}

func (r *Resolver) SetTranslationFallbackOrder(ctx context.Context, order []string) error {
	return r.rows.SetAppSetting(ctx, KeyTranslationFallbackOrder, strings.Join(order, ","))
}

func (r *Resolver) SetRetentionDays(ctx context.Context, days int) error {
	return r.rows.SetAppSetting(ctx, KeyRetentionDays, strconv.Itoa(days))
}

func (r *Resolver) SetSyncSizeThresholdMB(ctx context.Context, mb int) error {
	return r.rows.SetAppSetting(ctx, KeySyncSizeThresholdMB, strconv.Itoa(mb))
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
