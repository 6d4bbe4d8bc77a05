package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"database.max_connections": 25,

		"auth.jwt_expiry":     "24h",
		"auth.admin_username": "admin",

		"storage.data_dir": "/data/polyscribe",
		"storage.key_file": "/data/polyscribe/secret.key",

		"providers.whisper_server.base_url": "http://localhost:9000",

		"translation.fallback_order": "native,openai,deepgram",
		"translation.openai_model":   "gpt-4o-mini",

		"jobs.default_formats":        "json,txt",
		"jobs.max_upload_mb":          512,
		"jobs.sync_size_threshold_mb": 10,

		"retention.days":           30,
		"retention.sweep_interval": "1h",

		"worker.concurrency":   2,
		"worker.poll_interval": "2s",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
