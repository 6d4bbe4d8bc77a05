package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Auth        AuthConfig        `koanf:"auth"`
	Storage     StorageConfig     `koanf:"storage"`
	Providers   ProvidersConfig   `koanf:"providers"`
	Translation TranslationConfig `koanf:"translation"`
	Jobs        JobsConfig        `koanf:"jobs"`
	Retention   RetentionConfig   `koanf:"retention"`
	Worker      WorkerConfig      `koanf:"worker"`
	Logging     LoggingConfig     `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type AuthConfig struct {
	JWTSecret         string `koanf:"jwt_secret"`
	JWTExpiry         string `koanf:"jwt_expiry"`
	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`
}

type StorageConfig struct {
	DataDir string `koanf:"data_dir"`
	KeyFile string `koanf:"key_file"`
}

type ProvidersConfig struct {
	WhisperServer WhisperServerConfig `koanf:"whisper_server"`
}

type WhisperServerConfig struct {
	BaseURL string `koanf:"base_url"`
}

type TranslationConfig struct {
	FallbackOrder string `koanf:"fallback_order"`
	OpenAIModel   string `koanf:"openai_model"`
}

type JobsConfig struct {
	DefaultFormats      string `koanf:"default_formats"`
	MaxUploadMB         int    `koanf:"max_upload_mb"`
	SyncSizeThresholdMB int    `koanf:"sync_size_threshold_mb"`
}

type RetentionConfig struct {
	Days          int    `koanf:"days"`
	SweepInterval string `koanf:"sweep_interval"`
}

type WorkerConfig struct {
	Concurrency  int    `koanf:"concurrency"`
	PollInterval string `koanf:"poll_interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// FallbackOrderList splits the configured backend list.
func (t TranslationConfig) FallbackOrderList() []string {
	return splitList(t.FallbackOrder)
}

// DefaultFormatList splits the configured format list.
func (j JobsConfig) DefaultFormatList() []string {
	return splitList(j.DefaultFormats)
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

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: PS_SERVER_PORT -> server.port
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("PS_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "PS_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// 4. Handle top-level convenience env vars
	if v := os.Getenv("PS_DATABASE_URL"); v != "" {
		k.Set("database.url", v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && !k.Exists("database.url") {
		k.Set("database.url", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
