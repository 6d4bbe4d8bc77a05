package provider

import "fmt"

// Provider names form a closed set; adapter selection switches on these.
const (
	OpenAI           = "openai"
	ElevenLabsScribe = "elevenlabs-scribe"
	Deepgram         = "deepgram"
	WhisperServer    = "whisper-server"
)

// ModelCapability describes what one provider model accepts.
type ModelCapability struct {
	ID                        string `json:"id"`
	MaxDurationSec            int    `json:"max_duration_sec"`
	MaxSizeMB                 int    `json:"max_size_mb"`
	SupportsDiarization       bool   `json:"supports_diarization"`
	SupportsSpeakerCount      bool   `json:"supports_speaker_count"`
	SupportsAutoLanguage      bool   `json:"supports_auto_language"`
	SupportsNativeTranslation bool   `json:"supports_translation_native"`
}

// Capability describes one provider and its models.
type Capability struct {
	Provider       string            `json:"provider"`
	RequiresAPIKey bool              `json:"requires_api_key"`
	Models         []ModelCapability `json:"models"`
}

var capabilities = []Capability{
	{
		Provider:       WhisperServer,
		RequiresAPIKey: false,
		Models: []ModelCapability{
			{ID: "tiny", MaxDurationSec: 7200, MaxSizeMB: 200, SupportsAutoLanguage: true},
			{ID: "small", MaxDurationSec: 7200, MaxSizeMB: 300, SupportsAutoLanguage: true},
			{ID: "medium", MaxDurationSec: 10800, MaxSizeMB: 500, SupportsAutoLanguage: true},
		},
	},
	{
		Provider:       OpenAI,
		RequiresAPIKey: true,
		Models: []ModelCapability{
			{ID: "gpt-4o-mini-transcribe", MaxDurationSec: 7200, MaxSizeMB: 200, SupportsAutoLanguage: true, SupportsNativeTranslation: true},
			{ID: "whisper-1", MaxDurationSec: 7200, MaxSizeMB: 200, SupportsAutoLanguage: true, SupportsNativeTranslation: true},
		},
	},
	{
		Provider:       ElevenLabsScribe,
		RequiresAPIKey: true,
		Models: []ModelCapability{
			{ID: "scribe_v1", MaxDurationSec: 7200, MaxSizeMB: 400, SupportsDiarization: true, SupportsSpeakerCount: true, SupportsAutoLanguage: true},
			{ID: "scribe_v2", MaxDurationSec: 10800, MaxSizeMB: 500, SupportsDiarization: true, SupportsSpeakerCount: true, SupportsAutoLanguage: true},
		},
	},
	{
		Provider:       Deepgram,
		RequiresAPIKey: true,
		Models: []ModelCapability{
			{ID: "nova-3", MaxDurationSec: 10800, MaxSizeMB: 500, SupportsDiarization: true, SupportsAutoLanguage: true, SupportsNativeTranslation: true},
		},
	},
}

// ListCapabilities returns the full provider capability table.
func ListCapabilities() []Capability {
	return capabilities
}

// Known reports whether the provider name is part of the closed set.
func Known(provider string) bool {
	for _, c := range capabilities {
		if c.Provider == provider {
			return true
		}
	}
	return false
}

// RequiresAPIKey reports whether the provider needs a stored credential.
func RequiresAPIKey(provider string) (bool, error) {
	for _, c := range capabilities {
		if c.Provider == provider {
			return c.RequiresAPIKey, nil
		}
	}
	return false, fmt.Errorf("unsupported provider %q", provider)
}

// GetModelCapability resolves the capability entry for a provider/model pair.
func GetModelCapability(provider, model string) (ModelCapability, error) {
	for _, c := range capabilities {
		if c.Provider != provider {
			continue
		}
		for _, m := range c.Models {
			if m.ID == model {
				return m, nil
			}
		}
		return ModelCapability{}, fmt.Errorf("unsupported model %q for provider %q", model, provider)
	}
	return ModelCapability{}, fmt.Errorf("unsupported provider %q", provider)
}

// ValidateOptions fails fast on option combinations the model cannot serve.
// Runs before any network call.
func ValidateOptions(provider, model string, diarization bool, speakerCount int) error {
	capability, err := GetModelCapability(provider, model)
	if err != nil {
		return err
	}
	if diarization && !capability.SupportsDiarization {
		return fmt.Errorf("model %q for provider %q does not support diarization", model, provider)
	}
	if speakerCount > 0 && !capability.SupportsSpeakerCount {
		return fmt.Errorf("model %q for provider %q does not support speaker count hints", model, provider)
	}
	return nil
}
