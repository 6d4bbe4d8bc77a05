package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

// Request carries everything an adapter needs for one transcription call.
type Request struct {
	FileName             string
	Audio                []byte
	Model                string
	SourceLanguage       string // "auto" lets the provider detect
	DiarizationEnabled   bool
	SpeakerCount         int
	TimestampGranularity string // "segment" (default) or "word"
}

// Adapter turns a raw audio blob into a normalized transcript document.
// Each adapter builds its provider-specific request shape and normalizes the
// heterogeneous response into transcript.Document.
type Adapter interface {
	Provider() string
	Transcribe(ctx context.Context, req Request) (*transcript.Document, error)
}

// NativeTranslator is implemented by adapters whose provider also offers a
// translation route. A (nil, nil) return means the route does not apply to
// the given model and the caller should fall through to the next backend.
type NativeTranslator interface {
	TranslateNative(ctx context.Context, doc *transcript.Document, model, targetLanguage string) (*transcript.Document, error)
}

// RPCError is returned for non-success provider responses. It keeps the raw
// response body for diagnostics.
type RPCError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("transcription failed: %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Options configures adapter construction. BaseURL overrides the provider
// endpoint (used by tests and for self-hosted whisper servers).
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Minute}
}

// New builds the adapter for a provider. Providers that require an API key
// fail here rather than on the first network call.
func New(provider string, opts Options) (Adapter, error) {
	required, err := RequiresAPIKey(provider)
	if err != nil {
		return nil, err
	}
	if required && opts.APIKey == "" {
		return nil, fmt.Errorf("provider %q requires an API key", provider)
	}

	switch provider {
	case OpenAI:
		return newOpenAIAdapter(opts), nil
	case ElevenLabsScribe:
		return newElevenLabsAdapter(opts), nil
	case Deepgram:
		return newDeepgramAdapter(opts), nil
	case WhisperServer:
		return newWhisperServerAdapter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
