// Package translate orchestrates transcript translation across an ordered
// list of fallback backends. A backend is only applied wholesale: if any
// segment fails, its partial output is discarded and the next backend runs.
package translate

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/polyscribe/polyscribe/internal/core/model"
	"github.com/polyscribe/polyscribe/internal/core/provider"
	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

// BackendNative routes translation through the job's own transcription
// provider when that provider offers a native translation route.
const BackendNative = "native"

// DefaultFallbackOrder is used when no runtime setting overrides it.
var DefaultFallbackOrder = []string{BackendNative, "openai", "deepgram"}

// Credentials resolves provider API keys. Absence is not an error; the
// backend is simply skipped.
type Credentials interface {
	Get(ctx context.Context, providerName string) (string, bool, error)
}

// Translator translates one text string.
type Translator interface {
	Provider() string
	Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error)
}

// Outcome is the result of a fallback run. Backend is empty and Warning set
// when every backend was exhausted without success.
type Outcome struct {
	Document *transcript.Document
	Backend  string
	Warning  *model.Condition
}

// Config tunes backend construction.
type Config struct {
	OpenAIModel     string // chat model for text translation, default gpt-4o-mini
	OpenAIBaseURL   string
	DeepgramBaseURL string
	HTTPClient      *http.Client
}

// Orchestrator applies the translation fallback chain.
type Orchestrator struct {
	creds     Credentials
	factories map[string]func(apiKey string) Translator
}

func NewOrchestrator(creds Credentials, cfg Config) *Orchestrator {
	openAIModel := cfg.OpenAIModel
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}
	return &Orchestrator{
		creds: creds,
		factories: map[string]func(apiKey string) Translator{
			"openai": func(apiKey string) Translator {
				return newOpenAITranslator(apiKey, openAIModel, cfg.OpenAIBaseURL, cfg.HTTPClient)
			},
			"deepgram": func(apiKey string) Translator {
				return newDeepgramTranslator(apiKey, cfg.DeepgramBaseURL, cfg.HTTPClient)
			},
		},
	}
}

// Apply tries each backend in fallbackOrder until one translates the whole
// document. adapter is the job's transcription adapter, consulted for the
// "native" backend. The input document is never mutated; the returned
// document carries translated text on success and is the input unchanged on
// exhaustion.
func (o *Orchestrator) Apply(ctx context.Context, doc *transcript.Document, adapter provider.Adapter, providerModel, targetLanguage string, fallbackOrder []string) Outcome {
	for _, backend := range fallbackOrder {
		if backend == BackendNative {
			native, ok := adapter.(provider.NativeTranslator)
			if !ok {
				continue
			}
			translated, err := native.TranslateNative(ctx, doc, providerModel, targetLanguage)
			if err != nil {
				log.Warn().Err(err).Str("backend", BackendNative).Msg("translation backend failed")
				continue
			}
			if translated == nil {
				continue
			}
			return Outcome{Document: translated, Backend: BackendNative}
		}

		factory, ok := o.factories[backend]
		if !ok {
			log.Warn().Str("backend", backend).Msg("unknown translation backend in fallback order")
			continue
		}
		apiKey, found, err := o.creds.Get(ctx, backend)
		if err != nil {
			log.Warn().Err(err).Str("backend", backend).Msg("credential lookup failed")
			continue
		}
		if !found {
			continue
		}

		translated, err := translateSegments(ctx, doc, factory(apiKey), targetLanguage)
		if err != nil {
			log.Warn().Err(err).Str("backend", backend).Msg("translation backend failed")
			continue
		}
		return Outcome{Document: translated, Backend: backend}
	}

	return Outcome{
		Document: doc,
		Warning: &model.Condition{
			Code:    "translation_failed",
			Message: "Translation failed for all backends; returning source transcript only.",
		},
	}
}

// translateSegments translates every segment independently. Any failure
// abandons the backend entirely; the partially translated copy is dropped.
func translateSegments(ctx context.Context, doc *transcript.Document, translator Translator, targetLanguage string) (*transcript.Document, error) {
	out := *doc
	out.Segments = make([]transcript.Segment, len(doc.Segments))
	copy(out.Segments, doc.Segments)

	for i := range out.Segments {
		translated, err := translator.Translate(ctx, out.Segments[i].Text, targetLanguage, doc.DetectedLanguage)
		if err != nil {
			return nil, err
		}
		out.Segments[i].TranslatedText = translated
	}
	return &out, nil
}
