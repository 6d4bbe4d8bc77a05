package translate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/polyscribe/polyscribe/internal/core/provider"
	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

type fakeCreds map[string]string

func (f fakeCreds) Get(_ context.Context, providerName string) (string, bool, error) {
	key, ok := f[providerName]
	return key, ok, nil
}

type recordingTranslator struct {
	name     string
	fail     bool
	attempts *[]string
}

func (r *recordingTranslator) Provider() string { return r.name }

func (r *recordingTranslator) Translate(_ context.Context, text, targetLanguage, _ string) (string, error) {
	*r.attempts = append(*r.attempts, r.name)
	if r.fail {
		return "", errors.New("backend down")
	}
	return fmt.Sprintf("%s-%s-%s", text, targetLanguage, r.name), nil
}

// noNativeAdapter implements only provider.Adapter, so the "native" backend
// is skipped by the orchestrator.
type noNativeAdapter struct{}

func (noNativeAdapter) Provider() string { return "elevenlabs-scribe" }
func (noNativeAdapter) Transcribe(context.Context, provider.Request) (*transcript.Document, error) {
	return nil, errors.New("not used")
}

func sourceDoc() *transcript.Document {
	return &transcript.Document{
		Provider:         "elevenlabs-scribe",
		Model:            "scribe_v1",
		DetectedLanguage: "en",
		Segments: []transcript.Segment{
			{ID: 1, Start: 0, End: 1, Text: "hello"},
			{ID: 2, Start: 1, End: 2, Text: "world"},
		},
	}
}

func orchestratorWith(creds Credentials, translators map[string]Translator) *Orchestrator {
	o := &Orchestrator{creds: creds, factories: map[string]func(string) Translator{}}
	for name, tr := range translators {
		tr := tr
		o.factories[name] = func(string) Translator { return tr }
	}
	return o
}

func TestFallbackMovesToNextBackendAfterFailure(t *testing.T) {
	var attempts []string
	o := orchestratorWith(
		fakeCreds{"openai": "k1", "deepgram": "k2"},
		map[string]Translator{
			"openai":   &recordingTranslator{name: "openai", fail: true, attempts: &attempts},
			"deepgram": &recordingTranslator{name: "deepgram", attempts: &attempts},
		},
	)

	doc := sourceDoc()
	outcome := o.Apply(context.Background(), doc, noNativeAdapter{}, "scribe_v1", "fr", []string{"openai", "deepgram"})

	if outcome.Backend != "deepgram" {
		t.Fatalf("backend = %q, want deepgram", outcome.Backend)
	}
	if outcome.Warning != nil {
		t.Fatalf("unexpected warning: %+v", outcome.Warning)
	}
	if len(attempts) < 2 || attempts[0] != "openai" || attempts[len(attempts)-1] != "deepgram" {
		t.Errorf("attempts = %v, want openai tried before deepgram", attempts)
	}
	for i, seg := range outcome.Document.Segments {
		want := fmt.Sprintf("%s-fr-deepgram", doc.Segments[i].Text)
		if seg.TranslatedText != want {
			t.Errorf("segment %d translated = %q, want %q", i+1, seg.TranslatedText, want)
		}
	}
}

func TestFallbackExhaustionReturnsWarningAndUnchangedDocument(t *testing.T) {
	var attempts []string
	o := orchestratorWith(
		fakeCreds{"openai": "k1", "deepgram": "k2"},
		map[string]Translator{
			"openai":   &recordingTranslator{name: "openai", fail: true, attempts: &attempts},
			"deepgram": &recordingTranslator{name: "deepgram", fail: true, attempts: &attempts},
		},
	)

	doc := sourceDoc()
	outcome := o.Apply(context.Background(), doc, noNativeAdapter{}, "scribe_v1", "de", []string{"native", "openai", "deepgram"})

	if outcome.Backend != "" {
		t.Fatalf("backend = %q, want empty", outcome.Backend)
	}
	if outcome.Warning == nil || outcome.Warning.Code != "translation_failed" {
		t.Fatalf("warning = %+v, want translation_failed", outcome.Warning)
	}
	for _, seg := range outcome.Document.Segments {
		if seg.TranslatedText != "" {
			t.Errorf("segment %d should be untranslated, got %q", seg.ID, seg.TranslatedText)
		}
	}
}

func TestBackendWithoutCredentialIsSkippedSilently(t *testing.T) {
	var attempts []string
	o := orchestratorWith(
		fakeCreds{"deepgram": "k2"}, // no openai key stored
		map[string]Translator{
			"openai":   &recordingTranslator{name: "openai", attempts: &attempts},
			"deepgram": &recordingTranslator{name: "deepgram", attempts: &attempts},
		},
	)

	outcome := o.Apply(context.Background(), sourceDoc(), noNativeAdapter{}, "scribe_v1", "es", []string{"openai", "deepgram"})

	if outcome.Backend != "deepgram" {
		t.Fatalf("backend = %q, want deepgram", outcome.Backend)
	}
	for _, name := range attempts {
		if name == "openai" {
			t.Error("openai must not be attempted without a credential")
		}
	}
}

type nativeAdapter struct {
	noNativeAdapter
	calls int
}

func (n *nativeAdapter) TranslateNative(_ context.Context, doc *transcript.Document, _ string, targetLanguage string) (*transcript.Document, error) {
	n.calls++
	out := *doc
	out.Segments = append([]transcript.Segment(nil), doc.Segments...)
	for i := range out.Segments {
		out.Segments[i].TranslatedText = out.Segments[i].Text + "-" + targetLanguage + "-native"
	}
	return &out, nil
}

func TestNativeBackendPreferredWhenAvailable(t *testing.T) {
	var attempts []string
	o := orchestratorWith(
		fakeCreds{"openai": "k1"},
		map[string]Translator{"openai": &recordingTranslator{name: "openai", attempts: &attempts}},
	)

	adapter := &nativeAdapter{}
	outcome := o.Apply(context.Background(), sourceDoc(), adapter, "scribe_v1", "it", []string{"native", "openai"})

	if outcome.Backend != BackendNative {
		t.Fatalf("backend = %q, want native", outcome.Backend)
	}
	if adapter.calls != 1 {
		t.Errorf("native calls = %d, want 1", adapter.calls)
	}
	if len(attempts) != 0 {
		t.Errorf("openai should not run after native success, attempts = %v", attempts)
	}
	if got := outcome.Document.Segments[0].TranslatedText; got != "hello-it-native" {
		t.Errorf("translated = %q", got)
	}
}

func TestPartialBackendFailureIsNotApplied(t *testing.T) {
	// Fails on the second segment: the first segment's translation must not
	// leak into the outcome.
	failSecond := &flakyTranslator{}
	o := orchestratorWith(
		fakeCreds{"openai": "k1"},
		map[string]Translator{"openai": failSecond},
	)

	outcome := o.Apply(context.Background(), sourceDoc(), noNativeAdapter{}, "scribe_v1", "fr", []string{"openai"})

	if outcome.Warning == nil {
		t.Fatal("expected translation_failed warning")
	}
	for _, seg := range outcome.Document.Segments {
		if seg.TranslatedText != "" {
			t.Errorf("partial output applied to segment %d: %q", seg.ID, seg.TranslatedText)
		}
	}
}

type flakyTranslator struct{ calls int }

func (f *flakyTranslator) Provider() string { return "openai" }

func (f *flakyTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.calls++
	if f.calls >= 2 {
		return "", errors.New("mid-document failure")
	}
	return text + "-ok", nil
}
