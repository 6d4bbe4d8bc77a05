package transcript

import (
	"strings"
	"testing"

	"github.com/polyscribe/polyscribe/internal/core/model"
)

func sampleDocument() *Document {
	return &Document{
		Provider:         "openai",
		Model:            "gpt-4o-mini-transcribe",
		DetectedLanguage: "en",
		Segments: []Segment{
			{ID: 1, Start: 0.0, End: 1.25, Text: "Hello <world>", TranslatedText: "Bonjour monde"},
			{ID: 2, Start: 1.25, End: 2.0, Text: "Second line", TranslatedText: "Deuxieme ligne"},
		},
	}
}

func TestRenderVariants(t *testing.T) {
	doc := sampleDocument()

	cases := []struct {
		name    string
		format  string
		variant model.Variant
		want    []string
		exclude []string
	}{
		{"srt source", FormatSRT, model.VariantSource, []string{"Hello <world>", "1\n00:00:00,000 --> 00:00:01,250"}, []string{"Bonjour"}},
		{"srt translated", FormatSRT, model.VariantTranslated, []string{"Bonjour monde", "Deuxieme ligne"}, nil},
		{"vtt source", FormatVTT, model.VariantSource, []string{"WEBVTT", "00:00:00.000 --> 00:00:01.250"}, nil},
		{"vtt translated", FormatVTT, model.VariantTranslated, []string{"WEBVTT", "Bonjour monde"}, nil},
		{"txt source", FormatTXT, model.VariantSource, []string{"Hello <world>\nSecond line"}, nil},
		{"txt translated", FormatTXT, model.VariantTranslated, []string{"Bonjour monde\nDeuxieme ligne"}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(doc, tc.format, tc.variant)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tc.exclude {
				if strings.Contains(got, bad) {
					t.Errorf("output should not contain %q:\n%s", bad, got)
				}
			}
			if !strings.HasSuffix(got, "\n") || strings.HasSuffix(got, "\n\n") {
				t.Errorf("output must end with exactly one newline")
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	doc := sampleDocument()
	for _, format := range []string{FormatSRT, FormatVTT, FormatTXT, FormatHTML, FormatJSON} {
		a, err := Render(doc, format, model.VariantSource)
		if err != nil {
			t.Fatalf("render %s: %v", format, err)
		}
		b, err := Render(doc, format, model.VariantSource)
		if err != nil {
			t.Fatalf("render %s: %v", format, err)
		}
		if a != b {
			t.Errorf("%s output not byte-identical across runs", format)
		}
	}
}

func TestTranslatedVariantFallsBackToSource(t *testing.T) {
	doc := &Document{
		Provider: "deepgram",
		Model:    "nova-3",
		Segments: []Segment{
			{ID: 1, Start: 0, End: 1, Text: "translated ok", TranslatedText: "ça marche"},
			{ID: 2, Start: 1, End: 2, Text: "no translation here"},
		},
	}

	for _, format := range []string{FormatTXT, FormatSRT, FormatVTT} {
		got, err := Render(doc, format, model.VariantTranslated)
		if err != nil {
			t.Fatalf("render %s: %v", format, err)
		}
		if !strings.Contains(got, "ça marche") {
			t.Errorf("%s: missing translated text", format)
		}
		if !strings.Contains(got, "no translation here") {
			t.Errorf("%s: missing source fallback for untranslated segment", format)
		}
	}
}

// The timestamp math floors whole seconds and takes the sub-second remainder
// times 1000 for the millisecond field.
func TestTimestampFormatting(t *testing.T) {
	doc := &Document{
		Provider: "openai",
		Model:    "whisper-1",
		Segments: []Segment{{ID: 1, Start: 3661.25, End: 3661.5, Text: "tick"}},
	}

	srt, err := Render(doc, FormatSRT, model.VariantSource)
	if err != nil {
		t.Fatalf("render srt: %v", err)
	}
	if !strings.Contains(srt, "01:01:01,250 --> 01:01:01,500") {
		t.Errorf("srt timestamp line wrong:\n%s", srt)
	}

	vtt, err := Render(doc, FormatVTT, model.VariantSource)
	if err != nil {
		t.Fatalf("render vtt: %v", err)
	}
	if !strings.Contains(vtt, "01:01:01.250 --> 01:01:01.500") {
		t.Errorf("vtt timestamp line wrong:\n%s", vtt)
	}
}

// Milliseconds truncate rather than round: 1.2 s is just under 1.2 in
// binary, so its millisecond field is 199, not 200.
func TestTimestampTruncation(t *testing.T) {
	doc := &Document{
		Provider: "openai",
		Model:    "whisper-1",
		Segments: []Segment{{ID: 1, Start: 0, End: 1.2, Text: "tick"}},
	}

	srt, err := Render(doc, FormatSRT, model.VariantSource)
	if err != nil {
		t.Fatalf("render srt: %v", err)
	}
	if !strings.Contains(srt, "00:00:00,000 --> 00:00:01,199") {
		t.Errorf("srt timestamp line wrong:\n%s", srt)
	}
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	got, err := Render(sampleDocument(), FormatHTML, model.VariantSource)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if strings.Contains(got, "<world>") {
		t.Error("html output contains unescaped segment text")
	}
	if !strings.Contains(got, "&lt;world&gt;") {
		t.Error("html output missing escaped segment text")
	}
	if !strings.Contains(got, "Bonjour monde") {
		t.Error("html output missing translated column")
	}
}

func TestRenderJSONIncludesDocumentFields(t *testing.T) {
	got, err := Render(sampleDocument(), FormatJSON, model.VariantSource)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	for _, want := range []string{`"provider": "openai"`, `"detected_language": "en"`, `"segments"`} {
		if !strings.Contains(got, want) {
			t.Errorf("json output missing %s:\n%s", want, got)
		}
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	if _, err := Render(sampleDocument(), "docx", model.VariantSource); err == nil {
		t.Fatal("expected unsupported format error")
	}
	if _, err := Render(sampleDocument(), FormatTXT, model.Variant("combined")); err == nil {
		t.Fatal("expected variant error for txt")
	}
}
