package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func deepgramListenPayload() map[string]any {
	speaker0 := 0
	_ = speaker0
	return map[string]any{
		"results": map[string]any{
			"detected_language": "en",
			"channels": []any{map[string]any{
				"alternatives": []any{map[string]any{
					"transcript": "Hi there. All good.",
					"words": []any{
						map[string]any{"word": "hi", "punctuated_word": "Hi", "start": 0.0, "end": 0.3, "speaker": 0},
						map[string]any{"word": "there", "punctuated_word": "there.", "start": 0.3, "end": 0.6, "speaker": 0},
						map[string]any{"word": "all", "punctuated_word": "All", "start": 1.0, "end": 1.2, "speaker": 1},
						map[string]any{"word": "good", "punctuated_word": "good.", "start": 1.2, "end": 1.5, "speaker": 1},
					},
				}},
			}},
		},
	}
}

func TestDeepgramTranscribeNormalizesWords(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if auth := r.Header.Get("Authorization"); auth != "Token dg-key" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewEncoder(w).Encode(deepgramListenPayload())
	}))
	defer server.Close()

	adapter, err := New(Deepgram, Options{APIKey: "dg-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	doc, err := adapter.Transcribe(context.Background(), Request{
		FileName:           "a.wav",
		Audio:              []byte("audio"),
		Model:              "nova-3",
		SourceLanguage:     "auto",
		DiarizationEnabled: true,
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if len(doc.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(doc.Segments))
	}
	if doc.Segments[0].Text != "Hi there." {
		t.Errorf("segment 1 text = %q", doc.Segments[0].Text)
	}
	if doc.Segments[0].Speaker != "spk-0" || doc.Segments[1].Speaker != "spk-1" {
		t.Errorf("speaker labels = %q, %q", doc.Segments[0].Speaker, doc.Segments[1].Speaker)
	}
	if doc.DetectedLanguage != "en" {
		t.Errorf("detected language = %q", doc.DetectedLanguage)
	}
	for _, want := range []string{"model=nova-3", "diarize=true", "punctuate=true"} {
		if !containsParam(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func containsParam(query, param string) bool {
	for _, part := range splitQuery(query) {
		if part == param {
			return true
		}
	}
	return false
}

func splitQuery(query string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(query); i++ {
		if i == len(query) || query[i] == '&' {
			parts = append(parts, query[start:i])
			start = i + 1
		}
	}
	return parts
}

func TestDeepgramTranscribeErrorCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"err_code":"RATE_LIMITED"}`))
	}))
	defer server.Close()

	adapter, _ := New(Deepgram, Options{APIKey: "dg-key", BaseURL: server.URL})
	_, err := adapter.Transcribe(context.Background(), Request{Model: "nova-3", Audio: []byte("x")})
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error type = %T, want *RPCError", err)
	}
	if rpcErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", rpcErr.StatusCode)
	}
	if rpcErr.Body != `{"err_code":"RATE_LIMITED"}` {
		t.Errorf("body = %q", rpcErr.Body)
	}
}

func TestDeepgramTranscribeEmptyWordsCollapses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": map[string]any{
				"channels": []any{map[string]any{
					"alternatives": []any{map[string]any{"transcript": "just text", "words": []any{}}},
				}},
			},
		})
	}))
	defer server.Close()

	adapter, _ := New(Deepgram, Options{APIKey: "dg-key", BaseURL: server.URL})
	doc, err := adapter.Transcribe(context.Background(), Request{Model: "nova-3", Audio: []byte("x")})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(doc.Segments) != 1 || doc.Segments[0].Text != "just text" {
		t.Fatalf("segments = %+v, want single collapsed segment", doc.Segments)
	}
	if doc.Segments[0].Start != 0 || doc.Segments[0].End != 0 {
		t.Error("collapsed segment must be zero-duration")
	}
}

func TestDeepgramNativeTranslation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{"translated_text": req["text"] + " [fr]"})
	}))
	defer server.Close()

	adapter, _ := New(Deepgram, Options{APIKey: "dg-key", BaseURL: server.URL})
	native, ok := adapter.(NativeTranslator)
	if !ok {
		t.Fatal("deepgram adapter must implement NativeTranslator")
	}

	doc := docWithSegments("hello", "world")
	out, err := native.TranslateNative(context.Background(), doc, "nova-3", "fr")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out.Segments[0].TranslatedText != "hello [fr]" || out.Segments[1].TranslatedText != "world [fr]" {
		t.Errorf("translated = %q, %q", out.Segments[0].TranslatedText, out.Segments[1].TranslatedText)
	}
	if doc.Segments[0].TranslatedText != "" {
		t.Error("input document must not be mutated")
	}
}
