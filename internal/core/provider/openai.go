package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

type openAIAdapter struct {
	client *openai.Client
}

func newOpenAIAdapter(opts Options) *openAIAdapter {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &openAIAdapter{client: openai.NewClientWithConfig(cfg)}
}

func (a *openAIAdapter) Provider() string { return OpenAI }

func (a *openAIAdapter) Transcribe(ctx context.Context, req Request) (*transcript.Document, error) {
	audioReq := openai.AudioRequest{
		Model:    req.Model,
		Reader:   bytes.NewReader(req.Audio),
		FilePath: req.FileName,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if req.SourceLanguage != "" && req.SourceLanguage != "auto" {
		audioReq.Language = req.SourceLanguage
	}

	resp, err := a.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &RPCError{Provider: OpenAI, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for i, s := range resp.Segments {
		segments = append(segments, transcript.Segment{
			ID:    i + 1,
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	if len(segments) == 0 {
		segments = SingleSegment(resp.Text)
	}

	return &transcript.Document{
		Provider:         OpenAI,
		Model:            req.Model,
		DetectedLanguage: resp.Language,
		Segments:         segments,
	}, nil
}

// TranslateNative applies whisper-1's translation route, which emits the
// transcript text directly; other models have no native route.
func (a *openAIAdapter) TranslateNative(_ context.Context, doc *transcript.Document, model, _ string) (*transcript.Document, error) {
	if model != "whisper-1" {
		return nil, nil
	}
	out := cloneDocument(doc)
	for i := range out.Segments {
		out.Segments[i].TranslatedText = out.Segments[i].Text
	}
	return out, nil
}

func cloneDocument(doc *transcript.Document) *transcript.Document {
	out := *doc
	out.Segments = make([]transcript.Segment, len(doc.Segments))
	copy(out.Segments, doc.Segments)
	return &out
}
