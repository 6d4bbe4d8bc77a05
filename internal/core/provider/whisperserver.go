package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

const defaultWhisperServerURL = "http://localhost:9000"

// whisperServerAdapter targets a self-hosted whisper.cpp server speaking the
// verbose_json transcription protocol. No API key required.
type whisperServerAdapter struct {
	baseURL string
	client  *http.Client
}

func newWhisperServerAdapter(opts Options) *whisperServerAdapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperServerURL
	}
	return &whisperServerAdapter{baseURL: baseURL, client: opts.httpClient()}
}

func (a *whisperServerAdapter) Provider() string { return WhisperServer }

type whisperServerResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (a *whisperServerAdapter) Transcribe(ctx context.Context, req Request) (*transcript.Document, error) {
	fields := map[string]string{
		"model":           req.Model,
		"response_format": "verbose_json",
	}
	if req.SourceLanguage != "" && req.SourceLanguage != "auto" {
		fields["language"] = req.SourceLanguage
	}

	body, contentType, err := multipartBody("file", req.FileName, req.Audio, fields)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/inference", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	var payload whisperServerResponse
	if err := decodeResponse(WhisperServer, resp, &payload); err != nil {
		return nil, err
	}

	segments := make([]transcript.Segment, 0, len(payload.Segments))
	for _, s := range payload.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{
			ID:    len(segments) + 1,
			Start: s.Start,
			End:   s.End,
			Text:  text,
		})
	}
	if len(segments) == 0 {
		segments = SingleSegment(payload.Text)
	}

	return &transcript.Document{
		Provider:         WhisperServer,
		Model:            req.Model,
		DetectedLanguage: payload.Language,
		Segments:         segments,
	}, nil
}
