package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

const defaultElevenLabsURL = "https://api.elevenlabs.io"

type elevenLabsAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newElevenLabsAdapter(opts Options) *elevenLabsAdapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultElevenLabsURL
	}
	return &elevenLabsAdapter{apiKey: opts.APIKey, baseURL: baseURL, client: opts.httpClient()}
}

func (a *elevenLabsAdapter) Provider() string { return ElevenLabsScribe }

type elevenLabsSpan struct {
	Text      string  `json:"text"`
	Word      string  `json:"word"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Speaker   any     `json:"speaker"`
}

type elevenLabsResponse struct {
	Text         string           `json:"text"`
	Language     string           `json:"language"`
	LanguageCode string           `json:"language_code"`
	Segments     []elevenLabsSpan `json:"segments"`
	Words        []elevenLabsSpan `json:"words"`
}

func (a *elevenLabsAdapter) Transcribe(ctx context.Context, req Request) (*transcript.Document, error) {
	fields := map[string]string{"model_id": req.Model}
	if req.SourceLanguage != "" && req.SourceLanguage != "auto" {
		fields["language_code"] = req.SourceLanguage
	}
	if req.DiarizationEnabled {
		fields["diarize"] = "true"
	}
	if req.SpeakerCount > 0 {
		fields["num_speakers"] = strconv.Itoa(req.SpeakerCount)
	}

	body, contentType, err := multipartBody("file", req.FileName, req.Audio, fields)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/speech-to-text", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", a.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	var payload elevenLabsResponse
	if err := decodeResponse(ElevenLabsScribe, resp, &payload); err != nil {
		return nil, err
	}

	var segments []transcript.Segment
	if len(payload.Words) > 0 {
		words := make([]Word, 0, len(payload.Words))
		for _, w := range payload.Words {
			text := spanText(w)
			if text == "" {
				continue
			}
			words = append(words, Word{
				Text:    text,
				Start:   spanStart(w),
				End:     spanEnd(w),
				Speaker: speakerLabel(w.Speaker),
			})
		}
		segments = SegmentsFromWords(words, req.TimestampGranularity)
	} else {
		for _, s := range payload.Segments {
			text := spanText(s)
			if text == "" {
				continue
			}
			segments = append(segments, transcript.Segment{
				ID:      len(segments) + 1,
				Start:   spanStart(s),
				End:     spanEnd(s),
				Text:    text,
				Speaker: speakerLabel(s.Speaker),
			})
		}
	}
	if len(segments) == 0 {
		segments = SingleSegment(payload.Text)
	}

	detected := payload.LanguageCode
	if detected == "" {
		detected = payload.Language
	}

	return &transcript.Document{
		Provider:         ElevenLabsScribe,
		Model:            req.Model,
		DetectedLanguage: detected,
		Segments:         segments,
	}, nil
}

func spanText(s elevenLabsSpan) string {
	if text := strings.TrimSpace(s.Text); text != "" {
		return text
	}
	return strings.TrimSpace(s.Word)
}

func spanStart(s elevenLabsSpan) float64 {
	if s.Start != 0 {
		return s.Start
	}
	return s.StartTime
}

func spanEnd(s elevenLabsSpan) float64 {
	if s.End != 0 {
		return s.End
	}
	return s.EndTime
}

func speakerLabel(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
