package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/polyscribe/polyscribe/internal/core/transcript"
)

const defaultDeepgramURL = "https://api.deepgram.com"

type deepgramAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newDeepgramAdapter(opts Options) *deepgramAdapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultDeepgramURL
	}
	return &deepgramAdapter{apiKey: opts.APIKey, baseURL: baseURL, client: opts.httpClient()}
}

func (a *deepgramAdapter) Provider() string { return Deepgram }

type deepgramWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Speaker        *int    `json:"speaker"`
}

type deepgramResponse struct {
	Results struct {
		DetectedLanguage string `json:"detected_language"`
		Channels         []struct {
			Alternatives []struct {
				Transcript string         `json:"transcript"`
				Words      []deepgramWord `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (a *deepgramAdapter) Transcribe(ctx context.Context, req Request) (*transcript.Document, error) {
	query := url.Values{}
	query.Set("model", req.Model)
	query.Set("punctuate", "true")
	query.Set("smart_format", "true")
	if req.DiarizationEnabled {
		query.Set("diarize", "true")
	} else {
		query.Set("diarize", "false")
	}
	if req.SourceLanguage != "" && req.SourceLanguage != "auto" {
		query.Set("language", req.SourceLanguage)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/listen?"+query.Encode(), bytes.NewReader(req.Audio))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Token "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	var payload deepgramResponse
	if err := decodeResponse(Deepgram, resp, &payload); err != nil {
		return nil, err
	}

	var rawWords []deepgramWord
	var fullTranscript string
	if len(payload.Results.Channels) > 0 && len(payload.Results.Channels[0].Alternatives) > 0 {
		alt := payload.Results.Channels[0].Alternatives[0]
		rawWords = alt.Words
		fullTranscript = alt.Transcript
	}

	words := make([]Word, 0, len(rawWords))
	for _, w := range rawWords {
		text := strings.TrimSpace(w.PunctuatedWord)
		if text == "" {
			text = strings.TrimSpace(w.Word)
		}
		if text == "" {
			continue
		}
		var speaker string
		if w.Speaker != nil {
			speaker = fmt.Sprintf("spk-%d", *w.Speaker)
		}
		words = append(words, Word{Text: text, Start: w.Start, End: w.End, Speaker: speaker})
	}

	segments := SegmentsFromWords(words, req.TimestampGranularity)
	if len(segments) == 0 {
		segments = SingleSegment(fullTranscript)
	}

	return &transcript.Document{
		Provider:         Deepgram,
		Model:            req.Model,
		DetectedLanguage: payload.Results.DetectedLanguage,
		Segments:         segments,
	}, nil
}

type deepgramTranslation struct {
	TranslatedText string `json:"translated_text"`
}

// TranslateNative translates one request per segment via the deepgram
// translation endpoint, falling back to source text for empty responses.
func (a *deepgramAdapter) TranslateNative(ctx context.Context, doc *transcript.Document, _ string, targetLanguage string) (*transcript.Document, error) {
	out := cloneDocument(doc)
	for i := range out.Segments {
		var payload deepgramTranslation
		err := postJSON(ctx, a.client, a.baseURL+"/v1/translate",
			map[string]string{"Authorization": "Token " + a.apiKey},
			map[string]string{"text": out.Segments[i].Text, "target_language": targetLanguage},
			Deepgram, &payload)
		if err != nil {
			return nil, err
		}
		translated := strings.TrimSpace(payload.TranslatedText)
		if translated == "" {
			translated = out.Segments[i].Text
		}
		out.Segments[i].TranslatedText = translated
	}
	return out, nil
}
