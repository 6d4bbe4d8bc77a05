package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type openAITranslator struct {
	client *openai.Client
	model  string
}

func newOpenAITranslator(apiKey, chatModel, baseURL string, httpClient *http.Client) *openAITranslator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &openAITranslator{client: openai.NewClientWithConfig(cfg), model: chatModel}
}

func (t *openAITranslator) Provider() string { return "openai" }

func (t *openAITranslator) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error) {
	sourceHint := ""
	if sourceLanguage != "" {
		sourceHint = " from " + sourceLanguage
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a translation engine. Return only translated text with no commentary.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Translate this text%s to %s: %s", sourceHint, targetLanguage, text),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("openai translation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai translation returned no choices")
	}
	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return "", errors.New("openai translation returned empty text")
	}
	return translated, nil
}

type deepgramTranslator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newDeepgramTranslator(apiKey, baseURL string, httpClient *http.Client) *deepgramTranslator {
	if baseURL == "" {
		baseURL = "https://api.deepgram.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &deepgramTranslator{apiKey: apiKey, baseURL: baseURL, client: httpClient}
}

func (t *deepgramTranslator) Provider() string { return "deepgram" }

func (t *deepgramTranslator) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"text":            text,
		"target_language": targetLanguage,
		"source_language": sourceLanguage,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/translate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram translation: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("deepgram translation failed (%d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("deepgram translation: non-json response: %.200s", string(body))
	}
	translated := strings.TrimSpace(out.TranslatedText)
	if translated == "" {
		return "", errors.New("deepgram translation returned empty text")
	}
	return translated, nil
}
