package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/shared"
	"github.com/go-resty/resty/v2"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini calls the generateContent API.
type Gemini struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewGemini returns a Gemini provider. An empty base URL uses the public v1beta API.
func NewGemini(apiKey, baseURL string, hc *http.Client, timeout time.Duration) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &Gemini{
		client:  newRestyClient(hc, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (p *Gemini) Name() string { return ProviderGemini }

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata map[string]any `json:"usageMetadata"`
}

func (p *Gemini) Complete(ctx context.Context, req Request) (*Completion, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is not set", shared.ErrMissingCredentials)
	}

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": req.Prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": req.MaxTokens,
			"temperature":     req.Temperature,
		},
	}

	var out geminiResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		SetBody(body).
		Post(p.baseURL + "/models/" + url.PathEscape(req.Model) + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providerError(ProviderGemini, resp)
	}
	if err := decode(ProviderGemini, resp, &out); err != nil {
		return nil, err
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no candidates", shared.ErrAPIRequest)
	}
	return &Completion{Text: out.Candidates[0].Content.Parts[0].Text, Usage: out.UsageMetadata}, nil
}
