package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/shared"
	"github.com/go-resty/resty/v2"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls the chat completions API.
type OpenAI struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewOpenAI returns an OpenAI provider. An empty base URL uses the public API.
func NewOpenAI(apiKey, baseURL string, hc *http.Client, timeout time.Duration) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAI{
		client:  newRestyClient(hc, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (p *OpenAI) Name() string { return ProviderOpenAI }

func (p *OpenAI) Complete(ctx context.Context, req Request) (*Completion, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is not set", shared.ErrMissingCredentials)
	}

	var out chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetBody(openAIBody(req)).
		Post(p.baseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providerError(ProviderOpenAI, resp)
	}
	if err := decode(ProviderOpenAI, resp, &out); err != nil {
		return nil, err
	}
	return out.completion(ProviderOpenAI)
}

// openAIBody shapes the request for the model family. gpt-5 models reject token and temperature
// settings, gpt-4.1 models take max_completion_tokens (nano variants are held to 50), and older
// models take max_tokens and temperature.
func openAIBody(req Request) map[string]any {
	body := map[string]any{
		"model":    req.Model,
		"messages": []map[string]string{{"role": "user", "content": req.Prompt}},
	}
	model := strings.ToLower(req.Model)
	switch {
	case strings.HasPrefix(model, "gpt-5"):
	case strings.HasPrefix(model, "gpt-4.1"):
		if strings.Contains(model, "nano") {
			body["max_completion_tokens"] = 50
		} else {
			body["max_completion_tokens"] = max(1000, req.MaxTokens)
		}
	default:
		body["max_tokens"] = req.MaxTokens
		body["temperature"] = req.Temperature
	}
	return body
}
