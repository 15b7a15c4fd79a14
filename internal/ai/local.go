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

const (
	DefaultLocalLLMBaseURL = "http://localhost:11434/api/generate"

	ollamaTimeout = 300 * time.Second
)

// LocalLLM calls a local model server. A base URL containing /api/generate speaks Ollama's native
// API; anything else is treated as an OpenAI-compatible server.
type LocalLLM struct {
	client  *resty.Client
	baseURL string
}

// NewLocalLLM returns a local provider. Ollama's native API gets a 300s timeout regardless of
// timeout, since the first request loads the model.
func NewLocalLLM(baseURL string, hc *http.Client, timeout time.Duration) *LocalLLM {
	if baseURL == "" {
		baseURL = DefaultLocalLLMBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	p := &LocalLLM{baseURL: baseURL}
	if p.ollama() {
		timeout = ollamaTimeout
	}
	p.client = newRestyClient(hc, timeout)
	return p
}

func (p *LocalLLM) Name() string { return ProviderLocalLLM }

func (p *LocalLLM) ollama() bool { return strings.Contains(p.baseURL, "/api/generate") }

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	TotalDuration   int64  `json:"total_duration"`
}

func (p *LocalLLM) Complete(ctx context.Context, req Request) (*Completion, error) {
	if p.ollama() {
		return p.generate(ctx, req)
	}
	return p.chat(ctx, req)
}

func (p *LocalLLM) generate(ctx context.Context, req Request) (*Completion, error) {
	var out ollamaResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"model": req.Model, "prompt": req.Prompt, "stream": false}).
		Post(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot reach local LLM server at %s: %v", shared.ErrServiceUnavailable, p.baseURL, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providerError(ProviderLocalLLM, resp)
	}
	if err := decode(ProviderLocalLLM, resp, &out); err != nil {
		return nil, err
	}
	return &Completion{
		Text: out.Response,
		Usage: map[string]any{
			"prompt_eval_count": out.PromptEvalCount,
			"eval_count":        out.EvalCount,
			"total_duration":    out.TotalDuration,
		},
	}, nil
}

func (p *LocalLLM) chat(ctx context.Context, req Request) (*Completion, error) {
	var out chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model":       req.Model,
			"messages":    []map[string]string{{"role": "user", "content": req.Prompt}},
			"max_tokens":  req.MaxTokens,
			"temperature": req.Temperature,
			"stream":      false,
		}).
		Post(p.baseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("%w: cannot reach local LLM server at %s: %v", shared.ErrServiceUnavailable, p.baseURL, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providerError(ProviderLocalLLM, resp)
	}
	if err := decode(ProviderLocalLLM, resp, &out); err != nil {
		return nil, err
	}
	return out.completion(ProviderLocalLLM)
}
