package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/shared"
	"github.com/go-resty/resty/v2"
)

// Provider names used in configuration and on the command line.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderLocalLLM = "local_llm"
)

// Request is one prompt to complete.
type Request struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completion is a provider's answer.
type Completion struct {
	Text  string
	Usage map[string]any
}

// Provider completes prompts against one backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

func newRestyClient(hc *http.Client, timeout time.Duration) *resty.Client {
	var copied http.Client
	if hc != nil {
		copied = *hc
	}
	c := resty.NewWithClient(&copied).SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// providerError reports a non-200 answer the way the providers print it: status and body.
func providerError(name string, resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Errorf("%w: %s returned HTTP %d: %s", shared.ErrAPIRequest, name, resp.StatusCode(), body)
}

func decode(name string, resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %s returned malformed JSON: %v", shared.ErrAPIRequest, name, err)
	}
	return nil
}

// chatResponse is the OpenAI chat completions answer, also served by compatible local servers.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

func (r chatResponse) completion(name string) (*Completion, error) {
	if len(r.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", shared.ErrAPIRequest, name)
	}
	choice := r.Choices[0]
	text := ""
	if choice.Message.Content != nil {
		text = *choice.Message.Content
	}
	if text == "" {
		text = choice.Delta.Content
	}
	if text == "" {
		if choice.FinishReason == "length" {
			return nil, fmt.Errorf("%w: %s response was cut off by the token limit", shared.ErrAPIRequest, name)
		}
		return nil, fmt.Errorf("%w: %s returned an empty answer (finish_reason %q)", shared.ErrAPIRequest, name, choice.FinishReason)
	}
	return &Completion{Text: text, Usage: r.Usage}, nil
}
