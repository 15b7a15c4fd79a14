package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/google/uuid"
)

const (
	DefaultMaxPromptChars = 50000
	truncationNotice      = "\n\n[注意: プロンプトが長すぎるため切り詰められました]"
	connectionTestPrompt  = "Hello, this is a connection test."
)

// ResultRecorder stores dispatch results.
type ResultRecorder interface {
	Create(r *models.AIResult) error
}

// Result is the outcome of one dispatch.
type Result struct {
	Success      bool           `json:"success"`
	Response     string         `json:"response,omitempty"`
	Usage        map[string]any `json:"usage,omitempty"`
	Model        string         `json:"model"`
	Provider     string         `json:"provider"`
	ResponseTime time.Duration  `json:"response_time"`
	Template     string         `json:"template,omitempty"`
	Truncated    bool           `json:"truncated,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// ProviderInfo describes a configured provider.
type ProviderInfo struct {
	Name         string
	Enabled      bool
	Models       []string
	DefaultModel string
}

type registered struct {
	provider Provider
	info     ProviderInfo
}

// Dispatcher routes prompts to providers.
type Dispatcher struct {
	providers       map[string]registered
	defaultProvider string
	maxTokens       int
	temperature     float64
	maxPromptChars  int
	recorder        ResultRecorder
	logger          *log.Logger
}

// NewDispatcher builds providers from cfg. API keys fall back to OPENAI_API_KEY and GEMINI_API_KEY.
func NewDispatcher(cfg shared.AIConfig, hc *http.Client, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	d := &Dispatcher{
		providers:       map[string]registered{},
		defaultProvider: cfg.DefaultProvider,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
		maxPromptChars:  cfg.MaxPromptChars,
		logger:          logger.WithPrefix("ai"),
	}
	if d.maxPromptChars <= 0 {
		d.maxPromptChars = DefaultMaxPromptChars
	}

	openaiKey := cfg.OpenAI.APIKey
	if openaiKey == "" {
		openaiKey = shared.EnvOr("OPENAI_API_KEY", "")
	}
	geminiKey := cfg.Gemini.APIKey
	if geminiKey == "" {
		geminiKey = shared.EnvOr("GEMINI_API_KEY", "")
	}

	d.Register(NewOpenAI(openaiKey, cfg.OpenAI.BaseURL, hc, timeout), cfg.OpenAI)
	d.Register(NewGemini(geminiKey, cfg.Gemini.BaseURL, hc, timeout), cfg.Gemini)
	d.Register(NewLocalLLM(cfg.LocalLLM.BaseURL, hc, timeout), cfg.LocalLLM)
	return d
}

// Register adds or replaces a provider under its name.
func (d *Dispatcher) Register(p Provider, cfg shared.ProviderConfig) {
	d.providers[p.Name()] = registered{
		provider: p,
		info: ProviderInfo{
			Name:         p.Name(),
			Enabled:      cfg.Enabled,
			Models:       cfg.Models,
			DefaultModel: cfg.DefaultModel,
		},
	}
}

// SetRecorder attaches a result log.
func (d *Dispatcher) SetRecorder(r ResultRecorder) { d.recorder = r }

// Providers lists registered providers sorted by name.
func (d *Dispatcher) Providers() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(d.providers))
	for _, r := range d.providers {
		out = append(out, r.info)
	}
	slices.SortFunc(out, func(a, b ProviderInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// DefaultModel returns the configured default model for provider, or its first model.
func (d *Dispatcher) DefaultModel(provider string) string {
	r, ok := d.providers[provider]
	if !ok {
		return ""
	}
	if r.info.DefaultModel != "" {
		return r.info.DefaultModel
	}
	if len(r.info.Models) > 0 {
		return r.info.Models[0]
	}
	return ""
}

// Send dispatches prompt once. Empty provider and model take the configured defaults. The
// returned Result is non-nil whenever the provider was resolved, including on failure.
func (d *Dispatcher) Send(ctx context.Context, prompt, provider, model string) (*Result, error) {
	return d.send(ctx, prompt, "", provider, model)
}

// SendTemplate renders tpl with values and sends the result.
func (d *Dispatcher) SendTemplate(ctx context.Context, tpl *Template, values map[string]string, provider, model string) (*Result, error) {
	prompt, err := tpl.Render(values)
	if err != nil {
		return nil, err
	}
	return d.send(ctx, prompt, tpl.Name, provider, model)
}

func (d *Dispatcher) send(ctx context.Context, prompt, template, provider, model string) (*Result, error) {
	if provider == "" {
		provider = d.defaultProvider
	}
	r, ok := d.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownProvider, provider)
	}
	if !r.info.Enabled {
		return nil, fmt.Errorf("%w: %s", shared.ErrProviderDisabled, provider)
	}
	if model == "" {
		model = d.DefaultModel(provider)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: no model configured for %s", shared.ErrInvalidConfig, provider)
	}

	prompt, truncated := Truncate(prompt, d.maxPromptChars)
	if truncated {
		d.logger.Warn("prompt truncated", "limit", d.maxPromptChars)
	}

	res := &Result{Provider: provider, Model: model, Template: template, Truncated: truncated}
	start := time.Now()
	completion, err := r.provider.Complete(ctx, Request{
		Prompt:      prompt,
		Model:       model,
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
	})
	res.ResponseTime = time.Since(start)

	if err != nil {
		res.Error = err.Error()
		d.logger.Error("prompt failed", "provider", provider, "model", model, "err", err)
	} else {
		res.Success = true
		res.Response = completion.Text
		res.Usage = completion.Usage
		d.logger.Info("prompt answered", "provider", provider, "model", model, "elapsed", res.ResponseTime)
	}
	d.record(prompt, res)
	return res, err
}

// TestConnection sends a short fixed prompt with the provider's default model.
func (d *Dispatcher) TestConnection(ctx context.Context, provider string) (*Result, error) {
	return d.Send(ctx, connectionTestPrompt, provider, "")
}

func (d *Dispatcher) record(prompt string, res *Result) {
	if d.recorder == nil {
		return
	}
	sum := sha256.Sum256([]byte(prompt))
	rec := &models.AIResult{
		ResultID:     uuid.NewString(),
		Provider:     res.Provider,
		Model:        res.Model,
		PromptHash:   hex.EncodeToString(sum[:]),
		Template:     res.Template,
		Response:     res.Response,
		Success:      res.Success,
		ErrorMessage: res.Error,
		ResponseTime: res.ResponseTime,
		Created:      time.Now().UTC(),
	}
	if err := d.recorder.Create(rec); err != nil {
		d.logger.Warn("failed to record ai result", "err", err)
	}
}

// Truncate cuts prompt to limit characters and appends a notice. It reports whether it cut.
func Truncate(prompt string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(prompt) <= limit {
		return prompt, false
	}
	runes := []rune(prompt)
	return string(runes[:limit]) + truncationNotice, true
}
