package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	logger := shared.NewLogger(&strings.Builder{})
	logger.SetLevel(log.FatalLevel)
	return logger
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

type stubProvider struct {
	name    string
	text    string
	err     error
	prompts []string
	models  []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, req Request) (*Completion, error) {
	s.prompts = append(s.prompts, req.Prompt)
	s.models = append(s.models, req.Model)
	if s.err != nil {
		return nil, s.err
	}
	return &Completion{Text: s.text}, nil
}

type memRecorder struct {
	results []*models.AIResult
}

func (m *memRecorder) Create(r *models.AIResult) error {
	m.results = append(m.results, r)
	return nil
}

func TestOpenAI(t *testing.T) {
	t.Run("request body by model family", func(t *testing.T) {
		base := Request{Prompt: "hi", MaxTokens: 200, Temperature: 0.3}

		req := base
		req.Model = "gpt-5-mini"
		body := openAIBody(req)
		assert.NotContains(t, body, "max_tokens")
		assert.NotContains(t, body, "max_completion_tokens")
		assert.NotContains(t, body, "temperature")

		req.Model = "gpt-4.1-nano"
		assert.Equal(t, 50, openAIBody(req)["max_completion_tokens"])

		req.Model = "gpt-4.1"
		body = openAIBody(req)
		assert.Equal(t, 1000, body["max_completion_tokens"])
		assert.NotContains(t, body, "temperature")

		req.Model = "gpt-4o-mini"
		body = openAIBody(req)
		assert.Equal(t, 200, body["max_tokens"])
		assert.Equal(t, 0.3, body["temperature"])
	})

	t.Run("completes a prompt", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			body := decodeBody(t, r)
			assert.Equal(t, "gpt-4o-mini", body["model"])
			writeJSON(w, 200, `{"choices":[{"message":{"content":"こんにちは"},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`)
		}))
		defer srv.Close()

		p := NewOpenAI("sk-test", srv.URL+"/", nil, 0)
		got, err := p.Complete(context.Background(), Request{Prompt: "hi", Model: "gpt-4o-mini"})
		require.NoError(t, err)
		assert.Equal(t, "こんにちは", got.Text)
		assert.EqualValues(t, 12, got.Usage["total_tokens"])
	})

	t.Run("empty answer cut by length", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, `{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`)
		}))
		defer srv.Close()

		_, err := NewOpenAI("sk-test", srv.URL, nil, 0).Complete(context.Background(), Request{Model: "gpt-5"})
		require.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Contains(t, err.Error(), "token limit")
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 429, `{"error":{"message":"rate limited"}}`)
		}))
		defer srv.Close()

		_, err := NewOpenAI("sk-test", srv.URL, nil, 0).Complete(context.Background(), Request{Model: "gpt-4o"})
		require.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Contains(t, err.Error(), "HTTP 429")
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewOpenAI("", "", nil, 0).Complete(context.Background(), Request{Model: "gpt-4o"})
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})
}

func TestGemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		body := decodeBody(t, r)
		cfg := body["generationConfig"].(map[string]any)
		assert.EqualValues(t, 100, cfg["maxOutputTokens"])
		writeJSON(w, 200, `{"candidates":[{"content":{"parts":[{"text":"answer"}]}}],"usageMetadata":{"totalTokenCount":7}}`)
	}))
	defer srv.Close()

	t.Run("completes a prompt", func(t *testing.T) {
		p := NewGemini("g-key", srv.URL, nil, 0)
		got, err := p.Complete(context.Background(), Request{Prompt: "q", Model: "gemini-2.0-flash", MaxTokens: 100})
		require.NoError(t, err)
		assert.Equal(t, "answer", got.Text)
		assert.EqualValues(t, 7, got.Usage["totalTokenCount"])
	})

	t.Run("no candidates", func(t *testing.T) {
		empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, `{"candidates":[]}`)
		}))
		defer empty.Close()

		_, err := NewGemini("g-key", empty.URL, nil, 0).Complete(context.Background(), Request{Model: "m"})
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})
}

func TestLocalLLM(t *testing.T) {
	t.Run("ollama generate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/generate", r.URL.Path)
			body := decodeBody(t, r)
			assert.Equal(t, false, body["stream"])
			assert.Equal(t, "llama3", body["model"])
			writeJSON(w, 200, `{"response":"local answer","eval_count":5}`)
		}))
		defer srv.Close()

		p := NewLocalLLM(srv.URL+"/api/generate", nil, 0)
		got, err := p.Complete(context.Background(), Request{Prompt: "q", Model: "llama3"})
		require.NoError(t, err)
		assert.Equal(t, "local answer", got.Text)
		assert.Equal(t, 5, got.Usage["eval_count"])
	})

	t.Run("openai compatible server", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			writeJSON(w, 200, `{"choices":[{"message":{"content":"compat"}}]}`)
		}))
		defer srv.Close()

		got, err := NewLocalLLM(srv.URL+"/v1", nil, 0).Complete(context.Background(), Request{Model: "qwen"})
		require.NoError(t, err)
		assert.Equal(t, "compat", got.Text)
	})

	t.Run("server down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		_, err := NewLocalLLM(addr+"/api/generate", nil, 0).Complete(context.Background(), Request{Model: "m"})
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})
}

func TestTemplate(t *testing.T) {
	t.Run("replaces every declared placeholder", func(t *testing.T) {
		tpl := NewTemplate("t", "名前: {name}\n番号: {{grant}}\n再掲: {name}")
		assert.Equal(t, []string{"name", "grant"}, tpl.Keys)

		out, err := tpl.Render(map[string]string{"name": "試料A", "grant": "JPMXP1234"})
		require.NoError(t, err)
		assert.Equal(t, "名前: 試料A\n番号: JPMXP1234\n再掲: 試料A", out)
		assert.Empty(t, tpl.Unresolved(out))
	})

	t.Run("missing key", func(t *testing.T) {
		tpl := NewTemplate("t", "{a} {b}")
		_, err := tpl.Render(map[string]string{"a": "x"})
		require.ErrorIs(t, err, shared.ErrTemplateKey)
		assert.Contains(t, err.Error(), "b")
	})

	t.Run("blank value is marked unset", func(t *testing.T) {
		out, err := NewTemplate("t", "説明: {description}").Render(map[string]string{"description": "  "})
		require.NoError(t, err)
		assert.Equal(t, "説明: [description未設定]", out)
	})

	t.Run("values are not expanded again", func(t *testing.T) {
		out, err := NewTemplate("t", "{a}/{b}").Render(map[string]string{"a": "{b}", "b": "B"})
		require.NoError(t, err)
		assert.Equal(t, "{b}/B", out)
	})

	t.Run("undeclared braces are left alone", func(t *testing.T) {
		tpl := NewTemplate("t", `{name} {"keywords": []}`, "name")
		out, err := tpl.Render(map[string]string{"name": "n"})
		require.NoError(t, err)
		assert.Equal(t, `n {"keywords": []}`, out)
	})

	t.Run("built-in templates render completely", func(t *testing.T) {
		templates, err := LoadTemplates("")
		require.NoError(t, err)
		require.Contains(t, templates, "dataset_keywords")

		for name, tpl := range templates {
			values := map[string]string{}
			for _, key := range tpl.Keys {
				values[key] = "v"
			}
			out, err := tpl.Render(values)
			require.NoError(t, err, name)
			assert.Empty(t, tpl.Unresolved(out), name)
		}

		out, err := templates["dataset_keywords"].Render(map[string]string{
			"name": "n", "subject_title": "s", "description": "d",
		})
		require.NoError(t, err)
		assert.Contains(t, out, `{"keywords": ["...", "..."]}`)
	})

	t.Run("user file overrides built-ins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.toml")
		content := `
[templates.dataset_explanation]
text = "短く: {name}"

[templates.custom]
keys = ["x"]
text = "x={x}"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		templates, err := LoadTemplates(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"name"}, templates["dataset_explanation"].Keys)
		assert.Equal(t, "custom", templates["custom"].Name)
		assert.Contains(t, templates, "entry_summary")
	})

	t.Run("missing user file", func(t *testing.T) {
		templates, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Len(t, templates, 3)
	})

	t.Run("malformed user file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[templates"), 0o644))
		_, err := LoadTemplates(path)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}

func TestDatasetContext(t *testing.T) {
	body := `{
	  "data": {
	    "type": "dataset", "id": "ds1",
	    "attributes": {"name": "XRD", "grantNumber": "JPMXP1222", "subjectTitle": "薄膜", "description": ""},
	    "relationships": {
	      "template": {"data": {"type": "datasetTemplate", "id": "tpl1"}},
	      "instruments": {"data": [{"type": "instrument", "id": "i1"}, {"type": "instrument", "id": "i2"}]}
	    }
	  },
	  "included": [
	    {"type": "datasetTemplate", "id": "tpl1", "attributes": {"nameJa": "XRDテンプレート", "datasetType": "ANALYSIS"}},
	    {"type": "instrument", "id": "i1", "attributes": {"nameJa": "回折装置"}}
	  ]
	}`
	doc, err := models.ParseDocument([]byte(body))
	require.NoError(t, err)

	values, err := DatasetContext(doc)
	require.NoError(t, err)
	assert.Equal(t, "XRD", values["name"])
	assert.Equal(t, "JPMXP1222", values["grant_number"])
	assert.Equal(t, "ANALYSIS", values["dataset_type"])
	assert.Equal(t, "XRDテンプレート", values["template_name"])
	assert.Equal(t, "回折装置, i2", values["instruments"])

	templates, err := LoadTemplates("")
	require.NoError(t, err)
	out, err := templates["dataset_explanation"].Render(values)
	require.NoError(t, err)
	assert.Contains(t, out, "現在の説明: [description未設定]")
}

func TestDispatcher(t *testing.T) {
	newDispatcher := func(cfg shared.AIConfig) *Dispatcher {
		return NewDispatcher(cfg, nil, quietLogger())
	}
	enabled := shared.ProviderConfig{Enabled: true, Models: []string{"m1", "m2"}}

	t.Run("default provider and model", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{DefaultProvider: "stub"})
		stub := &stubProvider{name: "stub", text: "ok"}
		d.Register(stub, enabled)

		res, err := d.Send(context.Background(), "prompt", "", "")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "ok", res.Response)
		assert.Equal(t, "stub", res.Provider)
		assert.Equal(t, "m1", res.Model)
		assert.Equal(t, []string{"m1"}, stub.models)
	})

	t.Run("explicit default model wins", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{})
		d.Register(&stubProvider{name: "stub"}, shared.ProviderConfig{Enabled: true, Models: []string{"a"}, DefaultModel: "b"})
		assert.Equal(t, "b", d.DefaultModel("stub"))
		assert.Empty(t, d.DefaultModel("missing"))
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := newDispatcher(shared.AIConfig{}).Send(context.Background(), "p", "nope", "")
		assert.ErrorIs(t, err, shared.ErrUnknownProvider)
	})

	t.Run("disabled provider", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{})
		stub := &stubProvider{name: "stub"}
		d.Register(stub, shared.ProviderConfig{Models: []string{"m"}})

		_, err := d.Send(context.Background(), "p", "stub", "")
		assert.ErrorIs(t, err, shared.ErrProviderDisabled)
		assert.Empty(t, stub.prompts)
	})

	t.Run("no model configured", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{})
		d.Register(&stubProvider{name: "stub"}, shared.ProviderConfig{Enabled: true})
		_, err := d.Send(context.Background(), "p", "stub", "")
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})

	t.Run("truncates long prompts", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{MaxPromptChars: 5})
		stub := &stubProvider{name: "stub", text: "ok"}
		d.Register(stub, enabled)

		res, err := d.Send(context.Background(), "あいうえおかきくけこ", "stub", "")
		require.NoError(t, err)
		assert.True(t, res.Truncated)
		require.Len(t, stub.prompts, 1)
		assert.True(t, strings.HasPrefix(stub.prompts[0], "あいうえお\n\n[注意"))
		assert.NotContains(t, stub.prompts[0], "か")
	})

	t.Run("failure is returned and recorded", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{})
		rec := &memRecorder{}
		d.SetRecorder(rec)
		d.Register(&stubProvider{name: "stub", err: errors.New("boom")}, enabled)

		res, err := d.Send(context.Background(), "p", "stub", "m2")
		require.Error(t, err)
		require.NotNil(t, res)
		assert.False(t, res.Success)
		assert.Equal(t, "boom", res.Error)

		require.Len(t, rec.results, 1)
		got := rec.results[0]
		assert.Equal(t, "m2", got.Model)
		assert.False(t, got.Success)
		assert.Len(t, got.PromptHash, 64)
		assert.NotEmpty(t, got.ResultID)
	})

	t.Run("template name is recorded", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{})
		rec := &memRecorder{}
		d.SetRecorder(rec)
		stub := &stubProvider{name: "stub", text: "ok"}
		d.Register(stub, enabled)

		tpl := NewTemplate("greeting", "hello {who}")
		res, err := d.SendTemplate(context.Background(), tpl, map[string]string{"who": "rde"}, "stub", "")
		require.NoError(t, err)
		assert.Equal(t, "greeting", res.Template)
		assert.Equal(t, []string{"hello rde"}, stub.prompts)
		require.Len(t, rec.results, 1)
		assert.Equal(t, "greeting", rec.results[0].Template)

		_, err = d.SendTemplate(context.Background(), tpl, nil, "stub", "")
		assert.ErrorIs(t, err, shared.ErrTemplateKey)
	})

	t.Run("api key from environment", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer env-key", r.Header.Get("Authorization"))
			writeJSON(w, 200, `{"choices":[{"message":{"content":"pong"}}]}`)
		}))
		defer srv.Close()
		t.Setenv("OPENAI_API_KEY", "env-key")

		d := newDispatcher(shared.AIConfig{
			DefaultProvider: ProviderOpenAI,
			OpenAI:          shared.ProviderConfig{Enabled: true, BaseURL: srv.URL, DefaultModel: "gpt-4o-mini"},
		})
		res, err := d.TestConnection(context.Background(), ProviderOpenAI)
		require.NoError(t, err)
		assert.Equal(t, "pong", res.Response)
	})

	t.Run("lists providers", func(t *testing.T) {
		d := newDispatcher(shared.AIConfig{Gemini: shared.ProviderConfig{Enabled: true}})
		infos := d.Providers()
		require.Len(t, infos, 3)
		assert.Equal(t, ProviderGemini, infos[0].Name)
		assert.True(t, infos[0].Enabled)
		assert.Equal(t, ProviderLocalLLM, infos[1].Name)
		assert.Equal(t, ProviderOpenAI, infos[2].Name)
	})
}

func TestTruncate(t *testing.T) {
	s, cut := Truncate("short", 10)
	assert.False(t, cut)
	assert.Equal(t, "short", s)

	s, cut = Truncate(strings.Repeat("字", 20), 10)
	assert.True(t, cut)
	assert.Equal(t, 10+utf8.RuneCountInString(truncationNotice), utf8.RuneCountInString(s))

	s, cut = Truncate("anything", 0)
	assert.False(t, cut)
	assert.Equal(t, "anything", s)
}
