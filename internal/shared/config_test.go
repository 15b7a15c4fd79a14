package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "rdex.db" {
			t.Errorf("expected database path rdex.db, got %s", config.Database.Path)
		}

		if config.AI.DefaultProvider != "gemini" {
			t.Errorf("expected default provider gemini, got %s", config.AI.DefaultProvider)
		}

		if config.AI.MaxPromptChars != 50000 {
			t.Errorf("expected max prompt chars 50000, got %d", config.AI.MaxPromptChars)
		}

		if config.Auth.ExpiryMarginSeconds != 300 {
			t.Errorf("expected expiry margin 300, got %d", config.Auth.ExpiryMarginSeconds)
		}

		if config.API.RDEAPI != "https://rde-api.nims.go.jp" {
			t.Errorf("unexpected rde api base %s", config.API.RDEAPI)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults for missing keys", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[server]
port = 8080

[login]
username = "someone@example.com"

[ai.openai]
enabled = true
api_key = "sk-test"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.Server.Host != "127.0.0.1" {
			t.Errorf("expected default host to survive, got %s", config.Server.Host)
		}
		if config.Login.Username != "someone@example.com" {
			t.Errorf("expected username to load, got %s", config.Login.Username)
		}
		if !config.AI.OpenAI.Enabled || config.AI.OpenAI.APIKey != "sk-test" {
			t.Errorf("expected openai block to load, got %+v", config.AI.OpenAI)
		}
		if config.AI.OpenAI.BaseURL != "https://api.openai.com/v1" {
			t.Errorf("expected default openai base url, got %s", config.AI.OpenAI.BaseURL)
		}
	})

	t.Run("LoadConfig rejects malformed toml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestPathsConfig(t *testing.T) {
	t.Run("relative names resolve against data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := PathsConfig{DataDir: dir, TokenFile: "bearer_tokens.json", OutputDir: "output/rde/data"}

		if got := p.Tokens(); got != filepath.Join(dir, "bearer_tokens.json") {
			t.Errorf("unexpected token path %s", got)
		}
		if got := p.Output(); got != filepath.Join(dir, "output", "rde", "data") {
			t.Errorf("unexpected output path %s", got)
		}
	})

	t.Run("absolute names are kept", func(t *testing.T) {
		p := PathsConfig{DataDir: "/data", CookieFile: "/tmp/cookies.txt"}
		if got := p.Cookies(); got != "/tmp/cookies.txt" {
			t.Errorf("expected absolute path to be kept, got %s", got)
		}
	})
}
