package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Paths    PathsConfig    `toml:"paths"`
	Login    LoginConfig    `toml:"login"`
	Auth     AuthConfig     `toml:"auth"`
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	AI       AIConfig       `toml:"ai"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// PathsConfig locates every file rdex persists. Relative entries resolve against DataDir.
type PathsConfig struct {
	DataDir         string `toml:"data_dir"`
	OutputDir       string `toml:"output_dir"`
	TokenFile       string `toml:"token_file"`
	LegacyTokenFile string `toml:"legacy_token_file"`
	CookieFile      string `toml:"cookie_file"`
	NetworkFile     string `toml:"network_file"`
	EnvFile         string `toml:"env_file"`
}

// LoginConfig drives the browser login state machine.
type LoginConfig struct {
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	StartURL       string `toml:"start_url"`
	SecondaryURL   string `toml:"secondary_url"`
	Headless       bool   `toml:"headless"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
	MaxDelayMS     int    `toml:"max_delay_ms"`
}

// AuthConfig contains token validation and refresh settings.
type AuthConfig struct {
	ValidateURL            string `toml:"validate_url"`
	TokenURL               string `toml:"token_url"`
	RefreshIntervalSeconds int    `toml:"refresh_interval_seconds"`
	RefreshAttempts        int    `toml:"refresh_attempts"`
	RefreshBackoffSeconds  int    `toml:"refresh_backoff_seconds"`
	ExpiryMarginSeconds    int    `toml:"expiry_margin_seconds"`
}

// APIConfig holds base URLs for each RDE API host and bulk fetch tuning.
type APIConfig struct {
	SiteOrigin    string  `toml:"site_origin"`
	RDEAPI        string  `toml:"rde_api"`
	UserAPI       string  `toml:"user_api"`
	MaterialAPI   string  `toml:"material_api"`
	InstrumentAPI string  `toml:"instrument_api"`
	EntryAPI      string  `toml:"entry_api"`
	Workers       int     `toml:"workers"`
	RateLimit     float64 `toml:"rate_limit"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// AIConfig contains global generation settings and one block per provider.
type AIConfig struct {
	DefaultProvider string         `toml:"default_provider"`
	TimeoutSeconds  int            `toml:"timeout_seconds"`
	MaxTokens       int            `toml:"max_tokens"`
	Temperature     float64        `toml:"temperature"`
	MaxPromptChars  int            `toml:"max_prompt_chars"`
	OpenAI          ProviderConfig `toml:"openai"`
	Gemini          ProviderConfig `toml:"gemini"`
	LocalLLM        ProviderConfig `toml:"local_llm"`
}

// ProviderConfig describes a single AI provider.
type ProviderConfig struct {
	Enabled      bool     `toml:"enabled"`
	APIKey       string   `toml:"api_key"`
	BaseURL      string   `toml:"base_url"`
	Models       []string `toml:"models"`
	DefaultModel string   `toml:"default_model"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Resolve expands "~" and anchors relative names to DataDir.
func (p PathsConfig) Resolve(name string) string {
	expanded, err := homedir.Expand(name)
	if err != nil {
		expanded = name
	}
	if filepath.IsAbs(expanded) || p.DataDir == "" {
		return expanded
	}
	base, err := homedir.Expand(p.DataDir)
	if err != nil {
		base = p.DataDir
	}
	return filepath.Join(base, expanded)
}

func (p PathsConfig) Tokens() string           { return p.Resolve(p.TokenFile) }
func (p PathsConfig) LegacyToken() string      { return p.Resolve(p.LegacyTokenFile) }
func (p PathsConfig) Cookies() string          { return p.Resolve(p.CookieFile) }
func (p PathsConfig) Network() string          { return p.Resolve(p.NetworkFile) }
func (p PathsConfig) Env() string              { return p.Resolve(p.EnvFile) }
func (p PathsConfig) Output() string           { return p.Resolve(p.OutputDir) }
func (p PathsConfig) Database(n string) string { return p.Resolve(n) }
