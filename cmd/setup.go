package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/rdex/internal/ai"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupInit writes a config file when none exists, a default network.yaml, the data directories
// and the history database.
func (r *Runner) SetupInit(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	for _, dir := range []string{config.Paths.Resolve("."), config.Paths.Output()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	networkPath := config.Paths.Network()
	if _, err := os.Stat(networkPath); os.IsNotExist(err) {
		if err := shared.DefaultNetworkConfig().Save(networkPath); err != nil {
			return err
		}
		r.logger.Info("network config created", "path", networkPath)
	}

	dbPath := config.Paths.Database(config.Database.Path)
	r.logger.Info("initializing database", "path", dbPath)

	db, err := openHistory(config)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", dbPath)
	r.writePlain("✓ Configuration: %s\n", configPath)
	r.writePlain("✓ Network: %s\n", networkPath)
	r.writePlain("✓ Database: %s\n", dbPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set login.username in %s (and API keys for AI providers in %s)\n", configPath, config.Paths.Env())
	r.writePlain("2. Run 'rdex auth login' to capture bearer tokens\n")
	return nil
}

type setupSummary struct {
	ConfigPath string              `json:"config_path"`
	Paths      map[string]string   `json:"paths"`
	Network    string              `json:"network_mode"`
	Providers  []ai.ProviderInfo   `json:"providers"`
	APIKeys    map[string]string   `json:"api_keys"`
	Server     shared.ServerConfig `json:"server"`
}

// SetupShow prints the resolved configuration. API keys are masked.
func (r *Runner) SetupShow(ctx context.Context, cmd *cli.Command) error {
	paths := r.config.Paths
	summary := setupSummary{
		ConfigPath: r.configPath,
		Paths: map[string]string{
			"data_dir": paths.Resolve("."),
			"tokens":   paths.Tokens(),
			"legacy":   paths.LegacyToken(),
			"cookies":  paths.Cookies(),
			"network":  paths.Network(),
			"env":      paths.Env(),
			"output":   paths.Output(),
			"database": paths.Database(r.config.Database.Path),
		},
		Network: r.network.Mode,
		APIKeys: map[string]string{
			ai.ProviderOpenAI: shared.MaskSecret(shared.EnvOr("OPENAI_API_KEY", r.config.AI.OpenAI.APIKey), 6),
			ai.ProviderGemini: shared.MaskSecret(shared.EnvOr("GEMINI_API_KEY", r.config.AI.Gemini.APIKey), 6),
		},
		Server: r.config.Server,
	}
	if r.ai != nil {
		summary.Providers = r.ai.Providers()
	}

	if cmd.Bool("json") {
		return r.writeJSON(summary, true)
	}

	r.writePlainHeader("rdex configuration")
	r.writePlain("Config file: %s\n", summary.ConfigPath)
	r.writePlain("Network mode: %s\n", summary.Network)
	for _, key := range []string{"data_dir", "tokens", "legacy", "cookies", "network", "env", "output", "database"} {
		r.writePlain("  %-9s %s\n", key+":", summary.Paths[key])
	}
	r.writePlainln("AI providers:")
	for _, p := range summary.Providers {
		state := "disabled"
		if p.Enabled {
			state = "enabled"
		}
		r.writePlain("  %-10s %-9s default=%s key=%s\n", p.Name, state, p.DefaultModel, summary.APIKeys[p.Name])
	}
	return nil
}
