package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/ai"
	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/repositories"
	"github.com/desertthunder/rdex/internal/services"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.3.0"

func main() {
	logger := shared.NewLogger(nil)
	configPath := shared.EnvOr("RDEX_CONFIG", "config.toml")

	runner, closeFn, err := bootstrap(configPath, logger)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer closeFn()

	app := &cli.Command{
		Name:     "rdex",
		Usage:    "Automate RDE (Research Data Express): login, tokens, datasets and AI drafting",
		Version:  version,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
			logger.Error("not signed in or token expired; run `rdex auth login`", "error", err)
			closeFn()
			os.Exit(1)
		default:
			closeFn()
			logger.Fatalf("application error: %v", err)
		}
	}
}

// bootstrap loads configuration and wires every service the commands use. A history database
// that cannot be opened is logged and skipped; commands that need it report it as unavailable.
func bootstrap(configPath string, logger *log.Logger) (*Runner, func(), error) {
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loaded, err := shared.LoadConfig(configPath); err == nil {
			config = loaded
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	if err := shared.LoadDotenv(config.Paths.Env()); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	network, err := shared.LoadNetworkConfig(config.Paths.Network())
	if err != nil {
		return nil, nil, err
	}
	httpClient, err := network.HTTPClient()
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var db *sql.DB
	var calls *repositories.CallRepository
	var results *repositories.AIResultRepository
	if db, err = openHistory(config); err != nil {
		logger.Warn("history database unavailable", "error", err)
	} else {
		closeFn = func() { db.Close() }
		calls = repositories.NewCallRepository(db)
		results = repositories.NewAIResultRepository(db)
	}

	store := auth.NewStore(config.Paths.Tokens(), config.Paths.LegacyToken())
	validator := auth.NewValidator(httpClient, config.Auth.ValidateURL, config.API.SiteOrigin)
	refresher := auth.NewRefresher(config.Auth.TokenURL, httpClient)
	manager := auth.NewManager(store, validator, refresher, logger, auth.ManagerOpts{
		Interval: seconds(config.Auth.RefreshIntervalSeconds),
		Attempts: config.Auth.RefreshAttempts,
		Backoff:  seconds(config.Auth.RefreshBackoffSeconds),
		Margin:   seconds(config.Auth.ExpiryMarginSeconds),
	})

	clientOpts := services.Options{
		Endpoints: services.EndpointsFromConfig(config.API),
		Origin:    config.API.SiteOrigin,
		Network:   network,
		Logger:    logger,
	}
	if calls != nil {
		clientOpts.Recorder = calls
	}
	client, err := services.NewClient(manager, clientOpts)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create RDE client: %w", err)
	}

	dispatcher := ai.NewDispatcher(config.AI, httpClient, logger)
	if results != nil {
		dispatcher.SetRecorder(results)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Network:    network,
		Tokens:     manager,
		API:        client,
		AI:         dispatcher,
		Calls:      calls,
		Results:    results,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	return runner, closeFn, nil
}

func openHistory(config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Paths.Database(config.Database.Path))
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
