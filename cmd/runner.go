package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/ai"
	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/repositories"
	"github.com/desertthunder/rdex/internal/services"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	network    *shared.NetworkConfig
	tokens     *auth.Manager
	api        *services.Client
	ai         *ai.Dispatcher
	calls      *repositories.CallRepository
	results    *repositories.AIResultRepository
	snapshots  *repositories.SnapshotStore
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	// readPassword reads a secret without echo. Tests replace it.
	readPassword func(prompt string) (string, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Network    *shared.NetworkConfig
	Tokens     *auth.Manager
	API        *services.Client
	AI         *ai.Dispatcher
	Calls      *repositories.CallRepository
	Results    *repositories.AIResultRepository
	Snapshots  *repositories.SnapshotStore
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Network == nil {
		opts.Network = shared.DefaultNetworkConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Snapshots == nil {
		opts.Snapshots = repositories.NewSnapshotStore(opts.Config.Paths.Output())
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		network:      opts.Network,
		tokens:       opts.Tokens,
		api:          opts.API,
		ai:           opts.AI,
		calls:        opts.Calls,
		results:      opts.Results,
		snapshots:    opts.Snapshots,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		output:       opts.Output,
		input:        opts.Input,
		readPassword: readTerminalPassword,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, datasetsCommand, groupsCommand, samplesCommand, entriesCommand,
		filesCommand, apiCommand, aiCommand, historyCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) requireTokens() error {
	if r.tokens == nil {
		return fmt.Errorf("%w: token manager not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) requireAPI() error {
	if r.api == nil {
		return fmt.Errorf("%w: RDE client not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) requireAI() error {
	if r.ai == nil {
		return fmt.Errorf("%w: AI dispatcher not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// writeRaw prints a response body, re-indenting it when pretty and the body is JSON.
func (r *Runner) writeRaw(body []byte, pretty bool) error {
	if pretty && json.Valid(body) {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			return r.writeJSON(v, true)
		}
	}
	if _, err := r.output.Write(body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	_, err := r.output.Write([]byte("\n"))
	return err
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// keyValues parses repeated key=value flags.
func keyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", shared.ErrInvalidFlag, p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
