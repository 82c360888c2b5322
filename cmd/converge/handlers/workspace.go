// Package handlers implements the business logic for CLI commands.
//
// Each handler loads the stack and its state, builds an engine and renders
// the result. Collaborators are reached through package variables so tests
// can replace them.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/imamik/converge/internal/config"
	"github.com/imamik/converge/internal/engine"
	"github.com/imamik/converge/internal/observability"
	"github.com/imamik/converge/internal/provider"
	"github.com/imamik/converge/internal/provider/aws"
	"github.com/imamik/converge/internal/provider/hcloud"
	"github.com/imamik/converge/internal/provider/tls"
	"github.com/imamik/converge/internal/state"
	"github.com/imamik/converge/internal/state/backends"
	"github.com/imamik/converge/internal/ui/render"
)

// DefaultStackFile is read when no -f flag is given.
const DefaultStackFile = "stack.yaml"

// Factory function variables - can be replaced in tests.
var (
	// newRegistry returns the providers compiled into the binary.
	newRegistry = func() *provider.Registry {
		return provider.NewRegistry(aws.Factory(), hcloud.Factory(), tls.Factory())
	}

	// newBackend opens the state backend declared by the stack.
	newBackend = backends.New

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	stdinIsTerminal = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}
	stdoutIsTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	// confirm asks a yes/no question on the terminal.
	confirm = func(title, description string) (bool, error) {
		var ok bool
		err := huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok).
			Run()
		return ok, err
	}
)

// ExitError asks main to exit with Code without printing a message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// GlobalOptions are the flags shared by every command.
type GlobalOptions struct {
	SettingsPath string
	NoColor      bool
	Version      string
	// Flags are the parsed flags of the running command. Changed flags
	// override settings.
	Flags *pflag.FlagSet
}

// StackOptions select the stack files and variable inputs.
type StackOptions struct {
	Files    []string
	Vars     []string
	VarFiles []string
}

func (o StackOptions) files() []string {
	if len(o.Files) == 0 {
		return []string{DefaultStackFile}
	}
	return o.Files
}

// workspace is a loaded stack with its settings, state and providers.
type workspace struct {
	global   GlobalOptions
	settings *config.Settings
	logger   zerolog.Logger
	stack    *config.Stack
	vars     map[string]any
	states   *state.Manager
	registry *provider.Registry
	metrics  *observability.Metrics
	name     string
	renderer *render.Renderer
}

// openWorkspace loads settings, the stack files, variables and the state
// backend.
func openWorkspace(ctx context.Context, g GlobalOptions, so StackOptions) (*workspace, error) {
	ws, err := newWorkspace(g)
	if err != nil {
		return nil, err
	}
	files := so.files()
	stack, err := config.LoadFiles(files...)
	if err != nil {
		return nil, err
	}
	if err := config.CheckRequiredVersion(stack, g.Version); err != nil {
		return nil, err
	}
	dir := filepath.Dir(files[0])
	vars, err := config.ResolveVariables(stack, config.VarInputs{
		Files:   so.VarFiles,
		Flags:   so.Vars,
		Environ: os.Environ(),
		AutoDir: dir,
	})
	if err != nil {
		return nil, err
	}
	ws.vars = vars
	return ws, ws.attach(ctx, stack, dir)
}

// openStateWorkspace loads only what state commands need. The stack file
// is optional there: without one the default local backend in the working
// directory is used.
func openStateWorkspace(ctx context.Context, g GlobalOptions, so StackOptions) (*workspace, error) {
	ws, err := newWorkspace(g)
	if err != nil {
		return nil, err
	}
	files := so.files()
	stack, err := config.LoadFiles(files...)
	if err != nil {
		if len(so.Files) > 0 || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return ws, ws.attach(ctx, nil, ".")
	}
	return ws, ws.attach(ctx, stack, filepath.Dir(files[0]))
}

// openPlanWorkspace loads the stack and variables a saved plan was made
// with.
func openPlanWorkspace(ctx context.Context, g GlobalOptions, files []string, vars map[string]any) (*workspace, error) {
	ws, err := newWorkspace(g)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		files = []string{DefaultStackFile}
	}
	stack, err := config.LoadFiles(files...)
	if err != nil {
		return nil, err
	}
	ws.vars = vars
	return ws, ws.attach(ctx, stack, filepath.Dir(files[0]))
}

func newWorkspace(g GlobalOptions) (*workspace, error) {
	settings, err := config.LoadSettings(g.SettingsPath, g.Flags)
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(stderr, settings.Log, g.NoColor)
	if err != nil {
		return nil, err
	}
	return &workspace{
		global:   g,
		settings: settings,
		logger:   logger,
		registry: newRegistry(),
		metrics:  observability.NewMetrics(),
		renderer: render.New(g.NoColor),
	}, nil
}

func (ws *workspace) attach(ctx context.Context, stack *config.Stack, dir string) error {
	ws.stack = stack
	ws.name = stackName(dir)

	var backendCfg *config.Backend
	if stack != nil {
		backendCfg = stack.Backend
	}
	backend, err := newBackend(ctx, backendCfg, dir)
	if err != nil {
		return fmt.Errorf("failed to open state backend: %w", err)
	}
	ws.states = state.NewManager(backend,
		state.WithVersion(ws.global.Version),
		state.WithLockTimeout(ws.settings.LockTimeout),
	)
	return nil
}

// stackName is the base name of the stack directory.
func stackName(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}

func (ws *workspace) observer() observability.Observer {
	return observability.NewConsoleObserver(ws.logger).WithFields(map[string]string{"stack": ws.name})
}

func (ws *workspace) engine(observer observability.Observer) *engine.Engine {
	return engine.New(ws.stack, ws.vars, ws.registry, ws.states,
		engine.WithSettings(ws.settings),
		engine.WithObserver(observer),
		engine.WithMetrics(ws.metrics),
		engine.WithVersion(ws.global.Version),
		engine.WithStackName(ws.name),
	)
}

// flushMetrics writes the metrics file when one is configured. Failures
// are logged, never returned.
func (ws *workspace) flushMetrics() {
	if ws.settings.MetricsFile == "" {
		return
	}
	if err := ws.metrics.WriteToTextfile(ws.settings.MetricsFile); err != nil {
		ws.logger.Warn().Err(err).Str("path", ws.settings.MetricsFile).Msg("failed to write metrics")
	}
}
