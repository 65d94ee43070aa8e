// Package atlaspack starts the native atlas builder. It renders texture
// atlas options into command-line arguments, hands them to the platform's
// atlasbuilder executable through a response file, and reports the exit
// status and output of the run.
//
// A minimal run merges a few overrides over the built-in defaults:
//
//	res, err := atlaspack.Start(ctx, atlaspack.NewOptions(
//		atlaspack.Option{Key: "padding", Value: 4},
//		atlaspack.Option{Key: "input-files", Value: []string{"a.png", "b.png"}},
//	))
package atlaspack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jmgilman/atlaspack/internal/binary"
	"github.com/jmgilman/atlaspack/internal/exec"
	"github.com/jmgilman/atlaspack/internal/options"
	"github.com/jmgilman/atlaspack/internal/runner"
	"github.com/jmgilman/atlaspack/internal/slogger"
)

type (
	// Option is a single builder option.
	Option = options.Option

	// Options is an ordered set of builder options.
	Options = options.Options

	// Result holds the outcome of a successful builder run.
	Result = runner.Result

	// ExitError reports a builder that exited nonzero or was killed.
	ExitError = runner.ExitError

	// SpawnError reports a builder that could not be started.
	SpawnError = runner.SpawnError
)

// Errors returned when the builder executable cannot be used.
var (
	ErrBinaryNotFound      = binary.ErrNotFound
	ErrBinaryNotExecutable = binary.ErrNotExecutable
)

// NewOptions returns options in the given order.
func NewOptions(opts ...Option) Options {
	return options.New(opts...)
}

// DefaultOptions returns the options sent when no override is given.
func DefaultOptions() Options {
	return options.Defaults()
}

// Config configures a Builder. The zero value is usable.
type Config struct {
	// BinaryRoot is the directory holding the atlasbuilder/<platform>/<arch>
	// tree. Empty means the bin directory next to the running executable.
	BinaryRoot string

	// ExecutablePath bypasses the BinaryRoot lookup. A bare name such as
	// "atlasbuilder" is searched for in PATH.
	ExecutablePath string

	// TempDir holds response files. Empty means os.TempDir().
	TempDir string

	// Stdout and Stderr receive the builder's output as it is produced.
	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay bounds output draining after the builder exits.
	WaitDelay time.Duration

	// Logger receives diagnostics. Nil keeps the logger already carried by
	// the context, if any.
	Logger *slog.Logger

	// Executor starts processes. Nil uses os/exec.
	Executor exec.Executor
}

// Builder starts atlas builder runs. A Builder is safe for concurrent use;
// every Start call spawns its own process with its own response file.
type Builder struct {
	config   Config
	executor exec.Executor
	runner   *runner.Runner
}

// New creates a Builder from cfg.
func New(cfg Config) *Builder {
	executor := cfg.Executor
	if executor == nil {
		executor = exec.New()
	}

	return &Builder{
		config:   cfg,
		executor: executor,
		runner: runner.New(executor, runner.Config{
			TempDir:   cfg.TempDir,
			Stdout:    cfg.Stdout,
			Stderr:    cfg.Stderr,
			WaitDelay: cfg.WaitDelay,
		}),
	}
}

// Start runs the builder with overrides merged over the default options and
// blocks until it finishes. A nonzero exit is returned as *ExitError.
func Start(ctx context.Context, overrides Options) (*Result, error) {
	return New(Config{}).Start(ctx, overrides)
}

// Start runs the builder with overrides merged over the default options and
// blocks until it finishes.
func (b *Builder) Start(ctx context.Context, overrides Options) (*Result, error) {
	if b.config.Logger != nil {
		ctx = slogger.WithLogger(ctx, b.config.Logger)
	}

	exePath, err := b.Executable()
	if err != nil {
		return nil, err
	}

	return b.runner.Run(ctx, exePath, options.BuildArguments(overrides))
}

// Arguments returns the lines Start would write to the response file.
func (b *Builder) Arguments(overrides Options) []string {
	return options.BuildArguments(overrides)
}

// Executable resolves and checks the builder executable for this host.
func (b *Builder) Executable() (string, error) {
	if exePath := b.config.ExecutablePath; exePath != "" {
		if filepath.Base(exePath) == exePath {
			found, err := b.executor.LookPath(exePath)
			if err != nil {
				return "", fmt.Errorf("%w: %s not in PATH", ErrBinaryNotFound, exePath)
			}
			exePath = found
		}
		if err := binary.Check(exePath); err != nil {
			return "", err
		}
		return exePath, nil
	}

	root := b.config.BinaryRoot
	if root == "" {
		var err error
		if root, err = binary.DefaultRoot(); err != nil {
			return "", fmt.Errorf("resolve binary root: %w", err)
		}
	}

	return binary.Locate(root)
}
