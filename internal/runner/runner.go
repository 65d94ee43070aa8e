// Package runner executes the atlas builder through a response file and
// gathers its exit status and output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	osexec "os/exec"
	"time"

	"github.com/jmgilman/atlaspack/internal/exec"
	"github.com/jmgilman/atlaspack/internal/response"
	"github.com/jmgilman/atlaspack/internal/slogger"
)

// Result holds the outcome of a builder run that exited successfully.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Config configures a Runner.
type Config struct {
	// TempDir holds response files. Empty means os.TempDir().
	TempDir string

	// Stdout and Stderr, when set, receive a copy of each stream as it
	// arrives. Output is always captured into the Result as well.
	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay bounds output draining after the builder exits or is
	// canceled. Zero waits for the streams to close.
	WaitDelay time.Duration
}

// Runner spawns one builder process per Run call. It holds no per-run state
// and is safe for concurrent use.
type Runner struct {
	executor exec.Executor
	config   Config
}

// New creates a Runner that starts processes through executor.
func New(executor exec.Executor, cfg Config) *Runner {
	return &Runner{
		executor: executor,
		config:   cfg,
	}
}

// Run writes args to a response file, starts exePath with "@<file>" as its
// only argument, and waits for it to finish. The response file is removed
// before Run returns, whatever the outcome.
//
// Errors:
//   - response file failures are returned before anything is started
//   - *SpawnError when the process could not be started
//   - *ExitError when the process exited nonzero or was killed by a signal
//   - the context's error, wrapped, when ctx ended the run
func (r *Runner) Run(ctx context.Context, exePath string, args []string) (*Result, error) {
	log := slogger.L(ctx)

	path, err := response.Write(r.config.TempDir, args)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := response.Remove(path); err != nil {
			log.Warn("failed to remove response file", "path", path, "error", err)
		}
	}()

	log.Debug("starting atlas builder", "path", exePath, "response_file", path, "args", len(args))
	start := time.Now()

	var stdout, stderr bytes.Buffer
	res, runErr := r.executor.Run(ctx, &exec.RunOptions{
		Name:      exePath,
		Args:      []string{response.Ref(path)},
		Stdout:    tee(&stdout, r.config.Stdout),
		Stderr:    tee(&stderr, r.config.Stderr),
		WaitDelay: r.config.WaitDelay,
	})
	if res == nil {
		res = &exec.Result{ExitCode: -1}
	}

	log.Debug("atlas builder finished", "exit_code", res.ExitCode, "elapsed", time.Since(start))

	if runErr != nil {
		if errors.Is(runErr, osexec.ErrWaitDelay) && res.ExitCode == 0 {
			log.Warn("atlas builder left output streams open after exiting", "path", exePath)
		} else {
			return nil, classify(ctx, exePath, res, runErr, &stdout, &stderr)
		}
	}

	return &Result{
		ExitCode: res.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func classify(ctx context.Context, exePath string, res *exec.Result, runErr error, stdout, stderr *bytes.Buffer) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("atlas builder interrupted: %w", ctxErr)
	}

	var exitErr *osexec.ExitError
	if errors.As(runErr, &exitErr) {
		e := &ExitError{
			ExitCode: res.ExitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
		if res.ExitCode < 0 {
			e.Signal = exitErr.String()
		}
		return e
	}

	return &SpawnError{Path: exePath, Err: runErr}
}

// tee returns buf alone, or buf plus w when w is set.
func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
