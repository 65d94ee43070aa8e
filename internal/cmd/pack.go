package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/atlaspack"
	"github.com/jmgilman/atlaspack/internal/binary"
	"github.com/jmgilman/atlaspack/internal/catalog"
	"github.com/jmgilman/atlaspack/internal/config"
	"github.com/jmgilman/atlaspack/internal/logging"
	"github.com/jmgilman/atlaspack/internal/names"
	"github.com/jmgilman/atlaspack/internal/options"
	"github.com/jmgilman/atlaspack/internal/slogger"
	"github.com/jmgilman/atlaspack/internal/spinner"
)

var packCmd = &cobra.Command{
	Use:   "pack [input-files...]",
	Short: "Run the atlas builder",
	Long: `Run the atlas builder on the given input files.

The merged options are written to a response file and the builder is started
with it as its only argument. The builder's output is saved to a run log that
can be reviewed later with 'atlaspack logs'.

When the builder exits with a nonzero code, atlaspack exits with the same code.`,
	Example: `  # Pack two sprites with the default options
  atlaspack pack hero.png enemy.png

  # Override options on the command line
  atlaspack pack sprites/*.png -s padding=4 -s output=ui

  # Read options from a file
  atlaspack pack sprites/*.png -f atlas.yaml

  # Use a specific builder executable
  atlaspack pack hero.png --binary ./atlasbuilder`,
	RunE: runPackCmd,
}

func runPackCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	log := slogger.L(ctx)

	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	overrides, err := resolveOverrides(cmd, args)
	if err != nil {
		return err
	}

	exePath, err := resolveExecutable(cmd, cfg)
	if err != nil {
		return err
	}

	pathMgr := logging.NewPathManager(cfg.Storage.Logs)
	runID, err := names.GenerateUnique(pathMgr.LogExists, names.DefaultAttempts)
	if err != nil {
		return err
	}

	// The entry lands before the log so a follower never sees an
	// uncatalogued log for a live run.
	store := catalog.NewStore(cfg.Storage.Catalog)
	entry := catalog.Entry{
		ID:         runID,
		Builder:    exePath,
		InputFiles: overrides.InputFiles(),
		Args:       len(options.BuildArguments(overrides)),
		LogPath:    pathMgr.RunLogPath(runID),
		Status:     catalog.StatusRunning,
		StartedAt:  time.Now(),
	}
	if err := store.Add(ctx, entry); err != nil {
		log.Warn("failed to record run", "run", runID, "error", err)
	}

	logPath, err := pathMgr.EnsureRunLog(runID)
	if err != nil {
		recordOutcome(context.WithoutCancel(ctx), store, &entry, nil, err)
		return err
	}

	noSpinner, err := cmd.Flags().GetBool("no-spinner")
	if err != nil {
		return fmt.Errorf("get no-spinner flag: %w", err)
	}
	showSpinner := !noSpinner && VerbosityFromContext(ctx) == 0 && spinner.IsTerminal(os.Stderr)

	var stdout, stderr io.Writer = os.Stdout, os.Stderr
	var spin *spinner.Spinner
	if showSpinner {
		spin = spinner.New(os.Stderr, "packing "+runID)
		stdout, stderr = spin.Writer(), spin.Writer()
	}

	writers, err := logging.NewRunWriters(stdout, stderr, logPath)
	if err != nil {
		recordOutcome(context.WithoutCancel(ctx), store, &entry, nil, err)
		return err
	}

	builder := atlaspack.New(atlaspack.Config{
		ExecutablePath: exePath,
		TempDir:        cfg.Runner.TempDir,
		Stdout:         writers.Stdout,
		Stderr:         writers.Stderr,
		WaitDelay:      cfg.Runner.WaitDelay,
	})

	log.Info("starting run", "run", runID, "builder", exePath, "log", logPath)

	stopSpinner := func() {}
	if spin != nil {
		spinDone := make(chan struct{})
		go func() {
			defer close(spinDone)
			if err := spin.Start(); err != nil {
				log.Debug("spinner stopped", "error", err)
			}
		}()
		stopSpinner = func() {
			spin.Stop()
			<-spinDone
		}
	}

	res, runErr := builder.Start(ctx, overrides)
	stopSpinner()

	if err := writers.Close(); err != nil {
		log.Warn("failed to close run log", "run", runID, "error", err)
	}
	// The run context may already be canceled; bookkeeping still has to land.
	bookCtx := context.WithoutCancel(ctx)
	recordOutcome(bookCtx, store, &entry, res, runErr)
	pruneRuns(bookCtx, pathMgr, store, cfg.Storage.KeepRuns)

	if runErr != nil {
		var exitErr *atlaspack.ExitError
		if errors.As(runErr, &exitErr) {
			log.Error("atlas builder failed", "run", runID, "exit_code", exitErr.ExitCode, "log", logPath)
		}
		return runErr
	}

	if spin != nil {
		// Output went to the spinner while it ran.
		printCaptured(os.Stdout, os.Stderr, res)
	}

	log.Info("run finished", "run", runID, "exit_code", res.ExitCode)
	return nil
}

// resolveExecutable returns the --binary flag value, searched in PATH when
// it is a bare name, or the host builder under the configured binary root.
func resolveExecutable(cmd *cobra.Command, cfg *config.Config) (string, error) {
	flagPath, err := cmd.Flags().GetString("binary")
	if err != nil {
		return "", fmt.Errorf("get binary flag: %w", err)
	}

	exePath, err := atlaspack.New(atlaspack.Config{
		BinaryRoot:     cfg.Binary.Root,
		ExecutablePath: flagPath,
	}).Executable()
	if flagPath == "" && errors.Is(err, binary.ErrNotFound) {
		return "", fmt.Errorf("%w (run 'atlaspack install' to fetch it)", err)
	}
	return exePath, err
}

// printCaptured replays a run's captured output on the given streams.
func printCaptured(stdout, stderr io.Writer, res *atlaspack.Result) {
	fmt.Fprint(stdout, res.Stdout)
	fmt.Fprint(stderr, res.Stderr)
}

// recordOutcome stores how a run ended.
func recordOutcome(ctx context.Context, store catalog.Store, entry *catalog.Entry, res *atlaspack.Result, runErr error) {
	var exitErr *atlaspack.ExitError
	switch {
	case runErr == nil:
		entry.Finish(catalog.StatusSucceeded, res.ExitCode, nil, time.Now())
	case errors.As(runErr, &exitErr):
		entry.Finish(catalog.StatusFailed, exitErr.ExitCode, runErr, time.Now())
	case errors.Is(runErr, context.Canceled):
		entry.Finish(catalog.StatusInterrupted, -1, runErr, time.Now())
	default:
		entry.Finish(catalog.StatusFailed, -1, runErr, time.Now())
	}

	if err := store.Update(ctx, *entry); err != nil {
		slogger.L(ctx).Warn("failed to record run outcome", "run", entry.ID, "error", err)
	}
}

// pruneRuns keeps the newest keep run logs and drops the pruned runs from
// the catalog. Zero keeps everything.
func pruneRuns(ctx context.Context, pathMgr *logging.PathManager, store catalog.Store, keep int) {
	if keep <= 0 {
		return
	}
	removed, err := pathMgr.Prune(keep)
	if err != nil {
		slogger.L(ctx).Warn("failed to prune run logs", "error", err)
		return
	}
	if len(removed) == 0 {
		return
	}
	if err := store.Remove(ctx, removed...); err != nil {
		slogger.L(ctx).Warn("failed to prune run catalog", "error", err)
	}
	slogger.L(ctx).Debug("pruned runs", "runs", removed)
}

func init() {
	rootCmd.AddCommand(packCmd)

	addOptionFlags(packCmd)
	packCmd.Flags().String("binary", "", "atlas builder executable (path, or name to search in PATH)")
	packCmd.Flags().Bool("no-spinner", false, "stream builder output instead of showing a spinner")
}
