package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/atlaspack/internal/catalog"
	"github.com/jmgilman/atlaspack/internal/logging"
	"github.com/jmgilman/atlaspack/internal/slogger"
)

// Default poll interval for following logs.
const defaultLogPollInterval = 100 * time.Millisecond

var logsCmd = &cobra.Command{
	Use:   "logs [run-id]",
	Short: "List runs or view a run's output",
	Long: `Without arguments, list recorded builder runs, newest first.

With a run ID, print the builder output captured for that run. Each pack
writes the builder's stdout and stderr to a log under storage.logs; older
logs are pruned beyond storage.keep_runs.`,
	Example: `  # List runs
  atlaspack logs

  # View recent output (last 100 lines)
  atlaspack logs focused_turing

  # Follow output of a run still in progress (stops when the run ends)
  atlaspack logs focused_turing -f

  # Show the entire log
  atlaspack logs focused_turing --full`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogsCmd,
}

func runLogsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	pathMgr := logging.NewPathManager(cfg.Storage.Logs)

	if len(args) == 0 {
		return listRuns(cmd.Context(), cmd.OutOrStdout(), pathMgr, catalog.NewStore(cfg.Storage.Catalog))
	}

	follow, err := cmd.Flags().GetBool("follow")
	if err != nil {
		return fmt.Errorf("get follow flag: %w", err)
	}

	lines, err := cmd.Flags().GetInt("lines")
	if err != nil {
		return fmt.Errorf("get lines flag: %w", err)
	}

	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return fmt.Errorf("get full flag: %w", err)
	}

	runID := args[0]
	if !pathMgr.LogExists(runID) {
		return fmt.Errorf("no log file found for run %s", runID)
	}

	var done logging.RunDone
	if follow {
		done = runFinished(catalog.NewStore(cfg.Storage.Catalog), runID)
	}
	return outputLogs(cmd.Context(), cmd.OutOrStdout(), logging.NewReader(pathMgr), runID, lines, full, done)
}

// runFinished reports a run as finished once its catalog entry leaves the
// running state. A run the catalog does not know about is never written to
// again.
func runFinished(store catalog.Store, runID string) logging.RunDone {
	return func(ctx context.Context) (bool, error) {
		entry, err := store.Get(ctx, runID)
		if errors.Is(err, catalog.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return entry.Status != catalog.StatusRunning, nil
	}
}

func listRuns(ctx context.Context, out io.Writer, pathMgr *logging.PathManager, store catalog.Store) error {
	runs, err := pathMgr.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	entries, err := store.List(ctx, catalog.ListFilter{})
	if err != nil {
		slogger.L(ctx).Warn("failed to read run catalog", "error", err)
	}
	byID := make(map[string]catalog.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tEXIT\tDURATION\tFINISHED\tSIZE")
	for _, run := range runs {
		status, exit, took := "-", "-", "-"
		if e, ok := byID[run.ID]; ok {
			status = string(e.Status)
			if e.Status != catalog.StatusRunning {
				exit = strconv.Itoa(e.ExitCode)
				took = e.Duration().Round(time.Millisecond).String()
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, status, exit, took, run.ModTime.Format(time.DateTime), formatSize(run.Size))
	}
	return w.Flush()
}

// outputLogs prints a run's output. A non-nil done streams appended output
// until done reports the run finished.
func outputLogs(ctx context.Context, out io.Writer, reader *logging.Reader, runID string, lines int, full bool, done logging.RunDone) error {
	if full {
		lines = 0
	} else if lines <= 0 {
		lines = logging.DefaultTailLines
	}

	if done != nil {
		history := lines
		if full {
			history = math.MaxInt
		}
		return reader.Tail(ctx, runID, out, logging.TailOptions{
			History: history,
			Poll:    defaultLogPollInterval,
			Done:    done,
		})
	}

	logLines, err := reader.Lines(runID, lines)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	for _, line := range logLines {
		fmt.Fprintln(out, line)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolP("follow", "f", false, "follow log output in real-time")
	logsCmd.Flags().IntP("lines", "n", logging.DefaultTailLines, "number of lines to show")
	logsCmd.Flags().Bool("full", false, "show the entire log")
}

