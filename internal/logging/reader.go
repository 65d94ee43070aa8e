package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultTailLines is how many lines of a run log are shown by default.
const DefaultTailLines = 100

// RunDone reports whether a run has stopped writing to its log.
type RunDone func(ctx context.Context) (bool, error)

// TailOptions configures Reader.Tail.
type TailOptions struct {
	History int           // lines of existing output to print first (<= 0 prints none)
	Poll    time.Duration // how often to check for appended output
	Done    RunDone       // nil follows until ctx ends
}

// Reader reads the builder output captured for runs.
type Reader struct {
	paths *PathManager
}

// NewReader creates a Reader over the logs managed by paths.
func NewReader(paths *PathManager) *Reader {
	return &Reader{paths: paths}
}

// Lines returns the last limit lines of a run's output, or every line when
// limit <= 0. Output not terminated by a newline counts as a final line.
func (r *Reader) Lines(runID string, limit int) ([]string, error) {
	file, err := os.Open(r.paths.RunLogPath(runID))
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	lines, fragment, err := lastLines(bufio.NewReader(file), limit)
	if err != nil {
		return nil, err
	}
	if len(fragment) > 0 {
		lines = append(lines, string(fragment))
		if limit > 0 && len(lines) > limit {
			lines = lines[1:]
		}
	}
	return lines, nil
}

// Tail writes the last opts.History lines of a run's output and then streams
// whatever the builder appends. It returns nil once opts.Done reports the run
// finished and the remaining output has been written, or ctx.Err() when ctx
// ends first.
//
// History and streaming share one file offset, so no line is printed twice
// or skipped between the two.
func (r *Reader) Tail(ctx context.Context, runID string, out io.Writer, opts TailOptions) error {
	file, err := os.Open(r.paths.RunLogPath(runID))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	history, pending, err := lastLines(br, max(opts.History, 1))
	if err != nil {
		return err
	}
	if opts.History <= 0 {
		history = nil
	}
	for _, line := range history {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		// Checked before draining so output written just before the run
		// finished is still delivered.
		finished := false
		if opts.Done != nil {
			if finished, err = opts.Done(ctx); err != nil {
				return fmt.Errorf("check run status: %w", err)
			}
		}

		if pending, err = drain(br, out, pending); err != nil {
			return err
		}

		if finished {
			if len(pending) > 0 {
				if _, err := out.Write(append(pending, '\n')); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// lastLines reads br to EOF and returns its complete lines, keeping only the
// last limit of them when limit > 0. A trailing partial line is returned
// separately.
func lastLines(br *bufio.Reader, limit int) ([]string, []byte, error) {
	var lines []string
	for {
		line, err := br.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return lines, line, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read log file: %w", err)
		}

		lines = append(lines, string(line[:len(line)-1]))
		if limit > 0 && len(lines) > limit {
			lines = lines[1:]
		}
	}
}

// drain copies complete lines from br to out. A partial line is held back in
// the returned slice until its newline arrives.
func drain(br *bufio.Reader, out io.Writer, pending []byte) ([]byte, error) {
	for {
		chunk, err := br.ReadBytes('\n')
		pending = append(pending, chunk...)
		if errors.Is(err, io.EOF) {
			return pending, nil
		}
		if err != nil {
			return pending, fmt.Errorf("read log file: %w", err)
		}

		if _, err := out.Write(pending); err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
		pending = pending[:0]
	}
}
