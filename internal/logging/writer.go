package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// TeeWriter wraps an io.Writer to also write to a log file.
// It implements io.WriteCloser.
type TeeWriter struct {
	primary io.Writer
	logFile *os.File
	mu      *sync.Mutex
}

// NewTeeWriter creates a TeeWriter that writes to both the primary writer
// and the specified log file path. The log file is created or truncated.
func NewTeeWriter(primary io.Writer, logPath string) (*TeeWriter, error) {
	//nolint:gosec // G304: logPath is constructed from trusted PathManager, not arbitrary user input
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	return &TeeWriter{
		primary: primary,
		logFile: logFile,
		mu:      &sync.Mutex{},
	}, nil
}

// Write writes data to both the log file and the primary writer.
// If the primary writer is nil, it only writes to the log file.
func (t *TeeWriter) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil {
		if _, err := t.logFile.Write(p); err != nil {
			return 0, fmt.Errorf("write to log file: %w", err)
		}
	}

	if t.primary != nil {
		return t.primary.Write(p)
	}

	return len(p), nil
}

// Close closes the log file. The primary writer is not closed.
func (t *TeeWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil {
		if err := t.logFile.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		t.logFile = nil
	}
	return nil
}

// LogPath returns the path of the log file, or empty string if closed.
func (t *TeeWriter) LogPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil {
		return t.logFile.Name()
	}
	return ""
}

// RunWriters holds stdout and stderr tee writers for one builder run.
// Both streams land in a single combined log file in arrival order.
type RunWriters struct {
	Stdout *TeeWriter
	Stderr *TeeWriter
}

// NewRunWriters creates tee writers for both stdout and stderr that write to
// a single log file. Either primary writer may be nil.
func NewRunWriters(stdout, stderr io.Writer, logPath string) (*RunWriters, error) {
	//nolint:gosec // G304: logPath is constructed from trusted PathManager, not arbitrary user input
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create run log file: %w", err)
	}

	// One mutex so interleaved stream writes never tear each other.
	mu := &sync.Mutex{}
	return &RunWriters{
		Stdout: &TeeWriter{primary: stdout, logFile: logFile, mu: mu},
		Stderr: &TeeWriter{primary: stderr, logFile: logFile, mu: mu},
	}, nil
}

// Close closes the shared log file.
func (r *RunWriters) Close() error {
	if r.Stdout == nil {
		return nil
	}
	if err := r.Stdout.Close(); err != nil {
		return err
	}
	// Stderr shares the file; drop its handle so later writes are not
	// attempted on a closed file.
	r.Stderr.mu.Lock()
	r.Stderr.logFile = nil
	r.Stderr.mu.Unlock()
	return nil
}
