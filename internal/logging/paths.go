// Package logging stores the output of atlas builder runs, one log file per
// run, and reads it back.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const logExt = ".log"

// RunInfo describes a stored run log.
type RunInfo struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// PathManager handles log file path construction and directory management.
type PathManager struct {
	baseDir string
}

// NewPathManager creates a new PathManager with the given base directory.
// The base directory is typically ~/.local/share/atlaspack/logs.
func NewPathManager(baseDir string) *PathManager {
	return &PathManager{baseDir: baseDir}
}

// BaseDir returns the base log directory.
func (p *PathManager) BaseDir() string {
	return p.baseDir
}

// RunLogPath returns the full path for a run's log file.
// Path format: <baseDir>/<runID>.log
func (p *PathManager) RunLogPath(runID string) string {
	return filepath.Join(p.baseDir, runID+logExt)
}

// EnsureRunLog creates the log directory if needed and returns the run's log
// file path.
func (p *PathManager) EnsureRunLog(runID string) (string, error) {
	if err := os.MkdirAll(p.baseDir, 0o750); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return p.RunLogPath(runID), nil
}

// LogExists checks if a log file exists for the given run.
func (p *PathManager) LogExists(runID string) bool {
	_, err := os.Stat(p.RunLogPath(runID))
	return err == nil
}

// RemoveRunLog removes a run's log file if it exists.
func (p *PathManager) RemoveRunLog(runID string) error {
	if err := os.Remove(p.RunLogPath(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run log: %w", err)
	}
	return nil
}

// ListRuns returns stored run logs, newest first.
func (p *PathManager) ListRuns() ([]RunInfo, error) {
	entries, err := os.ReadDir(p.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	var runs []RunInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != logExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed while listing
		}
		runs = append(runs, RunInfo{
			ID:      strings.TrimSuffix(entry.Name(), logExt),
			Path:    filepath.Join(p.baseDir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].ModTime.Equal(runs[j].ModTime) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].ModTime.After(runs[j].ModTime)
	})
	return runs, nil
}

// Prune keeps the newest keep run logs and removes the rest.
// keep <= 0 disables pruning. Returns the IDs removed.
func (p *PathManager) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}

	runs, err := p.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(runs) <= keep {
		return nil, nil
	}

	var removed []string
	for _, run := range runs[keep:] {
		if err := p.RemoveRunLog(run.ID); err != nil {
			return removed, err
		}
		removed = append(removed, run.ID)
	}
	return removed, nil
}
