package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"
)

const (
	catalogVersion = 1
	lockTimeout    = 5 * time.Second
	lockPoll       = 10 * time.Millisecond
	fileMode       = 0o644
	dirMode        = 0o755
)

// catalogFile is the on-disk format.
type catalogFile struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

type jsonStore struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a run catalog backed by a JSON file at path. The file is
// guarded by an flock so concurrent atlaspack processes can share it.
func NewStore(path string) Store {
	return &jsonStore{path: path}
}

func (s *jsonStore) Add(ctx context.Context, entry Entry) error {
	return s.modify(ctx, func(cf *catalogFile) error {
		for _, e := range cf.Entries {
			if e.ID == entry.ID {
				return ErrAlreadyExists
			}
		}

		cf.Entries = append(cf.Entries, entry)
		return nil
	})
}

func (s *jsonStore) Get(ctx context.Context, id string) (*Entry, error) {
	var result *Entry

	err := s.read(ctx, func(cf *catalogFile) error {
		for i := range cf.Entries {
			if cf.Entries[i].ID == id {
				entry := cf.Entries[i]
				result = &entry
				return nil
			}
		}
		return ErrNotFound
	})

	return result, err
}

func (s *jsonStore) Update(ctx context.Context, entry Entry) error {
	return s.modify(ctx, func(cf *catalogFile) error {
		for i := range cf.Entries {
			if cf.Entries[i].ID == entry.ID {
				cf.Entries[i] = entry
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *jsonStore) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	return s.modify(ctx, func(cf *catalogFile) error {
		cf.Entries = slices.DeleteFunc(cf.Entries, func(e Entry) bool {
			return drop[e.ID]
		})
		return nil
	})
}

func (s *jsonStore) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	var result []Entry

	err := s.read(ctx, func(cf *catalogFile) error {
		for _, e := range cf.Entries {
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			result = append(result, e)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(result, func(a, b Entry) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return result, nil
}

// read runs fn against the catalog under a shared lock.
func (s *jsonStore) read(ctx context.Context, fn func(*catalogFile) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cf, file, err := s.open(ctx, syscall.LOCK_SH)
	if err != nil {
		return err
	}
	defer unlock(file)

	return fn(cf)
}

// modify runs fn under an exclusive lock and saves the result when fn
// succeeds.
func (s *jsonStore) modify(ctx context.Context, fn func(*catalogFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, file, err := s.open(ctx, syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock(file)

	if err := fn(cf); err != nil {
		return err
	}

	return s.save(cf)
}

// open opens (creating if needed) the catalog file, locks it, and decodes it.
func (s *jsonStore) open(ctx context.Context, how int) (*catalogFile, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return nil, nil, fmt.Errorf("create catalog directory: %w", err)
	}

	for {
		//nolint:gosec // G304: path comes from configuration
		file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, fileMode)
		if err != nil {
			return nil, nil, fmt.Errorf("open catalog file: %w", err)
		}

		if err := lock(ctx, file, how); err != nil {
			_ = file.Close()
			return nil, nil, err
		}

		// save renames a new file into place; a lock taken on the old one
		// guards nothing.
		if !current(file, s.path) {
			unlock(file)
			continue
		}

		cf, err := decode(file)
		if err != nil {
			unlock(file)
			return nil, nil, err
		}

		return cf, file, nil
	}
}

func current(file *os.File, path string) bool {
	held, err := file.Stat()
	if err != nil {
		return false
	}
	onDisk, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, onDisk)
}

// lock polls for the flock until it is granted, ctx ends, or lockTimeout
// passes.
func lock(ctx context.Context, file *os.File, how int) error {
	ctx, cancel := context.WithTimeoutCause(ctx, lockTimeout, ErrLockTimeout)
	defer cancel()

	ticker := time.NewTicker(lockPoll)
	defer ticker.Stop()

	for {
		err := syscall.Flock(int(file.Fd()), how|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("acquire file lock: %w", err)
		}

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
	}
}

func unlock(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}

func decode(file *os.File) (*catalogFile, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat catalog file: %w", err)
	}
	if info.Size() == 0 {
		return &catalogFile{Version: catalogVersion, Entries: []Entry{}}, nil
	}

	var cf catalogFile
	if err := json.NewDecoder(file).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	return &cf, nil
}

// save replaces the catalog file through a temp file and rename.
func (s *jsonStore) save(cf *catalogFile) error {
	cf.Version = catalogVersion

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "runs-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename catalog file: %w", err)
	}
	return nil
}
