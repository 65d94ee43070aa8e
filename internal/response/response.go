// Package response manages response files: temporary files holding one
// command-line argument per line, passed to a program as a single "@path"
// argument to stay under operating-system command-line length limits.
package response

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Prefix is the leading token that marks a response-file reference.
const Prefix = "@"

const pattern = "response-*.txt"

// Write creates a uniquely named response file in dir (os.TempDir() when dir
// is empty) containing args joined by newlines, and returns its path.
// The file is complete and closed when Write returns. On failure no file is
// left behind.
func Write(dir string, args []string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create response file: %w", err)
	}
	path := f.Name()

	if _, err := f.WriteString(strings.Join(args, "\n")); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write response file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close response file: %w", err)
	}

	return path, nil
}

// Ref returns the argument that points a program at the response file.
func Ref(path string) string {
	return Prefix + path
}

// Remove deletes the response file. A file that is already gone is not an
// error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove response file: %w", err)
	}
	return nil
}

// Read returns the arguments stored in a response file.
func Read(path string) ([]string, error) {
	//nolint:gosec // G304: path refers to a response file the caller created
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read response file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return strings.Split(string(data), "\n"), nil
}
