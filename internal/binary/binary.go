// Package binary locates the precompiled atlas builder executable for a
// platform and CPU architecture.
//
// Executables are laid out as:
//
//	<root>/atlasbuilder/<platform>/<arch>/atlasbuilder[.exe]
//
// where platform and arch use the identifiers the builder is published
// under (win32, darwin, linux; x64, ia32, arm64).
package binary

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// Name is the base name of the atlas builder executable.
const Name = "atlasbuilder"

// DefaultRootDir is the directory, next to the running executable, that
// holds bundled builder binaries.
const DefaultRootDir = "bin"

// Sentinel errors for binary lookup.
var (
	// ErrNotFound is returned when no builder exists at the expected path.
	ErrNotFound = errors.New("atlas builder binary not found")

	// ErrNotExecutable is returned when the path exists but cannot be run.
	ErrNotExecutable = errors.New("atlas builder binary is not executable")
)

var platforms = map[string]string{
	"windows": "win32",
}

var arches = map[string]string{
	"amd64": "x64",
	"386":   "ia32",
}

// Platform maps a GOOS value to the builder's platform directory name.
func Platform(goos string) string {
	if p, ok := platforms[goos]; ok {
		return p
	}
	return goos
}

// Arch maps a GOARCH value to the builder's architecture directory name.
func Arch(goarch string) string {
	if a, ok := arches[goarch]; ok {
		return a
	}
	return goarch
}

// FileName returns the executable file name for goos.
func FileName(goos string) string {
	if goos == "windows" {
		return Name + ".exe"
	}
	return Name
}

// RelPath returns the executable path relative to a binary root.
func RelPath(goos, goarch string) string {
	return filepath.Join(Name, Platform(goos), Arch(goarch), FileName(goos))
}

// Path returns the executable path under root for goos/goarch.
func Path(root, goos, goarch string) string {
	return filepath.Join(root, RelPath(goos, goarch))
}

// HostPath returns the executable path under root for the running system.
func HostPath(root string) string {
	return Path(root, runtime.GOOS, runtime.GOARCH)
}

// Locate returns the host executable path under root after checking that it
// exists and can be executed.
func Locate(root string) (string, error) {
	path := HostPath(root)
	if err := Check(path); err != nil {
		return "", err
	}
	return path, nil
}

// Check verifies that path is an executable regular file.
func Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("stat atlas builder: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotExecutable, path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrNotExecutable, path)
	}
	return nil
}

// DefaultRoot returns the bin directory next to the running executable.
func DefaultRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultRootDir), nil
}
